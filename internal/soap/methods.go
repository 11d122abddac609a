// Copyright 2023 N4-Networks.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package soap

import "encoding/xml"

// Request shapes decoded from an inbound ACS RPC. Their XMLName tags are
// bare local names (no "cwmp:" prefix) -- see Envelope.MethodName's doc
// comment for why decode must match on the unprefixed local name.

type GetParameterValuesRequest struct {
	XMLName        xml.Name `xml:"GetParameterValues"`
	ParameterNames []string `xml:"ParameterNames>string"`
}

type SetParameterValuesRequest struct {
	XMLName       xml.Name               `xml:"SetParameterValues"`
	ParameterList []ParameterValueStruct `xml:"ParameterList>ParameterValueStruct"`
	ParameterKey  string                 `xml:"ParameterKey"`
}

type GetParameterNamesRequest struct {
	XMLName       xml.Name `xml:"GetParameterNames"`
	ParameterPath string   `xml:"ParameterPath"`
	NextLevel     bool     `xml:"NextLevel"`
}

type AddObjectRequest struct {
	XMLName      xml.Name `xml:"AddObject"`
	ObjectName   string   `xml:"ObjectName"`
	ParameterKey string   `xml:"ParameterKey"`
}

type DeleteObjectRequest struct {
	XMLName      xml.Name `xml:"DeleteObject"`
	ObjectName   string   `xml:"ObjectName"`
	ParameterKey string   `xml:"ParameterKey"`
}

type RebootRequest struct {
	XMLName    xml.Name `xml:"Reboot"`
	CommandKey string   `xml:"CommandKey"`
}

type FactoryResetRequest struct {
	XMLName xml.Name `xml:"FactoryReset"`
}

type DownloadRequest struct {
	XMLName        xml.Name `xml:"Download"`
	CommandKey     string   `xml:"CommandKey"`
	FileType       string   `xml:"FileType"`
	URL            string   `xml:"URL"`
	Username       string   `xml:"Username"`
	Password       string   `xml:"Password"`
	FileSize       uint32   `xml:"FileSize"`
	TargetFileName string   `xml:"TargetFileName"`
	DelaySeconds   uint32   `xml:"DelaySeconds"`
	SuccessURL     string   `xml:"SuccessURL"`
	FailureURL     string   `xml:"FailureURL"`
}

// Response/outbound-request shapes. These are only ever marshaled by us,
// never decoded, so their XMLName tags carry the literal "cwmp:" prefix
// expected on the wire (spec.md sec 6.1).

type Inform struct {
	XMLName       xml.Name               `xml:"cwmp:Inform"`
	DeviceId      DeviceIdStruct         `xml:"DeviceId"`
	Event         []EventStruct          `xml:"Event>EventStruct"`
	MaxEnvelopes  uint32                 `xml:"MaxEnvelopes"`
	CurrentTime   string                 `xml:"CurrentTime"`
	RetryCount    uint32                 `xml:"RetryCount"`
	ParameterList []ParameterValueStruct `xml:"ParameterList>ParameterValueStruct"`
}

// InformResponse is the ACS's ack of our Inform. Unlike the other shapes
// in this group it is decoded, not marshaled, so its tag is bare.
type InformResponse struct {
	XMLName      xml.Name `xml:"InformResponse"`
	MaxEnvelopes uint32   `xml:"MaxEnvelopes"`
}

type GetParameterValuesResponse struct {
	XMLName       xml.Name               `xml:"cwmp:GetParameterValuesResponse"`
	ParameterList []ParameterValueStruct `xml:"ParameterList>ParameterValueStruct"`
}

type SetParameterValuesResponse struct {
	XMLName xml.Name `xml:"cwmp:SetParameterValuesResponse"`
	Status  uint32   `xml:"Status"`
}

type GetParameterNamesResponse struct {
	XMLName       xml.Name              `xml:"cwmp:GetParameterNamesResponse"`
	ParameterList []ParameterInfoStruct `xml:"ParameterList>ParameterInfoStruct"`
}

type AddObjectResponse struct {
	XMLName        xml.Name `xml:"cwmp:AddObjectResponse"`
	InstanceNumber uint32   `xml:"InstanceNumber"`
	Status         uint32   `xml:"Status"`
}

type DeleteObjectResponse struct {
	XMLName xml.Name `xml:"cwmp:DeleteObjectResponse"`
	Status  uint32   `xml:"Status"`
}

type RebootResponse struct {
	XMLName xml.Name `xml:"cwmp:RebootResponse"`
}

type FactoryResetResponse struct {
	XMLName xml.Name `xml:"cwmp:FactoryResetResponse"`
}

type DownloadResponse struct {
	XMLName      xml.Name `xml:"cwmp:DownloadResponse"`
	Status       uint32   `xml:"Status"`
	StartTime    string   `xml:"StartTime"`
	CompleteTime string   `xml:"CompleteTime"`
}

type TransferComplete struct {
	XMLName      xml.Name     `xml:"cwmp:TransferComplete"`
	CommandKey   string       `xml:"CommandKey"`
	StartTime    string       `xml:"StartTime"`
	CompleteTime string       `xml:"CompleteTime"`
	FaultStruct  *FaultStruct `xml:"FaultStruct,omitempty"`
}

type FaultStruct struct {
	FaultCode   string `xml:"FaultCode"`
	FaultString string `xml:"FaultString"`
}

// Common nested structures, shared by both inbound decode and outbound
// encode; their tags are bare (no namespace prefix) on either side since
// only the top-level RPC element is namespace-prefixed on the wire.

type DeviceIdStruct struct {
	Manufacturer string `xml:"Manufacturer"`
	OUI          string `xml:"OUI"`
	ProductClass string `xml:"ProductClass"`
	SerialNumber string `xml:"SerialNumber"`
}

type EventStruct struct {
	EventCode  string `xml:"EventCode"`
	CommandKey string `xml:"CommandKey"`
}

type ParameterValueStruct struct {
	Name  string     `xml:"Name"`
	Value ParamValue `xml:"Value"`
}

// ParamValue carries a parameter's value alongside its xsi:type attribute,
// e.g. <Value xsi:type="xsd:string">foo</Value> (spec.md sec 4.2/6.1).
type ParamValue struct {
	Type  string `xml:"xsi:type,attr,omitempty"`
	Value string `xml:",chardata"`
}

// UnmarshalXML reads the type attribute by its local name: encoding/xml
// does not match the prefixed "xsi:type" tag when decoding.
func (v *ParamValue) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Local == "type" {
			v.Type = a.Value
		}
	}
	return d.DecodeElement(&v.Value, &start)
}

type ParameterInfoStruct struct {
	Name     string `xml:"Name"`
	Writable bool   `xml:"Writable"`
}

// TR-069 event codes (Glossary).
const (
	EventBootstrap        = "0 BOOTSTRAP"
	EventBoot             = "1 BOOT"
	EventPeriodic         = "2 PERIODIC"
	EventScheduled        = "3 SCHEDULED"
	EventValueChange      = "4 VALUE CHANGE"
	EventKicked           = "5 KICKED"
	EventConnectionReq    = "6 CONNECTION REQUEST"
	EventTransferComplete = "7 TRANSFER COMPLETE"
)
