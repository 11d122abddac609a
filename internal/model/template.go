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

package model

// Identity carries the fixed device identity fields a CPE reports in
// every Inform (spec.md sec 3).
type Identity struct {
	Manufacturer string
	OUI          string
	ProductClass string
	SerialNumber string
	MacAddr      string
	Username     string
	Password     string
}

// InformParamSuffixes lists the well-known DeviceInfo/ManagementServer path
// suffixes that appear in every Inform's ParameterList, on both data-model roots
// (Glossary: "Inform parameters").
var InformParamSuffixes = []string{
	"DeviceInfo.SpecVersion",
	"DeviceInfo.HardwareVersion",
	"DeviceInfo.SoftwareVersion",
	"DeviceInfo.ProvisioningCode",
	"ManagementServer.ParameterKey",
	"ManagementServer.ConnectionRequestURL",
	"WANDevice.1.WANConnectionDevice.1.WANPPPConnection.1.ExternalIPAddress",
	"WANDevice.1.WANConnectionDevice.1.WANIPConnection.1.ExternalIPAddress",
}

var dataModelRoots = []string{"Device.", "InternetGatewayDevice."}

// DataModelRoots lists the two TR-098/TR-181 root prefixes this simulator
// mirrors every parameter onto (spec.md sec 4.1/4.2: "both data-model
// roots").
var DataModelRoots = dataModelRoots

// DefaultTemplate builds the bundled default parameter dictionary this
// simulator ships with, standing in for the data-model loader named as an
// external collaborator in spec.md sec 1. It is deliberately small: just
// enough of the TR-098/TR-181 trees to exercise every operation in
// spec.md sec 4.2, plus one instantiable object (LANDevice.1.Hosts.Host.)
// to exercise AddObject/DeleteObject.
func DefaultTemplate(id Identity, connReqURL string) map[string]Param {
	p := make(map[string]Param)
	for _, root := range dataModelRoots {
		p[root+"DeviceInfo.Manufacturer"] = Param{Value: id.Manufacturer, Type: XsdString}
		p[root+"DeviceInfo.ManufacturerOUI"] = Param{Value: id.OUI, Type: XsdString}
		p[root+"DeviceInfo.ProductClass"] = Param{Value: id.ProductClass, Type: XsdString}
		p[root+"DeviceInfo.SerialNumber"] = Param{Value: id.SerialNumber, Type: XsdString}
		p[root+"DeviceInfo.SpecVersion"] = Param{Value: "1.0", Type: XsdString}
		p[root+"DeviceInfo.HardwareVersion"] = Param{Value: "1.0", Type: XsdString}
		p[root+"DeviceInfo.SoftwareVersion"] = Param{Writable: true, Value: "1.0.0", Type: XsdString}
		p[root+"DeviceInfo.ProvisioningCode"] = Param{Writable: true, Value: "", Type: XsdString}
		p[root+"DeviceInfo.UpTime"] = Param{Value: "0", Type: XsdUnsigned}

		p[root+"ManagementServer.URL"] = Param{Writable: true, Value: "", Type: XsdString}
		p[root+"ManagementServer.Username"] = Param{Writable: true, Value: id.Username, Type: XsdString}
		p[root+"ManagementServer.Password"] = Param{Writable: true, Value: id.Password, Type: XsdString}
		p[root+"ManagementServer.PeriodicInformEnable"] = Param{Writable: true, Value: "true", Type: XsdBoolean}
		p[root+"ManagementServer.PeriodicInformInterval"] = Param{Writable: true, Value: "10", Type: XsdUnsigned}
		p[root+"ManagementServer.ParameterKey"] = Param{Writable: true, Value: "", Type: XsdString}
		p[root+"ManagementServer.ConnectionRequestURL"] = Param{Value: connReqURL, Type: XsdString}
		p[root+"ManagementServer.ConnectionRequestUsername"] = Param{Writable: true, Value: id.Username, Type: XsdString}
		p[root+"ManagementServer.ConnectionRequestPassword"] = Param{Writable: true, Value: id.Password, Type: XsdString}

		p[root+"WANDevice.1.WANConnectionDevice.1.WANPPPConnection.1.ExternalIPAddress"] = Param{Value: "0.0.0.0", Type: XsdString}
		p[root+"WANDevice.1.WANConnectionDevice.1.WANIPConnection.1.ExternalIPAddress"] = Param{Value: "0.0.0.0", Type: XsdString}

		p[root+"LANDevice.1.Hosts.Host."] = Param{Writable: true}
		p[root+"LANDevice.1.Hosts.Host.1."] = Param{Writable: true}
		p[root+"LANDevice.1.Hosts.Host.1.IPAddress"] = Param{Writable: true, Value: "192.168.1.2", Type: XsdString}
		p[root+"LANDevice.1.Hosts.Host.1.MACAddress"] = Param{Writable: true, Value: id.MacAddr, Type: XsdString}
		p[root+"LANDevice.1.Hosts.Host.1.HostName"] = Param{Writable: true, Value: "", Type: XsdString}
		p[root+"LANDevice.1.Hosts.Host.1.Active"] = Param{Writable: true, Value: "true", Type: XsdBoolean}
	}

	// private state, excluded from GetParameterNames by the "_" prefix rule.
	p["_cookie"] = Param{Value: ""}
	return p
}

// HostTemplateLeaves describes the template leaves AddObject clones when
// instancing LANDevice.1.Hosts.Host.<i>., keyed by leaf suffix -> xsd type.
func HostTemplateLeaves() map[string]string {
	return map[string]string{
		"IPAddress":  XsdString,
		"MACAddress": XsdString,
		"HostName":   XsdString,
		"Active":     XsdBoolean,
	}
}
