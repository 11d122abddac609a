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

// CWMP fault codes used by this simulator (spec.md sec 6.4). The fuller
// TR-069 fault code space exists but only these five are ever raised by
// the handlers in spec.md sec 4.2/4.3.
const (
	FaultMethodNotSupported = 9000
	FaultNotReady           = 9002
	FaultInvalidArguments   = 9003
	FaultDownloadFailure    = 9010
	FaultInvalidURLScheme   = 9016
)

// faultStrings gives the fixed faultstring text this simulator emits for
// each code that doesn't carry a dynamic message.
var faultStrings = map[int]string{
	FaultMethodNotSupported: "Method not supported",
	FaultNotReady:           "Device not ready to accept requests",
}

// Fault is a CWMP RPC fault: the SOAP Fault envelope body plus the nested
// cwmp:Fault detail (spec.md sec 6.1).
type Fault struct {
	XMLName     xml.Name `xml:"soap-env:Fault"`
	FaultCode   string   `xml:"faultcode"`
	FaultString string   `xml:"faultstring"`
	Detail      detail   `xml:"detail"`
}

type detail struct {
	CwmpFault cwmpFault `xml:"cwmp:Fault"`
}

type cwmpFault struct {
	FaultCode   int    `xml:"FaultCode"`
	FaultString string `xml:"FaultString"`
}

// NewFault builds a Fault for code, using faultStrings' fixed text when
// message is empty.
func NewFault(code int, message string) *Fault {
	if message == "" {
		message = faultStrings[code]
	}
	return &Fault{
		FaultCode:   "Client",
		FaultString: "CWMP fault",
		Detail: detail{
			CwmpFault: cwmpFault{FaultCode: code, FaultString: message},
		},
	}
}
