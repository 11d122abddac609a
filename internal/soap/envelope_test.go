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

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseEmptyBodyIsNilEnvelope(t *testing.T) {
	env, err := Parse(nil)
	if err != nil || env != nil {
		t.Fatalf("Parse(nil): got %v, %v", env, err)
	}
	env, err = Parse([]byte("   \n"))
	if err != nil || env != nil {
		t.Fatalf("Parse(whitespace): got %v, %v", env, err)
	}
}

func TestParseAndMethodName(t *testing.T) {
	raw := `<?xml version="1.0"?>
<soap-env:Envelope xmlns:soap-env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:cwmp="urn:dslforum-org:cwmp-1-0">
  <soap-env:Header><cwmp:ID soap-env:mustUnderstand="1">abc12345</cwmp:ID></soap-env:Header>
  <soap-env:Body>
    <cwmp:SetParameterValues>
      <ParameterList><ParameterValueStruct><Name>Device.DeviceInfo.ProvisioningCode</Name><Value xsi:type="xsd:string">x</Value></ParameterValueStruct></ParameterList>
      <ParameterKey>k</ParameterKey>
    </cwmp:SetParameterValues>
  </soap-env:Body>
</soap-env:Envelope>`

	env, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env.IsEmpty() {
		t.Fatal("non-empty envelope reported IsEmpty")
	}
	if env.RequestID != "abc12345" {
		t.Fatalf("RequestID: got %q", env.RequestID)
	}
	method, err := env.MethodName()
	if err != nil {
		t.Fatalf("MethodName: %v", err)
	}
	if method != "SetParameterValues" {
		t.Fatalf("MethodName: got %q, want SetParameterValues (prefix must be stripped)", method)
	}

	var req SetParameterValuesRequest
	if err := env.Decode(&req); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(req.ParameterList) != 1 || req.ParameterList[0].Name != "Device.DeviceInfo.ProvisioningCode" {
		t.Fatalf("Decode: got %+v", req)
	}
	if req.ParameterKey != "k" {
		t.Fatalf("ParameterKey: got %q", req.ParameterKey)
	}
}

func TestNilEnvelopeIsEmpty(t *testing.T) {
	var env *Envelope
	if !env.IsEmpty() {
		t.Fatal("nil *Envelope must report IsEmpty")
	}
}

func TestBuildSingleElement(t *testing.T) {
	resp := &RebootResponse{}
	data, err := Build("req00001", resp)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "cwmp:RebootResponse") {
		t.Fatalf("expected cwmp:RebootResponse in output:\n%s", s)
	}
	if !strings.Contains(s, "req00001") {
		t.Fatalf("expected request id in header:\n%s", s)
	}
}

func TestBuildMultipleElementsInOneBody(t *testing.T) {
	inform := &Inform{MaxEnvelopes: 1}
	tc := &TransferComplete{CommandKey: "ck1"}
	data, err := Build("req00002", inform, tc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := string(data)
	informIdx := strings.Index(s, "cwmp:Inform>")
	tcIdx := strings.Index(s, "cwmp:TransferComplete")
	if informIdx == -1 || tcIdx == -1 {
		t.Fatalf("expected both Inform and TransferComplete in body:\n%s", s)
	}
	if informIdx > tcIdx {
		t.Fatalf("expected Inform before TransferComplete, got reverse order:\n%s", s)
	}

	bodyStart := bytes.Index(data, []byte("<soap-env:Body>"))
	bodyEnd := bytes.Index(data, []byte("</soap-env:Body>"))
	if bodyStart == -1 || bodyEnd == -1 || bodyStart > bodyEnd {
		t.Fatalf("malformed body markers:\n%s", s)
	}
}

func TestNewRequestIDLength(t *testing.T) {
	id := NewRequestID()
	if len(id) != 8 {
		t.Fatalf("expected 8-char request id, got %q", id)
	}
}
