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

import "testing"

func TestDefaultTemplateCoversBothRoots(t *testing.T) {
	id := Identity{Manufacturer: "N4", SerialNumber: "SN123", Username: "user"}
	tmpl := DefaultTemplate(id, "http://1.2.3.4:7547/")

	for _, root := range DataModelRoots {
		p, ok := tmpl[root+"DeviceInfo.SerialNumber"]
		if !ok || p.Value != "SN123" {
			t.Fatalf("%s: serial number missing or wrong: %+v, %v", root, p, ok)
		}
		p, ok = tmpl[root+"ManagementServer.ConnectionRequestURL"]
		if !ok || p.Value != "http://1.2.3.4:7547/" {
			t.Fatalf("%s: connection request URL missing or wrong: %+v, %v", root, p, ok)
		}
	}
	if _, ok := tmpl["_cookie"]; !ok {
		t.Fatal("expected private _cookie entry in default template")
	}
}

func TestHostTemplateLeaves(t *testing.T) {
	leaves := HostTemplateLeaves()
	for _, want := range []string{"IPAddress", "MACAddress", "HostName", "Active"} {
		if _, ok := leaves[want]; !ok {
			t.Fatalf("expected host template leaf %q", want)
		}
	}
}
