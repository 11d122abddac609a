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

func TestStoreGetSet(t *testing.T) {
	s := NewStore()
	s.Load(map[string]Param{
		"Device.DeviceInfo.SoftwareVersion": {Writable: true, Value: "1.0.0", Type: XsdString},
	})

	p, ok := s.Get("Device.DeviceInfo.SoftwareVersion")
	if !ok || p.Value != "1.0.0" {
		t.Fatalf("Get: got %+v, %v", p, ok)
	}

	s.Set("Device.DeviceInfo.SoftwareVersion", "2.0.0", XsdString)
	p, _ = s.Get("Device.DeviceInfo.SoftwareVersion")
	if p.Value != "2.0.0" {
		t.Fatalf("Set did not update value, got %q", p.Value)
	}

	if _, ok := s.Get("Device.Nonexistent"); ok {
		t.Fatal("Get on missing path returned ok=true")
	}
}

func TestStoreSetCreatesMissingLeaf(t *testing.T) {
	s := NewStore()
	s.Set("Device.New.Leaf", "x", XsdString)
	p, ok := s.Get("Device.New.Leaf")
	if !ok || p.Value != "x" || !p.Writable {
		t.Fatalf("Set on missing path: got %+v, %v", p, ok)
	}
}

func TestAddObjectInstanceAndDelete(t *testing.T) {
	s := NewStore()
	s.Load(map[string]Param{
		"Device.LANDevice.1.Hosts.Host.":  {Writable: true},
		"Device.LANDevice.1.Hosts.Host.1.": {Writable: true},
	})

	leaves := map[string]string{"IPAddress": XsdString, "Active": XsdBoolean}
	i := s.AddObjectInstance("Device.LANDevice.1.Hosts.Host.", leaves)
	if i != 2 {
		t.Fatalf("expected first free instance 2 (since .1. exists), got %d", i)
	}
	if !s.Has("Device.LANDevice.1.Hosts.Host.2.") {
		t.Fatal("new instance node not created")
	}
	p, ok := s.Get("Device.LANDevice.1.Hosts.Host.2.IPAddress")
	if !ok || p.Type != XsdString {
		t.Fatalf("cloned leaf missing or wrong type: %+v, %v", p, ok)
	}
	p, _ = s.Get("Device.LANDevice.1.Hosts.Host.2.Active")
	if p.Value != "false" {
		t.Fatalf("expected xsd:boolean zero value \"false\", got %q", p.Value)
	}

	s.DeleteObject("Device.LANDevice.1.Hosts.Host.2.")
	if s.Has("Device.LANDevice.1.Hosts.Host.2.") {
		t.Fatal("DeleteObject did not remove instance node")
	}
	if s.Has("Device.LANDevice.1.Hosts.Host.2.IPAddress") {
		t.Fatal("DeleteObject did not remove cloned leaf")
	}
}

func TestNamesExcludesPrivateAndRespectsNextLevel(t *testing.T) {
	s := NewStore()
	s.Load(map[string]Param{
		"Device.DeviceInfo.Manufacturer":    {Value: "N4", Type: XsdString},
		"Device.DeviceInfo.SoftwareVersion": {Writable: true, Value: "1.0.0", Type: XsdString},
		"_cookie":                          {Value: ""},
		"Reboot.Foo":                        {Value: "bar"},
	})

	all := s.Names("Device.", false)
	if len(all) != 2 {
		t.Fatalf("expected 2 public names, got %d: %+v", len(all), all)
	}
	for _, n := range all {
		if n.Name == "_cookie" || n.Name == "Reboot.Foo" {
			t.Fatalf("private/excluded-root path leaked into Names: %s", n.Name)
		}
	}

	next := s.Names("Device.DeviceInfo.", true)
	if len(next) != 2 {
		t.Fatalf("nextLevel under Device.DeviceInfo.: expected 2, got %d", len(next))
	}
}

func TestParseBool(t *testing.T) {
	if _, err := ParseBool("p", "not-a-bool"); err == nil {
		t.Fatal("expected error for invalid xsd:boolean")
	}
	b, err := ParseBool("p", "true")
	if err != nil || !b {
		t.Fatalf("ParseBool(true): got %v, %v", b, err)
	}
}
