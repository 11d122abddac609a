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

package simulator

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/n4-networks/cwmpsim/internal/model"
)

func newTestStore() *model.Store {
	store := model.NewStore()
	store.Load(model.DefaultTemplate(model.Identity{
		Manufacturer: "N4",
		SerialNumber: "SN1",
		Username:     "usertest",
		Password:     "passtest",
	}, "http://127.0.0.1:7547/"))
	return store
}

// recordingObserver collects every lifecycle Event, for tests to assert on
// the session state machine's transitions without racing the engine's
// internal mutex.
type recordingObserver struct {
	mu     sync.Mutex
	events []Event
	notify chan Event
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{notify: make(chan Event, 16)}
}

func (o *recordingObserver) Notify(ev Event) {
	o.mu.Lock()
	o.events = append(o.events, ev)
	o.mu.Unlock()
	select {
	case o.notify <- ev:
	default:
	}
}

func (o *recordingObserver) awaitKind(t *testing.T, kind string) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-o.notify:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %q", kind)
			return Event{}
		}
	}
}

// methodNameFromRequest returns the local name of the first element inside
// soap-env:Body of a request the simulator posted ("" if there is none),
// without importing the soap package's private types.
func methodNameFromRequest(t *testing.T, body []byte) string {
	t.Helper()
	dec := xml.NewDecoder(bytesReader(body))
	sawBody := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return ""
		}
		if err != nil {
			t.Fatalf("scan request body: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "Body" {
			sawBody = true
			continue
		}
		if sawBody {
			return start.Name.Local
		}
	}
}

func bytesReader(b []byte) io.Reader { return &byteReader{b: b} }

type byteReader struct {
	b []byte
	i int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}

// TestHappyInformClosesAndReschedules exercises spec.md sec 8 scenario 1:
// an Inform answered with an empty body ends the session and arms the next
// periodic timer.
func TestHappyInformClosesAndReschedules(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if gotMethod == "" {
			gotMethod = methodNameFromRequest(t, body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newTestStore()
	obs := newRecordingObserver()
	sim := New(Config{ACSURL: srv.URL, Identity: model.Identity{Manufacturer: "N4", SerialNumber: "SN1"}}, store)
	sim.AddObserver(obs)

	sim.StartSession("1 BOOT")
	obs.awaitKind(t, "session_close")

	if gotMethod != "Inform" {
		t.Fatalf("expected the opening RPC to be Inform, got %q", gotMethod)
	}
	deadline := time.Now().Add(time.Second)
	for {
		sim.mu.Lock()
		armed := sim.informTimer != nil
		sim.mu.Unlock()
		if armed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected the next periodic inform timer to be armed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if sim.SessionInProgress() {
		t.Fatal("expected session to be inactive after close")
	}
}

// TestUnknownRPCYieldsFault9000 exercises spec.md sec 8 scenario 3.
func TestUnknownRPCYieldsFault9000(t *testing.T) {
	var calls int
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if calls == 1 {
			// Ack of our Inform: a real ACS's InformResponse, not the next
			// RPC. cpeRequest must not mistake this for a server method.
			w.Header().Set("Content-Type", "text/xml")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<soap-env:Envelope xmlns:soap-env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:cwmp="urn:dslforum-org:cwmp-1-0">
  <soap-env:Header><cwmp:ID soap-env:mustUnderstand="1">req00001</cwmp:ID></soap-env:Header>
  <soap-env:Body><cwmp:InformResponse><MaxEnvelopes>1</MaxEnvelopes></cwmp:InformResponse></soap-env:Body>
</soap-env:Envelope>`))
			return
		}
		if calls == 2 {
			// Response to our empty invite POST: the ACS's server-initiated
			// RPC, which handleMethod must reject with fault 9000.
			w.Header().Set("Content-Type", "text/xml")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<soap-env:Envelope xmlns:soap-env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:cwmp="urn:dslforum-org:cwmp-1-0">
  <soap-env:Header><cwmp:ID soap-env:mustUnderstand="1">req00001</cwmp:ID></soap-env:Header>
  <soap-env:Body><cwmp:Thing/></soap-env:Body>
</soap-env:Envelope>`))
			return
		}
		lastBody = body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newTestStore()
	obs := newRecordingObserver()
	sim := New(Config{ACSURL: srv.URL, Identity: model.Identity{Manufacturer: "N4", SerialNumber: "SN1"}}, store)
	sim.AddObserver(obs)

	sim.StartSession("1 BOOT")
	ev := obs.awaitKind(t, "fault")
	if ev.FaultCode != "9000" {
		t.Fatalf("expected fault code 9000 for an unrecognized RPC, got %q", ev.FaultCode)
	}
	obs.awaitKind(t, "session_close")
	if lastBody == nil {
		t.Fatal("expected a POST after the invite carrying the fault response")
	}
}

// TestSetParameterValuesAppliedToStore exercises the SetParameterValues
// dispatch path end to end.
func TestSetParameterValuesAppliedToStore(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.ReadAll(r.Body)
		if calls == 1 {
			// Ack of our Inform: a real ACS's InformResponse, not the next
			// RPC. cpeRequest must not mistake this for a server method.
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<soap-env:Envelope xmlns:soap-env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:cwmp="urn:dslforum-org:cwmp-1-0">
  <soap-env:Header><cwmp:ID soap-env:mustUnderstand="1">req00001</cwmp:ID></soap-env:Header>
  <soap-env:Body><cwmp:InformResponse><MaxEnvelopes>1</MaxEnvelopes></cwmp:InformResponse></soap-env:Body>
</soap-env:Envelope>`))
			return
		}
		if calls == 2 {
			// Response to our empty invite POST: the ACS's SetParameterValues.
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<soap-env:Envelope xmlns:soap-env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:cwmp="urn:dslforum-org:cwmp-1-0">
  <soap-env:Header><cwmp:ID soap-env:mustUnderstand="1">req00002</cwmp:ID></soap-env:Header>
  <soap-env:Body><cwmp:SetParameterValues>
    <ParameterList><ParameterValueStruct><Name>Device.DeviceInfo.ProvisioningCode</Name><Value xsi:type="xsd:string">new-code</Value></ParameterValueStruct></ParameterList>
  </cwmp:SetParameterValues></soap-env:Body>
</soap-env:Envelope>`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newTestStore()
	obs := newRecordingObserver()
	sim := New(Config{ACSURL: srv.URL, Identity: model.Identity{Manufacturer: "N4", SerialNumber: "SN1"}}, store)
	sim.AddObserver(obs)

	sim.StartSession("1 BOOT")
	obs.awaitKind(t, "session_close")

	p, ok := store.Get("Device.DeviceInfo.ProvisioningCode")
	if !ok || p.Value != "new-code" {
		t.Fatalf("expected SetParameterValues to update the store, got %+v, %v", p, ok)
	}
}
