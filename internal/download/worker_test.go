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

package download

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeReporter collects the Worker's terminal outcome on a channel.
type fakeReporter struct {
	ch chan Outcome
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{ch: make(chan Outcome, 1)}
}

func (r *fakeReporter) ReportOutcome(o Outcome) { r.ch <- o }

func (r *fakeReporter) await(t *testing.T) Outcome {
	t.Helper()
	select {
	case o := <-r.ch:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for download outcome")
		return Outcome{}
	}
}

func TestValidateRequiresFileType(t *testing.T) {
	if _, _, ok := Validate(Request{URL: "http://x/y"}); ok {
		t.Fatal("expected Validate to reject a missing FileType")
	}
}

func TestValidateRejectsUnrecognizedFileType(t *testing.T) {
	if _, _, ok := Validate(Request{URL: "http://x/y", FileType: "9 Something Else"}); ok {
		t.Fatal("expected Validate to reject an unrecognized FileType")
	}
}

func TestValidateAcceptsKnownFileTypes(t *testing.T) {
	for ft := range recognizedFileTypes {
		if _, _, ok := Validate(Request{URL: "http://x/y", FileType: ft}); !ok {
			t.Fatalf("expected Validate to accept FileType %q", ft)
		}
	}
}

func TestWorkerSuccessfulFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("firmware bytes"))
	}))
	defer srv.Close()

	reporter := newFakeReporter()
	w := NewWorker(reporter)
	w.Start(Request{CommandKey: "ck1", URL: srv.URL, FileType: "2 Web Content"}, false)

	o := reporter.await(t)
	if o.FaultCode != "0" {
		t.Fatalf("expected success (FaultCode 0), got %+v", o)
	}
	if o.CommandKey != "ck1" {
		t.Fatalf("expected commandKey to round-trip, got %q", o.CommandKey)
	}
}

func TestWorkerFirmwareSuccessSetsFirmwareOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reporter := newFakeReporter()
	w := NewWorker(reporter)
	w.Start(Request{CommandKey: "ck2", URL: srv.URL, FileType: firmwareFileType}, false)

	o := reporter.await(t)
	if !o.FirmwareOK {
		t.Fatal("expected FirmwareOK for a successful firmware download")
	}
}

func TestWorkerBadSchemeQueuesInvalidURLFault(t *testing.T) {
	reporter := newFakeReporter()
	w := NewWorker(reporter)
	w.Start(Request{CommandKey: "ck3", URL: "ftp://x/y", FileType: "2 Web Content"}, true)

	o := reporter.await(t)
	if o.FaultCode != "9016" || o.FaultString != "Invalid URL scheme" {
		t.Fatalf("expected 9016 Invalid URL scheme, got %+v", o)
	}
}

func TestWorkerNonOKStatusIsFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reporter := newFakeReporter()
	w := NewWorker(reporter)
	w.Start(Request{CommandKey: "ck4", URL: srv.URL, FileType: "2 Web Content"}, false)

	o := reporter.await(t)
	if o.FaultCode != "9010" {
		t.Fatalf("expected 9010 fault for a non-200 response, got %+v", o)
	}
}

func TestWorkerBasicAuthRetry(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="files"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") != "Basic dXNlcjpwYXNz" {
			t.Errorf("expected Basic auth header on retry, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reporter := newFakeReporter()
	w := NewWorker(reporter)
	w.Start(Request{CommandKey: "ck5", URL: srv.URL, FileType: "2 Web Content", Username: "user", Password: "pass"}, false)

	o := reporter.await(t)
	if o.FaultCode != "0" {
		t.Fatalf("expected success after Basic auth retry, got %+v", o)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly one retry, got %d attempts", attempts)
	}
}

func TestWorkerCancelDuringFetch(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	reporter := newFakeReporter()
	w := NewWorker(reporter)
	w.Start(Request{CommandKey: "ck6", URL: srv.URL, FileType: firmwareFileType}, false)

	// Give fetch time to start and register its cancel func.
	time.Sleep(50 * time.Millisecond)
	w.Cancel()

	o := reporter.await(t)
	if o.FaultCode != "9010" {
		t.Fatalf("expected a 9010 fault when the download is cancelled, got %+v", o)
	}
}
