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

// Package download implements the asynchronous file-download subsystem
// (spec.md sec 4.3): a detached GET with its own auth/retry/cancel, that
// reports its terminal outcome back to the session engine as a
// TransferComplete and, via Reporter, asks for a new session.
package download

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/n4-networks/cwmpsim/internal/auth"
)

var logger = log.New(os.Stderr, "[download] ", log.Lshortfile|log.LstdFlags)

// FileType values recognized by Download, per spec.md sec 4.3.
var recognizedFileTypes = map[string]bool{
	"1 Firmware Upgrade Image":       true,
	"2 Web Content":                  true,
	"3 Vendor Configuration File":    true,
	"4 Tone File":                    true,
	"5 Ringer File":                  true,
}

const firmwareFileType = "1 Firmware Upgrade Image"

// maxAuthRetries is the authentication retry cap (spec.md sec 4.3).
const maxAuthRetries = 5

// defaultTimeout is the per-attempt wall-clock timeout, overridable by
// the DOWNLOAD_TIMEOUT env var in milliseconds (spec.md sec 4.3/6.3).
const defaultTimeout = 30 * time.Second

// Request is the validated input to a download, extracted from the
// Download RPC (spec.md sec 4.3).
type Request struct {
	CommandKey string
	URL        string
	FileType   string
	Username   string
	Password   string
}

// Outcome is what a finished (or failed) download reports back.
type Outcome struct {
	CommandKey  string
	StartTime   time.Time
	FaultCode   string // "" or "0" means success
	FaultString string
	FileType    string // echoes Request.FileType, so Reporter can clear the firmware mutex
	FirmwareOK  bool   // true iff this was a successful firmware download
}

// Reporter receives the worker's terminal outcome and manages the single
// firmware-download mutex. Implemented by the simulator aggregate
// (spec.md sec 9: "pass it to handlers").
type Reporter interface {
	// ReportOutcome delivers the download's terminal result, to be
	// delivered as a TransferComplete in a subsequent session (spec.md
	// sec 4.3).
	ReportOutcome(Outcome)
}

// Worker runs one Download RPC's async GET. A Worker is single-use: one
// Request in, at most one Outcome out.
type Worker struct {
	reporter Reporter
	timeout  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWorker builds a Worker reporting to reporter. The per-attempt
// timeout is read from DOWNLOAD_TIMEOUT (ms) if set, else defaultTimeout.
func NewWorker(reporter Reporter) *Worker {
	timeout := defaultTimeout
	if raw := os.Getenv("DOWNLOAD_TIMEOUT"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}
	return &Worker{reporter: reporter, timeout: timeout}
}

// Validate checks a Download RPC's arguments synchronously, before the
// RPC responds (spec.md sec 4.3). ok=false means the caller must respond
// with a CWMP fault instead of the deferred-confirmation DownloadResponse.
func Validate(req Request) (faultCode int, faultString string, ok bool) {
	if req.FileType == "" {
		return 9003, "Invalid arguments - FileType is required", false
	}
	if !recognizedFileTypes[req.FileType] {
		return 9003, "Invalid arguments - FileType is required", false
	}
	return 0, "", true
}

// Start launches the async GET in its own goroutine and returns
// immediately; the caller has already sent the positive DownloadResponse.
// badScheme, when true, skips the network attempt entirely and reports a
// 9016 fault outcome 500 ms later (spec.md sec 4.3).
func (w *Worker) Start(req Request, badScheme bool) {
	start := time.Now()
	if badScheme {
		time.AfterFunc(500*time.Millisecond, func() {
			w.reporter.ReportOutcome(Outcome{
				CommandKey:  req.CommandKey,
				StartTime:   start,
				FaultCode:   "9016",
				FaultString: "Invalid URL scheme",
				FileType:    req.FileType,
			})
		})
		return
	}
	go w.run(req, start)
}

// Cancel aborts the in-flight GET, if any, used by Reboot to pre-empt an
// active firmware download (spec.md sec 4.2 Reboot, sec 5 Cancellation).
func (w *Worker) Cancel() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		logger.Println("cancelling in-flight download")
		cancel()
	}
}

func (w *Worker) run(req Request, start time.Time) {
	outcome := w.fetch(req, start)
	time.AfterFunc(500*time.Millisecond, func() {
		w.reporter.ReportOutcome(outcome)
	})
}

func (w *Worker) fetch(req Request, start time.Time) Outcome {
	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	scope := auth.NewScope()
	cookies := make([]string, 0, 2)
	reqURL := req.URL

	parsed, err := url.Parse(reqURL)
	if err != nil {
		return fault(req, start, "Download failure: "+err.Error())
	}
	pathAndQuery := parsed.Path
	if parsed.RawQuery != "" {
		pathAndQuery += "?" + parsed.RawQuery
	}

	client := &http.Client{Timeout: w.timeout}

	authMode := "none" // "none" -> "basic" -> "digest", decided by the first 401
	for attempt := 0; attempt <= maxAuthRetries+1; attempt++ {
		if attempt > maxAuthRetries {
			return fault(req, start, "Too many attempts")
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fault(req, start, "Download failure: "+err.Error())
		}
		if len(cookies) > 0 {
			httpReq.Header.Set("Cookie", strings.Join(cookies, "; "))
		}
		switch authMode {
		case "basic":
			httpReq.Header.Set("Authorization", auth.BasicHeader(req.Username, req.Password))
		case "digest":
			authz, err := scope.Header(req.Username, req.Password, http.MethodGet, pathAndQuery)
			if err == nil && authz != "" {
				httpReq.Header.Set("Authorization", authz)
			}
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return fault(req, start, "Download failure")
			}
			if isTimeout(err) {
				return fault(req, start, "Download timeout")
			}
			return fault(req, start, "Download failure: "+err.Error())
		}

		if setCookie := resp.Header.Get("Set-Cookie"); setCookie != "" {
			cookies = append(cookies, setCookie)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			challengeHeader := resp.Header.Get("WWW-Authenticate")
			resp.Body.Close()
			if digestChallenge, ok := auth.ParseChallenge(challengeHeader); ok {
				scope.SetChallenge(digestChallenge)
				authMode = "digest"
				continue
			}
			if auth.IsBasicChallenge(challengeHeader) {
				authMode = "basic"
				continue
			}
			return fault(req, start, "Server returned code 401")
		}

		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fault(req, start, fmt.Sprintf("Server returned code %d", resp.StatusCode))
		}

		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fault(req, start, "Download failure: "+err.Error())
		}

		return Outcome{
			CommandKey: req.CommandKey,
			StartTime:  start,
			FaultCode:  "0",
			FileType:   req.FileType,
			FirmwareOK: req.FileType == firmwareFileType,
		}
	}
	return fault(req, start, "Too many attempts")
}

func fault(req Request, start time.Time, message string) Outcome {
	return Outcome{
		CommandKey:  req.CommandKey,
		StartTime:   start,
		FaultCode:   "9010",
		FaultString: message,
		FileType:    req.FileType,
	}
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
