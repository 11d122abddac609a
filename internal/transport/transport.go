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

// Package transport implements the authenticated, keep-alive HTTP POST
// cycle a session uses to talk to the ACS (spec.md sec 4.4).
package transport

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/n4-networks/cwmpsim/internal/auth"
)

var logger = log.New(os.Stderr, "[transport] ", log.Lshortfile|log.LstdFlags)

// Credentials supplies the username/password and cookie jar the
// transport authenticates and continues sessions with. The Simulator
// aggregate (spec.md sec 9) implements this directly against its device
// identity and session.cookie field.
type Credentials interface {
	Username() string
	Password() string
	Cookie() string
	SetCookie(string)
}

// Transport owns one ACS-facing keep-alive HTTP client, capped at a
// single in-flight connection (spec.md sec 4.4: maxSockets=1), enforcing
// the "at most one ACS request in flight" invariant (spec.md sec 8) at
// the transport layer.
type Transport struct {
	acsURL      string
	client      *http.Client
	scope       *auth.Scope
	creds       Credentials
	sessTimeout time.Duration
}

// New builds a Transport bound to acsURL. sessionTimeout is the CWMP
// session timeout; the socket timeout is sessionTimeout+30s per spec.md
// sec 4.4 step 2.
func New(acsURL string, sessionTimeout time.Duration, creds Credentials) *Transport {
	return &Transport{
		acsURL: acsURL,
		client: &http.Client{
			Timeout: sessionTimeout + 30*time.Second,
			Transport: &http.Transport{
				MaxConnsPerHost:     1,
				MaxIdleConnsPerHost: 1,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		scope:       auth.NewScope(),
		creds:       creds,
		sessTimeout: sessionTimeout,
	}
}

// Destroy tears down the keep-alive agent, matching the source's
// "destroy" calls on every session close (spec.md sec 4.1/4.4).
func (t *Transport) Destroy() {
	if tr, ok := t.client.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
	t.scope.Reset()
	logger.Println("keep-alive agent destroyed")
}

// Post sends body to the ACS URL, handling one digest-challenge retry
// transparently, and returns the response body. A non-2xx status after
// auth resolution, or a second 401, is a fatal session error (spec.md
// sec 4.4 steps 3-4, sec 7).
func (t *Transport) Post(body []byte) ([]byte, error) {
	respBody, status, header, err := t.do(body)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		challengeHeader := header.Get("WWW-Authenticate")
		challenge, isDigest := auth.ParseChallenge(challengeHeader)
		if !isDigest {
			return nil, fmt.Errorf("transport: unexpected 401 without digest challenge")
		}
		t.scope.SetChallenge(challenge)
		respBody, status, header, err = t.do(body)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("transport: digest auth rejected by ACS")
		}
	}

	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("transport: ACS returned status %d", status)
	}

	if cookie := header.Get("Set-Cookie"); cookie != "" {
		t.creds.SetCookie(cookie)
	}

	if len(respBody) == 0 {
		return nil, nil
	}
	return respBody, nil
}

// do performs a single POST attempt, returning the raw response.
func (t *Transport) do(body []byte) ([]byte, int, http.Header, error) {
	req, err := http.NewRequest(http.MethodPost, t.acsURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.ContentLength = int64(len(body))
	if cookie := t.creds.Cookie(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	authz, err := t.scope.Header(t.creds.Username(), t.creds.Password(), http.MethodPost, req.URL.RequestURI())
	if err != nil {
		return nil, 0, nil, fmt.Errorf("transport: build auth header: %w", err)
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("transport: request to ACS: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("transport: read ACS response: %w", err)
	}
	return data, resp.StatusCode, resp.Header, nil
}
