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

package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/n4-networks/cwmpsim/internal/auth"
)

// fakeCreds is a minimal in-memory Credentials implementation for tests.
type fakeCreds struct {
	mu       sync.Mutex
	username string
	password string
	cookie   string
}

func (c *fakeCreds) Username() string { return c.username }
func (c *fakeCreds) Password() string { return c.password }
func (c *fakeCreds) Cookie() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookie
}
func (c *fakeCreds) SetCookie(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookie = v
}

func TestPostReturnsEmptyBodyAsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New(srv.URL, time.Second, &fakeCreds{})
	body, err := tr.Post([]byte("<Envelope/>"))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if body != nil {
		t.Fatalf("expected nil body for an empty ACS response, got %q", body)
	}
}

func TestPostPersistsSetCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Set-Cookie", "sid=abc123")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<Envelope/>"))
	}))
	defer srv.Close()

	creds := &fakeCreds{}
	tr := New(srv.URL, time.Second, creds)
	body, err := tr.Post([]byte("<Envelope/>"))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if string(body) != "<Envelope/>" {
		t.Fatalf("got body %q", body)
	}
	if creds.Cookie() != "sid=abc123" {
		t.Fatalf("expected Set-Cookie to be persisted, got %q", creds.Cookie())
	}
}

func TestPostSendsKnownCookieAndAuth(t *testing.T) {
	var gotCookie, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	creds := &fakeCreds{username: "user", password: "pass", cookie: "sid=xyz"}
	tr := New(srv.URL, time.Second, creds)
	if _, err := tr.Post([]byte("<Envelope/>")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotCookie != "sid=xyz" {
		t.Fatalf("expected known cookie to be sent, got %q", gotCookie)
	}
	if gotAuth != "Basic dXNlcjpwYXNz" {
		t.Fatalf("expected preemptive Basic auth, got %q", gotAuth)
	}
}

// TestPostRetriesDigestChallengeTransparently exercises spec.md sec 4.4
// step 3: a 401 bearing a Digest challenge is retried with the identical
// body, transparently to the caller.
func TestPostRetriesDigestChallengeTransparently(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		body, _ := io.ReadAll(r.Body)
		if attempts == 1 {
			w.Header().Set("WWW-Authenticate", `Digest realm="acs", nonce="n1", qop="auth"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if string(body) != "<Envelope/>" {
			t.Errorf("expected identical body on retry, got %q", body)
		}
		if r.Header.Get("Authorization") == "" {
			t.Errorf("expected an Authorization header on the retried request")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New(srv.URL, time.Second, &fakeCreds{username: "user", password: "pass"})
	if _, err := tr.Post([]byte("<Envelope/>")); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly one transparent retry, got %d attempts", attempts)
	}
}

func TestPostFatalOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := New(srv.URL, time.Second, &fakeCreds{})
	if _, err := tr.Post([]byte("<Envelope/>")); err == nil {
		t.Fatal("expected a fatal error for a non-2xx response")
	}
}

func TestPostFatalOnSecondUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", `Digest realm="acs", nonce="n1"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := New(srv.URL, time.Second, &fakeCreds{username: "user", password: "pass"})
	if _, err := tr.Post([]byte("<Envelope/>")); err == nil {
		t.Fatal("expected a fatal error when the ACS rejects the digest retry too")
	}
}

func TestDestroyResetsDigestScope(t *testing.T) {
	tr := New("http://127.0.0.1:0", time.Second, &fakeCreds{})
	tr.scope.SetChallenge(&auth.Challenge{Realm: "r", Nonce: "n1"})
	tr.Destroy()
	if tr.scope.NonceCount() != 0 {
		t.Fatalf("expected Destroy to reset the digest scope")
	}
	h, err := tr.scope.Header("user", "pass", "GET", "/x")
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if h[:6] != "Basic " {
		t.Fatalf("expected Basic header after Destroy cleared the cached challenge, got %q", h)
	}
}
