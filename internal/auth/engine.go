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

package auth

import "sync"

// Scope tracks one credential-scope's cached digest challenge and
// monotonic nonce count (spec.md sec 3: digestParams/nonceCount). The ACS
// transport and the download worker each own their own Scope, since they
// authenticate against different servers.
type Scope struct {
	mu         sync.Mutex
	challenge  *Challenge
	nonceCount uint32
}

// NewScope returns an empty credential scope (no challenge cached yet).
func NewScope() *Scope { return &Scope{} }

// Reset clears the cached challenge, used when a transport is torn down
// or replaced (spec.md sec 4.4: "destroy" on session close).
func (s *Scope) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenge = nil
	s.nonceCount = 0
}

// SetChallenge installs a freshly received challenge and resets the nonce
// count to zero (spec.md sec 4.4 step 3).
func (s *Scope) SetChallenge(c *Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenge = c
	s.nonceCount = 0
}

// Header builds the Authorization header value for the next request
// against this scope: Digest if a challenge is cached (incrementing
// nonceCount first), Basic otherwise, or "" if username is empty
// (spec.md sec 4.5). method/uri are the request's HTTP method and
// request-target, needed for the digest HA2 computation.
func (s *Scope) Header(username, password, method, uri string) (string, error) {
	if username == "" {
		return "", nil
	}
	s.mu.Lock()
	challenge := s.challenge
	if challenge != nil {
		s.nonceCount++
	}
	nc := s.nonceCount
	s.mu.Unlock()

	if challenge == nil {
		return BasicHeader(username, password), nil
	}
	return DigestHeader(username, password, method, uri, challenge, nc)
}

// NonceCount returns the current nonce count, for tests asserting
// monotonicity (spec.md sec 8).
func (s *Scope) NonceCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonceCount
}
