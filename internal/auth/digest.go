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

// Package auth builds Basic and RFC 2617 Digest Authorization headers for
// the ACS transport and the download worker, and parses WWW-Authenticate
// challenges (spec.md sec 4.5).
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Challenge is a parsed WWW-Authenticate: Digest ... header.
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	QOP       string // "auth", "auth-int", or "" if absent
	Algorithm string // "MD5" (default) or "MD5-sess"
}

// ParseChallenge parses a WWW-Authenticate header value. It returns
// (nil, false) for anything that isn't a Digest challenge.
func ParseChallenge(header string) (*Challenge, bool) {
	if !strings.HasPrefix(strings.ToLower(header), "digest") {
		return nil, false
	}
	fields := splitChallengeFields(header[len("Digest"):])
	c := &Challenge{Algorithm: "MD5"}
	for k, v := range fields {
		switch strings.ToLower(k) {
		case "realm":
			c.Realm = v
		case "nonce":
			c.Nonce = v
		case "opaque":
			c.Opaque = v
		case "qop":
			c.QOP = v
		case "algorithm":
			c.Algorithm = v
		}
	}
	return c, true
}

// IsBasicChallenge reports whether header names the Basic scheme.
func IsBasicChallenge(header string) bool {
	return strings.HasPrefix(strings.ToLower(header), "basic")
}

// splitChallengeFields parses the comma-separated key=value (optionally
// quoted) list of a WWW-Authenticate challenge.
func splitChallengeFields(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		val = strings.Trim(val, `"`)
		out[key] = val
	}
	return out
}

// BasicHeader builds a Basic Authorization header value.
func BasicHeader(username, password string) string {
	raw := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// DigestHeader builds a Digest Authorization header value for method/uri
// against challenge, using nonceCount as the request's nc value
// (spec.md sec 4.5/6.2). Field order in the output matches sec 6.2.
func DigestHeader(username, password, method, uri string, challenge *Challenge, nonceCount uint32) (string, error) {
	if challenge == nil {
		return "", fmt.Errorf("auth: no digest challenge cached")
	}
	cnonce, err := randomHex(16)
	if err != nil {
		return "", fmt.Errorf("auth: generate cnonce: %w", err)
	}
	nc := fmt.Sprintf("%08x", nonceCount)

	ha1 := md5Hex(username + ":" + challenge.Realm + ":" + password)
	if strings.EqualFold(challenge.Algorithm, "MD5-sess") {
		ha1 = md5Hex(ha1 + ":" + challenge.Nonce + ":" + cnonce)
	}
	ha2 := md5Hex(method + ":" + uri)

	var response string
	if challenge.QOP != "" {
		qop := firstQOP(challenge.QOP)
		response = md5Hex(strings.Join([]string{ha1, challenge.Nonce, nc, cnonce, qop, ha2}, ":"))
	} else {
		response = md5Hex(strings.Join([]string{ha1, challenge.Nonce, ha2}, ":"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		username, challenge.Realm, challenge.Nonce, uri, response)
	if challenge.Algorithm != "" {
		fmt.Fprintf(&b, ", algorithm=%s", challenge.Algorithm)
	}
	if challenge.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, challenge.Opaque)
	}
	if challenge.QOP != "" {
		fmt.Fprintf(&b, ", qop=%s", firstQOP(challenge.QOP))
		fmt.Fprintf(&b, ", nc=%s", nc)
		fmt.Fprintf(&b, `, cnonce="%s"`, cnonce)
	}
	return b.String(), nil
}

// firstQOP picks the first qop-value when the challenge lists several
// (e.g. "auth,auth-int"), preferring whichever appears first.
func firstQOP(qop string) string {
	parts := strings.Split(qop, ",")
	return strings.TrimSpace(parts[0])
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ParseNonceCount parses an "nc" field value back into its numeric form,
// used by tests to read back the nc value DigestHeader emits.
func ParseNonceCount(nc string) (uint32, error) {
	v, err := strconv.ParseUint(nc, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
