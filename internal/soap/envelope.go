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

// Package soap implements the SOAP/CWMP wire envelope described in
// spec.md sec 6.1: marshaling outbound request/response bodies into a
// cwmp-namespaced envelope, and picking apart an inbound envelope into
// its request id and the first body element for dispatch. It leans on
// the stdlib encoding/xml tokenizer/entity codec as the "external"
// XML collaborator named out of scope in spec.md sec 1.
package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
)

const (
	nsSoapEnc = "http://schemas.xmlsoap.org/soap/encoding/"
	nsSoapEnv = "http://schemas.xmlsoap.org/soap/envelope/"
	nsXsd     = "http://www.w3.org/2001/XMLSchema"
	nsXsi     = "http://www.w3.org/2001/XMLSchema-instance"
	nsCwmp    = "urn:dslforum-org:cwmp-1-0"
)

const requestIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRequestID returns an 8-character base-36 random request id
// (spec.md sec 6.1).
func NewRequestID() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = requestIDAlphabet[rand.Intn(len(requestIDAlphabet))]
	}
	return string(b)
}

// sendEnvelope is the shape used to marshal an outbound envelope. Content
// carries the concrete, already-tagged RPC struct (e.g. *Inform,
// *GetParameterValuesResponse); encoding/xml marshals it using its own
// XMLName, nested as the sole child of soap-env:Body.
type sendEnvelope struct {
	XMLName xml.Name      `xml:"soap-env:Envelope"`
	SoapEnc string        `xml:"xmlns:soap-enc,attr"`
	SoapEnv string        `xml:"xmlns:soap-env,attr"`
	Xsd     string        `xml:"xmlns:xsd,attr"`
	Xsi     string        `xml:"xmlns:xsi,attr"`
	Cwmp    string        `xml:"xmlns:cwmp,attr"`
	Header  *sendHeader   `xml:"soap-env:Header,omitempty"`
	Body    sendBody      `xml:"soap-env:Body"`
}

type sendHeader struct {
	ID *sendID `xml:"cwmp:ID,omitempty"`
}

type sendID struct {
	MustUnderstand string `xml:"soap-env:mustUnderstand,attr"`
	Value          string `xml:",chardata"`
}

// sendBody holds every payload element to appear inside soap-env:Body, in
// order. Most RPCs carry exactly one; Inform carries two when a transfer
// is pending (spec.md sec 4.2 Inform: "append cwmp:TransferComplete inside
// the Inform").
type sendBody struct {
	Elements []interface{}
}

// MarshalXML encodes each element of Elements as a direct child of Body,
// in order, since they are heterogeneous (Inform next to TransferComplete)
// and encoding/xml has no native support for marshaling a mixed slice.
func (b sendBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, el := range b.Elements {
		if el == nil {
			continue
		}
		if err := e.Encode(el); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Build marshals content into a full CWMP envelope carrying requestID in
// its header, matching the template in spec.md sec 6.1. Pass no content
// for the empty-body POST a session sends to invite the next server RPC
// (spec.md sec 4.1 step 5) -- callers should use EmptyBody instead for
// that case since an empty envelope has no Body element to populate. Pass
// more than one content value to place several sibling elements in the
// same Body (Inform + TransferComplete).
func Build(requestID string, content ...interface{}) ([]byte, error) {
	env := sendEnvelope{
		SoapEnc: nsSoapEnc,
		SoapEnv: nsSoapEnv,
		Xsd:     nsXsd,
		Xsi:     nsXsi,
		Cwmp:    nsCwmp,
		Header: &sendHeader{
			ID: &sendID{MustUnderstand: "1", Value: requestID},
		},
		Body: sendBody{Elements: content},
	}
	return marshalWithHeader(env)
}

// EmptyBody returns the zero-length POST body a session sends to invite
// the ACS's next RPC (spec.md sec 4.1 step 5).
func EmptyBody() []byte { return nil }

func marshalWithHeader(v interface{}) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("soap: marshal envelope: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Envelope is the parsed shape of an inbound ACS response/request: the
// cwmp:ID header (if present) and the raw, still-undecoded bytes of
// whatever sits inside soap-env:Body.
type Envelope struct {
	RequestID string
	BodyInner []byte
}

type recvEnvelope struct {
	XMLName xml.Name    `xml:"Envelope"`
	Header  *recvHeader `xml:"Header"`
	Body    recvBody    `xml:"Body"`
}

type recvHeader struct {
	ID string `xml:"ID"`
}

type recvBody struct {
	Inner []byte `xml:",innerxml"`
}

// Parse decodes a raw HTTP response body into an Envelope. An empty input
// (zero-length body, the ACS's "no more RPCs" signal) yields a nil
// Envelope and a nil error -- callers must check for that before
// dispatching (spec.md sec 4.1 step 1).
func Parse(data []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var env recvEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("soap: parse envelope: %w", err)
	}
	requestID := ""
	if env.Header != nil {
		requestID = env.Header.ID
	}
	return &Envelope{RequestID: requestID, BodyInner: bytes.TrimSpace(env.Body.Inner)}, nil
}

// IsEmpty reports whether the body carries no RPC element at all -- the
// ACS's signal to close the session (spec.md sec 4.1).
func (e *Envelope) IsEmpty() bool {
	return e == nil || len(e.BodyInner) == 0
}

// MethodName returns the local name of the first element inside the
// envelope body, which selects the handler in the RPC dispatch table
// (spec.md sec 4.1/4.2). It does not care whether that element carries a
// "cwmp:" prefix or not: encoding/xml resolves namespace prefixes away
// from Name.Local during tokenization, so finding the bare local name is
// sufficient either way.
func (e *Envelope) MethodName() (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(e.BodyInner))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("soap: body has no method element")
		}
		if err != nil {
			return "", fmt.Errorf("soap: scan body: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// Decode unmarshals the envelope's body into v, matching v's XMLName tag
// (expected bare, without a namespace prefix -- see MethodName's doc).
func (e *Envelope) Decode(v interface{}) error {
	if err := xml.Unmarshal(e.BodyInner, v); err != nil {
		return fmt.Errorf("soap: decode method body: %w", err)
	}
	return nil
}
