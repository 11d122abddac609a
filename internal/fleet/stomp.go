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

package fleet

import (
	"fmt"
	"net"

	"github.com/go-stomp/stomp"
)

// StompPublisher publishes Telemetry to a STOMP queue, an alternate
// channel for harnesses built around a message broker instead of MQTT
// (SPEC_FULL.md sec 4.9), grounded on the teacher's StompConfig shape.
type StompPublisher struct {
	conn  *stomp.Conn
	queue string
}

// NewStompPublisher dials addr ("host:port") and returns a ready Publisher.
func NewStompPublisher(addr, queue string) (*StompPublisher, error) {
	netConn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fleet: stomp dial %s: %w", addr, err)
	}
	conn, err := stomp.Connect(netConn)
	if err != nil {
		return nil, fmt.Errorf("fleet: stomp connect %s: %w", addr, err)
	}
	return &StompPublisher{conn: conn, queue: queue}, nil
}

// Publish implements Publisher.
func (p *StompPublisher) Publish(t Telemetry) error {
	payload, err := marshalTelemetry(t)
	if err != nil {
		return fmt.Errorf("fleet: marshal telemetry: %w", err)
	}
	return p.conn.Send(p.queue, "application/json", payload, stomp.SendOpt.Receipt)
}

// Close implements Publisher.
func (p *StompPublisher) Close() {
	_ = p.conn.Disconnect()
}
