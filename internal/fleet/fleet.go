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

// Package fleet wires a single simulator instance into a multi-instance
// test harness (SPEC_FULL.md sec 4.9): MQTT/STOMP telemetry publish after
// every session close, and a Redis pub/sub channel that triggers a
// session exactly like an inbound connection-request HTTP GET, for
// simulators running behind NAT where the ACS cannot dial back in.
package fleet

import (
	"encoding/json"
	"log"
	"os"
)

var logger = log.New(os.Stderr, "[fleet] ", log.Lshortfile|log.LstdFlags)

// Telemetry is the small JSON message published after every session close.
type Telemetry struct {
	EventCode   string `json:"eventCode"`
	FaultCode   string `json:"faultCode,omitempty"`
	FaultString string `json:"faultString,omitempty"`
	DurationMs  int64  `json:"durationMs"`
}

// Publisher sends one Telemetry message. MQTTPublisher and StompPublisher
// both implement it.
type Publisher interface {
	Publish(t Telemetry) error
	Close()
}

// Trigger is the callback target for an inbound Redis trigger message,
// implemented by the Simulator aggregate (same contract as connreq.Simulator).
type Trigger interface {
	OnConnectionRequest()
}

func marshalTelemetry(t Telemetry) ([]byte, error) {
	return json.Marshal(t)
}
