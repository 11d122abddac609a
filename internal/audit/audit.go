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

// Package audit implements the write-only session/transfer record sink
// (SPEC_FULL.md sec 4.8), grounded on the teacher's pkg/db/cwmpdb.go
// collection idiom. It is never read back by the simulator: the live
// parameter map always stays in memory only (spec.md sec 1 Non-goals).
package audit

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/n4-networks/cwmpsim/internal/simulator"
)

var logger = log.New(os.Stderr, "[audit] ", log.Lshortfile|log.LstdFlags)

const recordCollection = "cwmpsim_events"

// record is the append-only document shape written for every lifecycle
// Event (spec.md sec 9, the Observer callback).
type record struct {
	Kind        string    `bson:"kind"`
	RequestID   string    `bson:"request_id"`
	EventCode   string    `bson:"event_code,omitempty"`
	FaultCode   string    `bson:"fault_code,omitempty"`
	FaultString string    `bson:"fault_string,omitempty"`
	Time        time.Time `bson:"time"`
}

// Sink implements simulator.Observer, writing every event to Mongo.
type Sink struct {
	coll *mongo.Collection
}

// Connect dials uri and returns a Sink writing into database's
// recordCollection. Mirrors internal/db/conn.go's Connect contract.
func Connect(uri, database string, timeout time.Duration) (*Sink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &Sink{coll: client.Database(database).Collection(recordCollection)}, nil
}

// Notify implements simulator.Observer.
func (s *Sink) Notify(ev simulator.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	doc := record{
		Kind:        ev.Kind,
		RequestID:   ev.RequestID,
		EventCode:   ev.EventCode,
		FaultCode:   ev.FaultCode,
		FaultString: ev.FaultString,
		Time:        ev.Time,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		logger.Printf("insert event record: %v", err)
	}
}

// noop satisfies simulator.Observer without touching the network, used
// when audit.mongo.enabled is false.
type noop struct{}

// NewNoop returns a disabled Sink.
func NewNoop() simulator.Observer { return noop{} }

func (noop) Notify(simulator.Event) {}
