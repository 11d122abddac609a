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

package simulator

import (
	"sync"
	"time"
)

// TransferRecord is one pending TransferComplete, queued by a finished
// download and drained one-per-session (spec.md sec 3).
type TransferRecord struct {
	CommandKey  string
	StartTime   time.Time
	FaultCode   string
	FaultString string
}

// transferQueue is the FIFO of pending TransferRecords. Safe for
// concurrent use: the download worker enqueues from its own goroutine
// while the session engine dequeues on the session's goroutine (spec.md
// sec 5).
type transferQueue struct {
	mu      sync.Mutex
	records []TransferRecord
}

func (q *transferQueue) enqueue(r TransferRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, r)
}

// dequeue removes and returns the oldest record, if any.
func (q *transferQueue) dequeue() (TransferRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) == 0 {
		return TransferRecord{}, false
	}
	r := q.records[0]
	q.records = q.records[1:]
	return r, true
}

// snapshot returns a copy of the queue without draining it, for display.
func (q *transferQueue) snapshot() []TransferRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]TransferRecord, len(q.records))
	copy(out, q.records)
	return out
}
