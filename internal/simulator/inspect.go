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

// State is a read-only snapshot of the session state machine, for the
// console/admin-feed components to display without reaching into the
// mutex-guarded fields directly.
type State struct {
	SessionActive      bool
	AcceptConnections  bool
	PendingInform      bool
	PendingReboot      bool
	FirmwareUpgrade    bool
	DownloadInProgress bool
}

// Snapshot returns the current session state (SPEC_FULL.md sec 4.11).
func (s *Simulator) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		SessionActive:      s.sessionActive,
		AcceptConnections:  s.acceptConnections,
		PendingInform:      s.pendingInform,
		PendingReboot:      s.pendingReboot,
		FirmwareUpgrade:    s.firmwareUpgrade,
		DownloadInProgress: s.downloadInProgress,
	}
}

// PendingTransfers returns the queued-but-not-yet-sent TransferComplete
// records, without draining the queue.
func (s *Simulator) PendingTransfers() []TransferRecord {
	return s.transfers.snapshot()
}

// TriggerInform starts a session with the given event string immediately,
// bypassing the periodic-inform timer (console "inform" command).
func (s *Simulator) TriggerInform(event string) {
	s.StartSession(event)
}
