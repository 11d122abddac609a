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

import "github.com/n4-networks/cwmpsim/internal/download"

// ReportOutcome implements download.Reporter. It queues the terminal
// transfer record, releases the firmware mutex, arms the reboot
// continuation on firmware success, and -- if no session is currently
// in progress and connections are being accepted -- opens one to deliver
// the TransferComplete (spec.md sec 4.3).
func (s *Simulator) ReportOutcome(o download.Outcome) {
	s.transfers.enqueue(TransferRecord{
		CommandKey:  o.CommandKey,
		StartTime:   o.StartTime,
		FaultCode:   o.FaultCode,
		FaultString: o.FaultString,
	})

	s.mu.Lock()
	if o.FileType == "1 Firmware Upgrade Image" {
		s.downloadInProgress = false
	}
	s.activeDownload = nil
	if o.FirmwareOK {
		s.pendingReboot = true
		s.firmwareUpgrade = true
	}
	sessionActive := s.sessionActive
	acceptConnections := s.acceptConnections
	s.mu.Unlock()

	// A download cancelled by Reboot settles while the stop-session window
	// is closing connections (acceptConnections false): its transfer record
	// stays queued and rides along in the already-scheduled reboot
	// continuation's Inform instead of opening a redundant session here.
	if !sessionActive && acceptConnections {
		s.StartSession(soapEventTransferComplete)
	}
}
