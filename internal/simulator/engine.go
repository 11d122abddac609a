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
	"strconv"
	"time"

	"github.com/n4-networks/cwmpsim/internal/soap"
)

const (
	soapEventConnectionRequest = soap.EventConnectionReq
	soapEventTransferComplete  = soap.EventTransferComplete
)

// handlerFunc implements one CWMP RPC. It returns exactly one of
// (content, fault): content for a normal response body, fault for a
// CWMP fault response; returning both nil is a programmer error.
type handlerFunc func(s *Simulator, env *soap.Envelope) (content interface{}, fault *soap.Fault)

// dispatchTable replaces the source's dynamic map of handlers keyed by
// local XML name with a closed enumeration (spec.md sec 9 design note).
var dispatchTable = map[string]handlerFunc{
	"GetParameterValues": (*Simulator).handleGetParameterValues,
	"SetParameterValues": (*Simulator).handleSetParameterValues,
	"GetParameterNames":  (*Simulator).handleGetParameterNames,
	"AddObject":          (*Simulator).handleAddObject,
	"DeleteObject":       (*Simulator).handleDeleteObject,
	"Download":           (*Simulator).handleDownload,
	"Reboot":             (*Simulator).handleReboot,
	"FactoryReset":       (*Simulator).handleFactoryReset,
}

// StartSession begins a new CWMP session for event (a comma-separated
// TR-069 event-code string, or "" for the default periodic event),
// sending an Inform as the opening RPC (spec.md sec 4.1).
func (s *Simulator) StartSession(event string) {
	s.mu.Lock()
	if s.informTimer != nil {
		s.informTimer.Stop()
		s.informTimer = nil
	}
	s.pendingInform = false
	s.sessionActive = true
	reqID := soap.NewRequestID()
	s.sessionReqID = reqID
	s.mu.Unlock()

	s.publish(Event{Kind: "session_start", RequestID: reqID, EventCode: event})

	elements := s.buildInform(event)
	body, err := soap.Build(reqID, elements...)
	if err != nil {
		logger.Printf("session %s: build Inform: %v", reqID, err)
		s.endSessionOnError(reqID)
		return
	}
	s.sendCpeRequest(reqID, body)
}

// sendCpeRequest POSTs a CPE-initiated body (Inform or TransferComplete) and
// feeds the ACS's reply into cpeRequest. Any transport error is a fatal
// session error (spec.md sec 7).
func (s *Simulator) sendCpeRequest(reqID string, body []byte) {
	resp, err := s.transport.Post(body)
	if err != nil {
		logger.Printf("session %s: transport error: %v", reqID, err)
		s.endSessionOnError(reqID)
		return
	}
	env, err := soap.Parse(resp)
	if err != nil {
		logger.Printf("session %s: parse ACS response: %v", reqID, err)
		s.endSessionOnError(reqID)
		return
	}
	s.cpeRequest(reqID, env)
}

// cpeRequest implements spec.md sec 4.1's cpeRequest stage: it reacts to
// the ACS's reply to a CPE-initiated send (Inform or TransferComplete),
// never to a server-initiated RPC -- that dispatch happens in handleMethod,
// reached only after step 5's empty invite POST.
func (s *Simulator) cpeRequest(reqID string, env *soap.Envelope) {
	if env.IsEmpty() {
		s.close(reqID)
		return
	}

	// The ACS's reply to our own Inform carries just the InformResponse
	// ack; cpeRequest doesn't act on its content beyond this.
	if method, err := env.MethodName(); err == nil && method == "InformResponse" {
		var ack soap.InformResponse
		if err := env.Decode(&ack); err != nil {
			logger.Printf("session %s: decode InformResponse: %v", reqID, err)
		}
	}

	if !s.AcceptingConnections() {
		fault := soap.NewFault(soap.FaultNotReady, "")
		body, err := soap.Build(reqID, fault)
		if err == nil {
			_, _ = s.transport.Post(body)
		}
		s.transport.Destroy()
		s.mu.Lock()
		s.sessionActive = false
		s.mu.Unlock()
		s.schedulePeriodicInform()
		return
	}

	if rec, ok := s.transfers.dequeue(); ok {
		s.publish(Event{Kind: "transfer_complete", RequestID: reqID, FaultCode: rec.FaultCode, FaultString: rec.FaultString})
		tc := transferCompleteFrom(rec)
		body, err := soap.Build(reqID, tc)
		if err != nil {
			logger.Printf("session %s: build TransferComplete: %v", reqID, err)
			s.endSessionOnError(reqID)
			return
		}
		s.sendCpeRequest(reqID, body)
		return
	}

	// Nothing more of our own to send: invite the ACS's next
	// server-initiated RPC with an empty POST (spec.md sec 4.1 step 5).
	s.sendInvite(reqID)
}

// sendInvite POSTs an empty body to invite the ACS's next server-initiated
// RPC, and hands whatever comes back to handleMethod.
func (s *Simulator) sendInvite(reqID string) {
	resp, err := s.transport.Post(soap.EmptyBody())
	if err != nil {
		logger.Printf("session %s: transport error: %v", reqID, err)
		s.endSessionOnError(reqID)
		return
	}
	env, err := soap.Parse(resp)
	if err != nil {
		logger.Printf("session %s: parse ACS response: %v", reqID, err)
		s.endSessionOnError(reqID)
		return
	}
	s.handleMethod(reqID, env)
}

// send POSTs a server-RPC response and hands the ACS's next envelope back
// to handleMethod, continuing the server-initiated RPC loop.
func (s *Simulator) send(reqID string, body []byte) {
	resp, err := s.transport.Post(body)
	if err != nil {
		logger.Printf("session %s: transport error: %v", reqID, err)
		s.endSessionOnError(reqID)
		return
	}
	env, err := soap.Parse(resp)
	if err != nil {
		logger.Printf("session %s: parse ACS response: %v", reqID, err)
		s.endSessionOnError(reqID)
		return
	}
	s.handleMethod(reqID, env)
}

// handleMethod implements spec.md sec 4.1's handleMethod stage: dispatch a
// server-initiated RPC found in env's body, or close the session on an
// empty envelope (handleMethod(nil) in the spec's notation).
func (s *Simulator) handleMethod(reqID string, env *soap.Envelope) {
	if env.IsEmpty() {
		s.close(reqID)
		return
	}

	method, err := env.MethodName()
	if err != nil {
		logger.Printf("session %s: %v", reqID, err)
		s.endSessionOnError(reqID)
		return
	}

	var content interface{}
	var fault *soap.Fault
	if h, ok := dispatchTable[method]; ok {
		content, fault = h(s, env)
	} else {
		fault = soap.NewFault(soap.FaultMethodNotSupported, "")
	}
	if fault != nil {
		s.publish(Event{Kind: "fault", RequestID: reqID, EventCode: method, FaultCode: faultCodeText(fault)})
		content = fault
	}

	body, err := soap.Build(reqID, content)
	if err != nil {
		logger.Printf("session %s: build response to %s: %v", reqID, method, err)
		s.endSessionOnError(reqID)
		return
	}
	s.send(reqID, body)
}

func faultCodeText(f *soap.Fault) string {
	if f == nil {
		return ""
	}
	return strconv.Itoa(f.Detail.CwmpFault.FaultCode)
}

// endSessionOnError tears the session down without running the normal
// close() continuation logic, used on fatal transport/parse errors
// (spec.md sec 7): the simulator simply waits for the next periodic
// inform to naturally retry, matching "the simulator never retries an
// entire failed session".
func (s *Simulator) endSessionOnError(reqID string) {
	s.transport.Destroy()
	s.mu.Lock()
	s.sessionActive = false
	s.mu.Unlock()
	s.publish(Event{Kind: "session_error", RequestID: reqID})
	s.schedulePeriodicInform()
}

// close implements the session-end sequence from spec.md sec 4.1.
func (s *Simulator) close(reqID string) {
	s.transport.Destroy()
	s.publish(Event{Kind: "session_close", RequestID: reqID})

	s.mu.Lock()
	pendingReboot := s.pendingReboot
	firmwareUpgrade := s.firmwareUpgrade
	transferCompleteSess := s.transferCompleteSess
	s.sessionActive = false
	s.mu.Unlock()

	switch {
	case pendingReboot && firmwareUpgrade && transferCompleteSess:
		s.mu.Lock()
		s.pendingReboot = false
		s.firmwareUpgrade = false
		s.transferCompleteSess = false
		s.mu.Unlock()
		s.stopSession()
		s.bumpSoftwareVersion()
		time.AfterFunc(s.cfg.StopWindow, func() {
			s.StartSession("1 BOOT,M Download,4 VALUE CHANGE")
		})

	case pendingReboot:
		s.mu.Lock()
		s.pendingReboot = false
		s.mu.Unlock()
		s.stopSession()
		time.AfterFunc(s.cfg.StopWindow+10*time.Second, func() {
			s.StartSession("1 BOOT,M Reboot,4 VALUE CHANGE")
		})

	default:
		s.schedulePeriodicInform()
	}
}

// stopSession disables inbound connections for the stop window, per
// spec.md sec 3's acceptConnections field.
func (s *Simulator) stopSession() {
	s.mu.Lock()
	s.acceptConnections = false
	s.mu.Unlock()
	time.AfterFunc(s.cfg.StopWindow, func() {
		s.mu.Lock()
		s.acceptConnections = true
		s.mu.Unlock()
	})
}

// schedulePeriodicInform arms the next periodic inform timer, collapsing
// any connection-request that arrived during the just-closed session into
// an immediate (1s) follow-up session (spec.md sec 4.1/4.6/8).
func (s *Simulator) schedulePeriodicInform() {
	s.mu.Lock()
	pending := s.pendingInform
	interval := s.periodicInformInterval()
	s.mu.Unlock()

	delay := interval
	event := soap.EventPeriodic
	if pending {
		delay = 1 * time.Second
		event = soapEventConnectionRequest
	}

	s.mu.Lock()
	s.informTimer = time.AfterFunc(delay, func() {
		s.StartSession(event)
	})
	s.mu.Unlock()
}

// periodicInformInterval reads ManagementServer.PeriodicInformInterval
// (seconds) off the store, or the 10s default (spec.md sec 4.1).
func (s *Simulator) periodicInformInterval() time.Duration {
	if p, ok := s.store.Get("Device.ManagementServer.PeriodicInformInterval"); ok && p.Value != "" {
		if secs, err := strconv.ParseUint(p.Value, 10, 32); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return s.cfg.PeriodicInformInterval
}
