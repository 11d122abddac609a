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

// Package simulator is the CPE aggregate named in spec.md sec 9's design
// notes: it owns the device parameter map, the session state machine, the
// transfer queue, and the keep-alive ACS transport behind one monitor,
// replacing the source's module-level globals. Everything downstream
// (download worker, connection-request listener, fleet/audit/admin
// observers) is handed a reference to it rather than reaching into
// process-wide state.
package simulator

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/n4-networks/cwmpsim/internal/download"
	"github.com/n4-networks/cwmpsim/internal/fleet"
	"github.com/n4-networks/cwmpsim/internal/model"
	"github.com/n4-networks/cwmpsim/internal/transport"
)

var logger = log.New(os.Stderr, "[simulator] ", log.Lshortfile|log.LstdFlags)

// Config configures a Simulator (spec.md sec 6.3).
type Config struct {
	ACSURL                 string
	Identity               model.Identity
	SessionTimeout         time.Duration
	PeriodicInformInterval time.Duration // default 10s if zero
	StopWindow             time.Duration // default 3s if zero
	ConnectionRequestAddr  string         // host:port the listener will bind, set by the launcher
}

// Observer receives session lifecycle notifications for the optional
// audit/fleet/admin-feed components (spec.md SPEC_FULL sec 4.8-4.10).
// Implementations must not block -- Notify runs on the session goroutine.
type Observer interface {
	Notify(event Event)
}

// Event describes one lifecycle tick, published to any attached Observer.
type Event struct {
	Kind        string // "session_start", "session_close", "session_error", "fault", "transfer_complete"
	RequestID   string
	EventCode   string
	FaultCode   string
	FaultString string
	Time        time.Time
}

// Simulator is the single-device CPE aggregate. One process simulates
// one device (spec.md sec 1 Non-goals: no multi-CPE multiplexing).
type Simulator struct {
	cfg   Config
	store *model.Store

	transport *transport.Transport

	mu sync.Mutex // guards everything below

	// session state (spec.md sec 3)
	informTimer          *time.Timer
	sessionActive        bool
	sessionReqID         string
	pendingInform        bool
	acceptConnections    bool
	cookie               string
	pendingReboot        bool
	firmwareUpgrade      bool
	transferCompleteSess bool
	downloadInProgress   bool
	activeDownload       *download.Worker

	transfers transferQueue

	observers []Observer
	nameCache *fleet.NameCache
}

// New builds a Simulator from cfg and a pre-populated parameter store.
func New(cfg Config, store *model.Store) *Simulator {
	if cfg.PeriodicInformInterval == 0 {
		cfg.PeriodicInformInterval = 10 * time.Second
	}
	if cfg.StopWindow == 0 {
		cfg.StopWindow = 3 * time.Second
	}
	s := &Simulator{
		cfg:               cfg,
		store:             store,
		acceptConnections: true,
	}
	s.transport = transport.New(cfg.ACSURL, cfg.SessionTimeout, s)
	return s
}

// SetNameCache attaches an optional fleet.NameCache, sharing the sorted
// GetParameterNames result across simulator processes (SPEC_FULL.md sec
// 4.9). A nil cache (the default) means every GetParameterNames call reads
// model.Store directly.
func (s *Simulator) SetNameCache(c *fleet.NameCache) {
	s.mu.Lock()
	s.nameCache = c
	s.mu.Unlock()
}

// AddObserver registers an Observer for session lifecycle events.
func (s *Simulator) AddObserver(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Simulator) publish(ev Event) {
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	ev.Time = time.Now()
	for _, o := range observers {
		o.Notify(ev)
	}
}

// Store returns the device's parameter map.
func (s *Simulator) Store() *model.Store { return s.store }

// Identity returns the device's fixed identity fields.
func (s *Simulator) Identity() model.Identity { return s.cfg.Identity }

// --- transport.Credentials ---

// Username implements transport.Credentials, preferring the live
// ManagementServer.Username parameter over the static identity default
// (spec.md sec 6.3).
func (s *Simulator) Username() string {
	root := "Device."
	if p, ok := s.store.Get(root + "ManagementServer.Username"); ok && p.Value != "" {
		return p.Value
	}
	return s.cfg.Identity.Username
}

// Password mirrors Username.
func (s *Simulator) Password() string {
	root := "Device."
	if p, ok := s.store.Get(root + "ManagementServer.Password"); ok && p.Value != "" {
		return p.Value
	}
	return s.cfg.Identity.Password
}

// Cookie implements transport.Credentials: the last Set-Cookie value from
// the ACS, replaced wholesale on every response (spec.md sec 3, sec 9
// open question).
func (s *Simulator) Cookie() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookie
}

// SetCookie implements transport.Credentials.
func (s *Simulator) SetCookie(c string) {
	s.mu.Lock()
	s.cookie = c
	s.mu.Unlock()
}

// AcceptingConnections reports whether the device is currently accepting
// inbound RPCs/connection-requests (spec.md sec 3/4.1/4.6).
func (s *Simulator) AcceptingConnections() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptConnections
}

// SessionInProgress reports whether a session is currently active. After
// a reboot or firmware-upgrade close no periodic-inform timer is armed
// either, so an unarmed timer does not by itself mean a session is active.
func (s *Simulator) SessionInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionActive
}

// OnConnectionRequest implements the callback the connreq listener (and
// the fleet redis trigger channel) invoke on an inbound poke (spec.md
// sec 4.6 / SPEC_FULL sec 4.9).
func (s *Simulator) OnConnectionRequest() {
	s.mu.Lock()
	if !s.acceptConnections {
		s.mu.Unlock()
		return
	}
	if s.sessionActive {
		s.pendingInform = true
		s.mu.Unlock()
		return
	}
	if s.informTimer != nil {
		s.informTimer.Stop()
		s.informTimer = nil
	}
	s.mu.Unlock()
	s.StartSession(soapEventConnectionRequest)
}
