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

// Package adminws exposes a /ws feed of session lifecycle events for an
// operator dashboard watching a fleet of simulators (SPEC_FULL.md sec
// 4.10), grounded on gorilla/mux + gorilla/websocket + gorilla/handlers
// access logging, the same stack the teacher uses for its API server.
package adminws

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/n4-networks/cwmpsim/internal/simulator"
)

var logger = log.New(os.Stderr, "[adminws] ", log.Lshortfile|log.LstdFlags)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireEvent is the JSON shape broadcast on /ws (SPEC_FULL.md sec 4.10).
type wireEvent struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Event     string `json:"event,omitempty"`
	FaultCode string `json:"faultCode,omitempty"`
}

// Hub implements simulator.Observer, broadcasting every Event to all
// connected websocket clients.
type Hub struct {
	server *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New builds a Hub bound to addr ("host:port").
func New(addr string) *Hub {
	h := &Hub{clients: make(map[*websocket.Conn]struct{})}
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.handleWS)
	h.server = &http.Server{
		Addr:    addr,
		Handler: handlers.CombinedLoggingHandler(os.Stderr, r),
	}
	return h
}

// Start runs the HTTP server in the background.
func (h *Hub) Start() {
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("server stopped: %v", err)
		}
	}()
}

// Stop shuts the server down and drops every client connection.
func (h *Hub) Stop() {
	_ = h.server.Close()
	h.mu.Lock()
	for c := range h.clients {
		c.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Printf("upgrade: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Notify implements simulator.Observer.
func (h *Hub) Notify(ev simulator.Event) {
	payload, err := json.Marshal(wireEvent{
		Type:      ev.Kind,
		RequestID: ev.RequestID,
		Event:     ev.EventCode,
		FaultCode: ev.FaultCode,
	})
	if err != nil {
		logger.Printf("marshal event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Printf("write to client: %v", err)
			c.Close()
			delete(h.clients, c)
		}
	}
}
