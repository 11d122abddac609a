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

// Package connreq implements the tiny HTTP listener an ACS pokes to
// trigger an out-of-cycle CWMP session (spec.md sec 4.6).
package connreq

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
)

var logger = log.New(os.Stderr, "[connreq] ", log.Lshortfile|log.LstdFlags)

// Simulator is the callback target: the Simulator aggregate implements
// this directly (spec.md sec 4.6).
type Simulator interface {
	OnConnectionRequest()
	AcceptingConnections() bool
}

// Listener owns the connection-request HTTP server.
type Listener struct {
	sim    Simulator
	server *http.Server
	url    string
}

// LocalIP opens a throwaway UDP "connection" to acsHostPort to learn which
// local address routes to the ACS, without sending any packet (spec.md
// sec 4.6: "open a throwaway TCP connection to the ACS to learn the
// outbound local IP"). UDP is used here in place of the source's literal
// TCP dial since it never touches the network -- the kernel only needs to
// resolve the route.
func LocalIP(acsHostPort string) (string, error) {
	conn, err := net.Dial("udp", acsHostPort)
	if err != nil {
		return "", fmt.Errorf("connreq: determine local IP via %s: %w", acsHostPort, err)
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("connreq: unexpected local addr type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

// New builds a Listener bound to host:port, routing every inbound request
// through mux to handleRequest.
func New(sim Simulator, host string, port int) *Listener {
	l := &Listener{sim: sim, url: fmt.Sprintf("http://%s:%d/", host, port)}
	r := mux.NewRouter()
	r.PathPrefix("/").HandlerFunc(l.handleRequest)
	l.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}
	return l
}

// URL returns the advertised connection-request URL, installed into
// ManagementServer.ConnectionRequestURL.
func (l *Listener) URL() string { return l.url }

// Start runs the HTTP server in the background. ListenAndServe's terminal
// error (anything but http.ErrServerClosed) is logged, not fatal: a
// simulator that can't accept connection-requests still runs its
// periodic-inform cycle normally.
func (l *Listener) Start() {
	go func() {
		if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("listener stopped: %v", err)
		}
	}()
}

// Stop shuts the listener down.
func (l *Listener) Stop() {
	_ = l.server.Close()
}

// handleRequest implements spec.md sec 4.6: drop the socket if the device
// isn't accepting connections, else respond 200 and notify the simulator.
func (l *Listener) handleRequest(w http.ResponseWriter, r *http.Request) {
	if !l.sim.AcceptingConnections() {
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	l.sim.OnConnectionRequest()
}
