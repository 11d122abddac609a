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

// Command cwmpsim runs one simulated CWMP/TR-069 CPE against an ACS URL
// given in its config file, wiring in the optional fleet/audit/admin/
// console components the config enables (SPEC_FULL.md sec 4.7-4.11).
// Grounded on cmd/cwmpacs/main.go's init/start/signal-shutdown shape.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/n4-networks/cwmpsim/internal/adminws"
	"github.com/n4-networks/cwmpsim/internal/audit"
	"github.com/n4-networks/cwmpsim/internal/config"
	"github.com/n4-networks/cwmpsim/internal/connreq"
	"github.com/n4-networks/cwmpsim/internal/console"
	"github.com/n4-networks/cwmpsim/internal/fleet"
	"github.com/n4-networks/cwmpsim/internal/model"
	"github.com/n4-networks/cwmpsim/internal/simulator"
	"github.com/n4-networks/cwmpsim/internal/soap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	cfgPath := flag.String("config", "", "path to cwmpsim.yaml (default: searched well-known locations)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("cwmpsim: load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("cwmpsim: %v", err)
	}

	identity := model.Identity{
		Manufacturer: cfg.Simulator.Manufacturer,
		OUI:          cfg.Simulator.OUI,
		ProductClass: cfg.Simulator.ProductClass,
		SerialNumber: cfg.Simulator.SerialNumber,
		MacAddr:      cfg.Simulator.MacAddr,
		Username:     cfg.Simulator.Username,
		Password:     cfg.Simulator.Password,
	}

	connReqURL, err := connectionRequestURL(cfg.Simulator.ACSURL, cfg.Simulator.ConnReqHost, cfg.Simulator.ConnReqPort)
	if err != nil {
		log.Fatalf("cwmpsim: determine connection-request URL: %v", err)
	}

	store := model.NewStore()
	store.Load(model.DefaultTemplate(identity, connReqURL))

	simCfg := simulator.Config{
		ACSURL:                 cfg.Simulator.ACSURL,
		Identity:               identity,
		SessionTimeout:         time.Duration(cfg.Simulator.SessionTimeoutMs) * time.Millisecond,
		PeriodicInformInterval: time.Duration(cfg.Simulator.PeriodicInformIntervalSec) * time.Second,
		StopWindow:             time.Duration(cfg.Simulator.StopWindowMs) * time.Millisecond,
		ConnectionRequestAddr:  fmt.Sprintf("%s:%d", cfg.Simulator.ConnReqHost, cfg.Simulator.ConnReqPort),
	}
	sim := simulator.New(simCfg, store)
	sim.SetNameCache(fleet.NewLocalNameCache())

	listener := connreq.New(sim, cfg.Simulator.ConnReqHost, cfg.Simulator.ConnReqPort)
	listener.Start()
	log.Printf("cwmpsim: connection-request listener on %s", listener.URL())

	if cfg.Audit.Mongo.Enabled {
		sink, err := audit.Connect(cfg.Audit.Mongo.URI, cfg.Audit.Mongo.Database, 5*time.Second)
		if err != nil {
			log.Printf("cwmpsim: audit mongo disabled, connect failed: %v", err)
		} else {
			sim.AddObserver(sink)
			log.Println("cwmpsim: audit sink connected")
		}
	}

	var hub *adminws.Hub
	if cfg.Admin.WS.Enabled {
		hub = adminws.New(cfg.Admin.WS.Addr)
		hub.Start()
		sim.AddObserver(hub)
		log.Printf("cwmpsim: admin websocket feed on %s/ws", cfg.Admin.WS.Addr)
	}

	closers := startFleet(sim, cfg.Fleet)

	var con *console.Console
	if cfg.Admin.Console.Enabled {
		con = console.New(sim, "")
		go con.Run()
	}

	sim.TriggerInform(soap.EventBootstrap)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("cwmpsim: shutting down")
	listener.Stop()
	if hub != nil {
		hub.Stop()
	}
	if con != nil {
		con.Stop()
	}
	for _, c := range closers {
		c()
	}
}

// connectionRequestURL resolves the local IP this process would be
// reachable on by the ACS (spec.md sec 4.6) and builds the URL published
// in ManagementServer.ConnectionRequestURL.
func connectionRequestURL(acsURL, host string, port int) (string, error) {
	if host == "" || host == "0.0.0.0" {
		u, err := url.Parse(acsURL)
		if err != nil {
			return "", fmt.Errorf("parse acsURL %q: %w", acsURL, err)
		}
		acsHostPort := u.Host
		if u.Port() == "" {
			if u.Scheme == "https" {
				acsHostPort += ":443"
			} else {
				acsHostPort += ":80"
			}
		}
		ip, err := connreq.LocalIP(acsHostPort)
		if err != nil {
			return "", err
		}
		host = ip
	}
	return fmt.Sprintf("http://%s:%d/", host, port), nil
}

// startFleet wires whichever of MQTT/STOMP/Redis the config enables and
// returns their shutdown funcs (SPEC_FULL.md sec 4.9).
func startFleet(sim *simulator.Simulator, fc config.FleetConfig) []func() {
	var closers []func()

	if fc.MQTT.Enabled {
		pub, err := fleet.NewMQTTPublisher(fc.MQTT.Broker, fc.MQTT.ClientID, fc.MQTT.Topic)
		if err != nil {
			log.Printf("cwmpsim: mqtt publisher disabled: %v", err)
		} else {
			sim.AddObserver(&telemetryObserver{pub: pub})
			closers = append(closers, pub.Close)
			log.Printf("cwmpsim: mqtt telemetry -> %s/%s", fc.MQTT.Broker, fc.MQTT.Topic)
		}
	}

	if fc.STOMP.Enabled {
		pub, err := fleet.NewStompPublisher(fc.STOMP.Addr, fc.STOMP.Queue)
		if err != nil {
			log.Printf("cwmpsim: stomp publisher disabled: %v", err)
		} else {
			sim.AddObserver(&telemetryObserver{pub: pub})
			closers = append(closers, pub.Close)
			log.Printf("cwmpsim: stomp telemetry -> %s/%s", fc.STOMP.Addr, fc.STOMP.Queue)
		}
	}

	if fc.Redis.Enabled {
		trig, err := fleet.NewRedisTrigger(fc.Redis.Addr, fc.Redis.TriggerChannel, sim)
		if err != nil {
			log.Printf("cwmpsim: redis trigger disabled: %v", err)
		} else {
			closers = append(closers, trig.Close)
			log.Printf("cwmpsim: redis trigger <- %s/%s", fc.Redis.Addr, fc.Redis.TriggerChannel)
		}

		if cache, err := fleet.NewNameCacheFromAddr(fc.Redis.Addr); err != nil {
			log.Printf("cwmpsim: redis name cache disabled: %v", err)
		} else {
			sim.SetNameCache(cache)
			log.Printf("cwmpsim: redis name cache <- %s", fc.Redis.Addr)
		}
	}

	return closers
}

// telemetryObserver adapts a fleet.Publisher (session-close telemetry) to
// the simulator.Observer callback, translating every lifecycle Event into
// one Telemetry message. It tracks the most recent session_start timestamp
// itself so it can report each session's wall-clock duration, since
// simulator.Event carries no such field.
type telemetryObserver struct {
	pub fleet.Publisher

	mu      sync.Mutex
	started time.Time
}

func (o *telemetryObserver) Notify(ev simulator.Event) {
	switch ev.Kind {
	case "session_start":
		o.mu.Lock()
		o.started = ev.Time
		o.mu.Unlock()
		return
	case "session_close", "session_error":
	default:
		return
	}

	o.mu.Lock()
	started := o.started
	o.mu.Unlock()
	var durationMs int64
	if !started.IsZero() {
		durationMs = ev.Time.Sub(started).Milliseconds()
	}

	if err := o.pub.Publish(fleet.Telemetry{
		EventCode:   ev.EventCode,
		FaultCode:   ev.FaultCode,
		FaultString: ev.FaultString,
		DurationMs:  durationMs,
	}); err != nil {
		log.Printf("cwmpsim: publish telemetry: %v", err)
	}
}
