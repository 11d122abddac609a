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

// Package config loads the YAML configuration file this simulator starts
// from, grounded on the teacher's pkg/config/config.go shape but trimmed
// to a single simulated CPE (SPEC_FULL.md sec 4.7).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level document shape.
type Config struct {
	Simulator SimulatorConfig `yaml:"simulator"`
	Logging   LoggingConfig   `yaml:"logging"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Audit     AuditConfig     `yaml:"audit"`
	Admin     AdminConfig     `yaml:"admin"`
}

// SimulatorConfig configures the device identity and session engine.
type SimulatorConfig struct {
	ACSURL                    string `yaml:"acsURL"`
	Manufacturer              string `yaml:"manufacturer"`
	OUI                       string `yaml:"oui"`
	ProductClass              string `yaml:"productClass"`
	SerialNumber              string `yaml:"serialNumber"`
	MacAddr                   string `yaml:"macAddr"`
	Username                  string `yaml:"username"`
	Password                  string `yaml:"password"`
	SessionTimeoutMs          int    `yaml:"sessionTimeoutMs"`
	PeriodicInformIntervalSec int    `yaml:"periodicInformIntervalSec"`
	StopWindowMs              int    `yaml:"stopWindowMs"`
	ConnReqHost               string `yaml:"connReqHost"`
	ConnReqPort               int    `yaml:"connReqPort"`
}

// LoggingConfig mirrors the teacher's LoggingConfig shape (pkg/config).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// FleetConfig configures the optional telemetry/trigger wires (SPEC_FULL
// sec 4.9): MQTT/STOMP publish the same session-close telemetry, Redis
// both triggers sessions and caches GetParameterNames results.
type FleetConfig struct {
	MQTT  MqttConfig  `yaml:"mqtt"`
	STOMP StompConfig `yaml:"stomp"`
	Redis RedisConfig `yaml:"redis"`
}

type MqttConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientId"`
}

type StompConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Queue   string `yaml:"queue"`
}

type RedisConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	TriggerChannel string `yaml:"triggerChannel"`
}

// AuditConfig configures the write-only session/transfer sink (SPEC_FULL
// sec 4.8).
type AuditConfig struct {
	Mongo MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// AdminConfig configures the websocket event feed and local console
// (SPEC_FULL sec 4.10/4.11).
type AdminConfig struct {
	WS      WSConfig      `yaml:"ws"`
	Console ConsoleConfig `yaml:"console"`
}

type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type ConsoleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the YAML config at path, expanding ${VAR} and
// $VAR references against the process environment before unmarshaling
// (matches the teacher's LoadConfig contract). An empty path searches the
// same well-known locations the teacher's findConfigFile tries.
func Load(path string) (*Config, error) {
	if path == "" {
		path = findConfigFile()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func findConfigFile() string {
	locations := []string{
		"./cwmpsim.yaml",
		"./configs/cwmpsim.yaml",
		"/etc/cwmpsim/config.yaml",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return "./cwmpsim.yaml"
}

func applyDefaults(c *Config) {
	if c.Simulator.PeriodicInformIntervalSec == 0 {
		c.Simulator.PeriodicInformIntervalSec = 10
	}
	if c.Simulator.StopWindowMs == 0 {
		c.Simulator.StopWindowMs = 3000
	}
	if c.Simulator.ConnReqPort == 0 {
		c.Simulator.ConnReqPort = 7547
	}
}

// Validate checks the fields the simulator cannot start without.
func (c *Config) Validate() error {
	if c.Simulator.ACSURL == "" {
		return fmt.Errorf("config: simulator.acsURL is required")
	}
	if c.Simulator.SerialNumber == "" {
		return fmt.Errorf("config: simulator.serialNumber is required")
	}
	return nil
}
