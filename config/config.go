/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads and validates the synchronization daemon's YAML
// configuration, adapted from ptp/sptp/client/config.go's
// Default/Validate/ReadConfig/PrepareConfig shape and extended with the
// PORT/PPS/SERVO/HARNESS sections that client's single-protocol config
// never needed.
package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/ptpcore/sync/ptp/port"
	"github.com/ptpcore/sync/servo"
)

// PortConfig describes one PTP port to run.
type PortConfig struct {
	Iface            string        `yaml:"iface"`
	Domain           uint8         `yaml:"domain"`
	SyncInterval     time.Duration `yaml:"sync_interval"`
	AnnounceInterval time.Duration `yaml:"announce_interval"`
	DelayReqInterval time.Duration `yaml:"delay_req_interval"`
	ACL              string        `yaml:"acl"`
	DSCP             int           `yaml:"dscp"`
	// Transport selects the socket layer: "udp" (default, UDPv4/UDPv6
	// multicast per §6) or "raw" (PTP directly over Ethernet 0x88f7,
	// for links with no IP configured).
	Transport        string        `yaml:"transport"`
	SlaveOnly        bool          `yaml:"slave_only"`
	Priority1        uint8         `yaml:"priority1"`
	Priority2        uint8         `yaml:"priority2"`
	ClockClass       uint8         `yaml:"clock_class"`
}

// Validate reports whether p is sane.
func (p *PortConfig) Validate() error {
	if p.Iface == "" {
		return fmt.Errorf("iface must be specified")
	}
	if p.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	if p.AnnounceInterval <= 0 {
		return fmt.Errorf("announce_interval must be positive")
	}
	if p.DelayReqInterval <= 0 {
		return fmt.Errorf("delay_req_interval must be positive")
	}
	return nil
}

// ToPortConfig builds a port.Config from this YAML section and servoCfg.
// PortIdentity and Local are left unset: the clock identity comes from
// clockctl, not the file, so the caller fills them in.
func (p *PortConfig) ToPortConfig(servoCfg servo.PipelineConfig) port.Config {
	return port.Config{
		Domain:           p.Domain,
		SyncInterval:     p.SyncInterval,
		AnnounceInterval: p.AnnounceInterval,
		DelayReqInterval: p.DelayReqInterval,
		ACLExpr:          p.ACL,
		Servo:            servoCfg,
	}
}

// PPSConfig describes one PPS instance to run.
type PPSConfig struct {
	Name             string        `yaml:"name"`
	Device           string        `yaml:"device"`
	SerialPort       string        `yaml:"serial_port"`
	// SinkPin is the PHC pin index wired as the extts PPS input; 0 uses
	// phc.DefaultTs2PhcSinkIndex.
	SinkPin          int           `yaml:"sink_pin"`
	NotchCenter      time.Duration `yaml:"notch_center"`
	NotchWidth       time.Duration `yaml:"notch_width"`
	StepMode         string        `yaml:"step_mode"`
	ConvergenceSec   int           `yaml:"convergence_seconds"`
}

// ServoConfig describes the shared servo pipeline tuning applied to
// every PORT instance. PPS instances do not read it: cmd/syncd builds
// each one from pps.DefaultConfig(), and no PPSConfig field overrides it.
type ServoConfig struct {
	Mode             string        `yaml:"mode"`
	StepThreshold    time.Duration `yaml:"step_threshold"`
	FIRStiffness     int           `yaml:"fir_stiffness"`
	Kp               float64       `yaml:"kp"`
	Ki               float64       `yaml:"ki"`
	Kd               float64       `yaml:"kd"`
	PIDInterval      time.Duration `yaml:"pid_interval"`
	IMax             float64       `yaml:"i_max"`
	PeircePathDelay  bool          `yaml:"peirce_path_delay"`
	PeirceMaxSamples int           `yaml:"peirce_max_samples"`
	WindowMaxSamples int           `yaml:"window_max_samples"`
	WindowTimeout    time.Duration `yaml:"window_timeout"`
	ConvergenceSec   int           `yaml:"convergence_seconds"`
	ConvergenceNS    int64         `yaml:"convergence_threshold_ns"`
}

// ToPipelineConfig converts the YAML knobs into a servo.PipelineConfig.
func (s *ServoConfig) ToPipelineConfig() servo.PipelineConfig {
	return servo.PipelineConfig{
		Mode:             parseStepMode(s.Mode),
		StepThreshold:    s.StepThreshold,
		FIRStiffness:     s.FIRStiffness,
		Kp:               s.Kp,
		Ki:               s.Ki,
		Kd:               s.Kd,
		PIDInterval:      s.PIDInterval,
		IMax:             s.IMax,
		PeircePathDelay:  s.PeirceMaxSamples > 0,
		PeirceMaxSamples: s.PeirceMaxSamples,
		WindowMaxSamples: s.WindowMaxSamples,
		WindowTimeout:    s.WindowTimeout,
		ConvergenceWindow:    time.Duration(s.ConvergenceSec) * time.Second,
		ConvergenceThreshold: time.Duration(s.ConvergenceNS),
	}
}

func parseStepMode(s string) servo.StepMode {
	switch s {
	case "slew_and_step":
		return servo.StepModeSlewAndStep
	case "step_at_startup":
		return servo.StepModeStepAtStartup
	case "step_forward_only":
		return servo.StepModeStepForwardOnly
	default:
		return servo.StepModeSlewOnly
	}
}

// HarnessConfig describes the sync-module harness runtime.
type HarnessConfig struct {
	StateFile         string        `yaml:"state_file"`
	FreqFileDir       string        `yaml:"freq_file_dir"`
	StatsPeriod       time.Duration `yaml:"stats_period"`
	SdNotify          bool          `yaml:"sd_notify"`
	MetricsListenAddr string        `yaml:"metrics_listen_addr"`
}

// Config is the top-level synchronization daemon configuration.
type Config struct {
	Ports   []PortConfig  `yaml:"ports"`
	PPS     []PPSConfig   `yaml:"pps"`
	Servo   ServoConfig   `yaml:"servo"`
	Harness HarnessConfig `yaml:"harness"`
}

// DefaultConfig returns Config initialized with default values, mirroring
// client.DefaultConfig's role of providing a runnable baseline before any
// file or CLI override is applied.
func DefaultConfig() *Config {
	return &Config{
		Servo: ServoConfig{
			Mode:             "slew_and_step",
			StepThreshold:    time.Second,
			FIRStiffness:     4,
			Kp:               0.7,
			Ki:               0.3,
			PIDInterval:      time.Second,
			IMax:             500000,
			PeirceMaxSamples: 60,
			WindowMaxSamples: 8,
			WindowTimeout:    10 * time.Second,
			ConvergenceSec:   30,
			ConvergenceNS:    int64(100 * time.Microsecond),
		},
		Harness: HarnessConfig{
			StateFile:   "/var/lib/syncd/state",
			FreqFileDir: "/var/lib/syncd",
			StatsPeriod: time.Minute,
		},
	}
}

// Validate reports whether the full configuration is sane.
func (c *Config) Validate() error {
	if len(c.Ports) == 0 && len(c.PPS) == 0 {
		return fmt.Errorf("at least one port or pps instance must be configured")
	}
	for i := range c.Ports {
		if err := c.Ports[i].Validate(); err != nil {
			return fmt.Errorf("port %d: %w", i, err)
		}
	}
	for i := range c.PPS {
		if c.PPS[i].Name == "" {
			return fmt.Errorf("pps %d: name must be specified", i)
		}
	}
	if c.Servo.PIDInterval <= 0 {
		return fmt.Errorf("servo.pid_interval must be positive")
	}
	if c.Harness.StateFile == "" {
		return fmt.Errorf("harness.state_file must be specified")
	}
	return nil
}

// ReadConfig reads and validates config from path.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", c)
	return c, nil
}
