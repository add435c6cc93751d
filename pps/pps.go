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

// Package pps disciplines a local clock against a 1 Pulse-Per-Second
// hardware edge signal, fused with an external time-of-day source. It
// generalizes phc/pps_source.go's PPSSource/PPSSink/PPSClockSync trio
// away from a single hard-wired PiServo toward the synchronization
// core's shared servo.Pipeline, and adds the period-validation and
// time-of-day fusion steps the spec's PPS module requires that the
// teacher's PHC-to-PHC PPS sync never needed (it only ever disciplined
// one PHC off another, never off an external ToD clock).
package pps

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	"github.com/ptpcore/sync/servo"
)

// State mirrors the PPS instance's portion of the port state machine
// (§4.G): it only ever occupies the PTP-port states that make sense for
// an edge-driven source (no BMCA/negotiation states apply).
type State int

const (
	StateListening State = iota
	StateUncalibrated
	StateSlave
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateUncalibrated:
		return "UNCALIBRATED"
	case StateSlave:
		return "SLAVE"
	}
	return "UNKNOWN"
}

// Alarm is a bitfield of soft alarms, matching the port engine's alarm
// vocabulary so the harness can fold PPS and PTP alarms into one
// per-module bitfield.
type Alarm uint32

const (
	AlarmNone Alarm = 0
	AlarmNoPPSSignal Alarm = 1 << (iota - 1)
	AlarmBadSignal
	AlarmNoToD
)

const (
	notchCenterNS  = 1.0e9
	notchWidthNS   = 1.0e8
	goodPeriodsNeeded = 3
	noSignalTimeout   = 8 * time.Second
	missedEdgeTimeout = 1100 * time.Millisecond
	listeningTimeout  = 60 * time.Second
	stepThreshold     = 500 * time.Millisecond
)

// EdgeSource is the polled PPS edge device, matching phc.PPSSink's
// PollPPSSink contract.
type EdgeSource interface {
	PollPPSSink() (time.Time, error)
}

// ToDSource supplies an offset of its own notion of time-of-day from
// the reference the PPS module ultimately disciplines against.
type ToDSource interface {
	OffsetFromMaster(now time.Time) (time.Duration, error)
	NotifyStepped(offset time.Duration)
}

// Instance disciplines one local clock off one PPS edge source, fused
// with one time-of-day source.
type Instance struct {
	Name string

	edges EdgeSource
	tod   ToDSource
	clock servo.ClockDriver

	pipeline *servo.Pipeline

	state       State
	alarms      Alarm
	goodPeriods int
	lastEdge    time.Time
	lastGoodAt  time.Time
	lastPeriod  time.Duration
}

// Config configures one PPS instance's notch/Peirce/FIR/PID cascade.
type Config struct {
	StepThreshold time.Duration
	ClockControl  bool
	Mode          servo.StepMode
	PIDInterval   time.Duration
	Kp, Ki, Kd    float64
	IMax          float64
	FIRStiffness  int
}

// DefaultConfig returns the §4.G defaults (1s notch window, 500ms step
// threshold).
func DefaultConfig() Config {
	return Config{
		StepThreshold: stepThreshold,
		ClockControl:  true,
		Mode:          servo.StepModeSlewAndStep,
		PIDInterval:   time.Second,
		Kp:            0.5,
		Ki:            0.1,
		IMax:          100000,
		FIRStiffness:  4,
	}
}

// NewInstance builds a PPS instance. edges polls PPS pulses, tod
// supplies the external time-of-day comparison, clock is the driven
// local clock.
func NewInstance(name string, edges EdgeSource, tod ToDSource, clock servo.ClockDriver, cfg Config) *Instance {
	pcfg := servo.PipelineConfig{
		Mode:                 cfg.Mode,
		ClockControl:         cfg.ClockControl,
		StepThreshold:        cfg.StepThreshold,
		FIRStiffness:         cfg.FIRStiffness,
		Kp:                   cfg.Kp,
		Ki:                   cfg.Ki,
		Kd:                   cfg.Kd,
		PIDInterval:          cfg.PIDInterval,
		IMax:                 cfg.IMax,
		PeircePathDelay:      false,
		ConvergenceWindow:    5 * time.Second,
		ConvergenceThreshold: time.Microsecond,
	}
	return &Instance{
		Name:     name,
		edges:    edges,
		tod:      tod,
		clock:    clock,
		pipeline: servo.NewPipeline(pcfg),
		state:    StateListening,
	}
}

// periodVerdict applies the §4.G notch filter (centred 1.0e9ns, width
// 1.0e8ns) to a newly observed PPS period.
func periodVerdict(period time.Duration) bool {
	lo := notchCenterNS - notchWidthNS/2
	hi := notchCenterNS + notchWidthNS/2
	ns := float64(period.Nanoseconds())
	return ns >= lo && ns <= hi
}

// Poll blocks for the next PPS edge, validates its period, fuses it
// with the time-of-day source, and (once qualified) drives the servo
// pipeline. It returns the resulting alarms and state for the caller
// (the harness) to fold into the module's status snapshot.
func (p *Instance) Poll(now func() time.Time) (State, Alarm, error) {
	edgeTS, err := p.edges.PollPPSSink()
	if err != nil {
		if now().Sub(p.lastEdge) > missedEdgeTimeout {
			p.alarms |= AlarmNoPPSSignal
		}
		if now().Sub(p.lastEdge) > listeningTimeout {
			p.state = StateListening
			p.goodPeriods = 0
		}
		return p.state, p.alarms, fmt.Errorf("polling PPS edge: %w", err)
	}

	t := now()
	var period time.Duration
	if !p.lastEdge.IsZero() {
		period = edgeTS.Sub(p.lastEdge)
	}
	p.lastEdge = edgeTS

	if period == 0 {
		// first edge ever seen: nothing to validate yet.
		return p.state, p.alarms, nil
	}

	p.lastPeriod = period
	if !periodVerdict(period) {
		p.alarms |= AlarmBadSignal
		p.goodPeriods = 0
		return p.state, p.alarms, nil
	}

	p.alarms &^= AlarmBadSignal
	p.goodPeriods++
	p.lastGoodAt = t
	if p.goodPeriods < goodPeriodsNeeded {
		return p.state, p.alarms, nil
	}
	p.alarms &^= AlarmNoPPSSignal

	todOffset, err := p.tod.OffsetFromMaster(t)
	if err != nil {
		p.alarms |= AlarmNoToD
		return p.state, p.alarms, fmt.Errorf("reading time-of-day source: %w", err)
	}
	p.alarms &^= AlarmNoToD

	// offset_from_master(ToD -> nic_clock) = offset_from_master(ToD ->
	// system_clock) + compare(system_clock, nic_clock); edgeTS already is
	// the nic_clock-domain timestamp, so the residual offset is the ToD
	// offset applied against it.
	offset := todOffset

	servoState, freq := p.pipeline.Update(offset, 0, t, p.clock)
	log.Debugf(color.CyanString("[%s] pps edge: offset=%v period=%v servo=%v freq=%.1fppb", p.Name, offset, period, servoState, freq))
	switch servoState {
	case servo.StateJump:
		p.tod.NotifyStepped(-offset)
		p.state = StateUncalibrated
	case servo.StateLocked:
		if p.state == StateUncalibrated {
			p.state = StateSlave
		}
	}

	return p.state, p.alarms, nil
}

// State returns the instance's current PPS-port state.
func (p *Instance) State() State { return p.state }

// Alarms returns the instance's current soft-alarm bitfield.
func (p *Instance) Alarms() Alarm { return p.alarms }

// LastPeriod returns the most recently observed PPS period.
func (p *Instance) LastPeriod() time.Duration { return p.lastPeriod }
