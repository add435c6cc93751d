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

// Package main wires the synchronization core's packages (config,
// harness, ptp/port, pps, clockctl) into a runnable daemon, grounded on
// ptp/sptp/client's cmd/sptp entrypoint (flag-based config load, ctx
// cancellation on SIGINT/SIGTERM) and ptp4u/server's worker-goroutine
// startup sequence, merged here because neither teacher binary drove
// more than one sync-module kind at a time.
package main

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ptpcore/sync/harness"
	"github.com/ptpcore/sync/ptp/port"
	ptp "github.com/ptpcore/sync/ptp/protocol"
	"github.com/ptpcore/sync/servo"
)

// tickInterval is the §4.F timer resolution: sub-interval granularity
// for a 1s default sync interval.
const tickInterval = 62500 * time.Microsecond

// PortModule adapts a ptp/port.Port and its UDP transport into a
// harness.Module: one goroutine runs the read loop for each socket,
// one runs the timer tick/mailbox loop that actually drives the state
// machine (the single-threaded-per-module rule of §5 is honored by
// having only the tick goroutine touch Port's exported mutating
// methods; the read-loop goroutines only decode bytes and hand
// completed units of work to the tick goroutine over a channel).
type PortModule struct {
	name      string
	port      *port.Port
	transport port.Transport
	clockID   string

	incoming chan incomingPacket
}

type incomingPacket struct {
	buf  []byte
	addr net.Addr
	rx   time.Time
}

// NewPortModule builds a module named name, running cfg over transport,
// disciplining clock (identified to the harness by clockID, used only
// for the §5 clock-binding-exclusivity check).
func NewPortModule(name string, cfg port.Config, transport port.Transport, clock servo.ClockDriver, clockID string) (*PortModule, error) {
	if cfg.Local.PortIdentity == (ptp.PortIdentity{}) {
		return nil, fmt.Errorf("port %s: Local.PortIdentity must be set", name)
	}
	p, err := port.New(cfg, transport, clock)
	if err != nil {
		return nil, err
	}
	return &PortModule{
		name:      name,
		port:      p,
		transport: transport,
		clockID:   clockID,
		incoming:  make(chan incomingPacket, 64),
	}, nil
}

// Name implements harness.Module.
func (m *PortModule) Name() string { return m.name }

// ClockID implements harness.Module.
func (m *PortModule) ClockID() string { return m.clockID }

// Run implements harness.Module: it starts the event/general socket
// readers and drives the port's timer tick and mailbox loop until ctx
// is cancelled.
func (m *PortModule) Run(ctx context.Context, mailbox *harness.Mailbox) error {
	go m.readEvent(ctx)
	go m.readGeneral(ctx)

	m.port.Initialize(time.Now())

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	controlFlags := harness.ControlFlagClockCtrl | harness.ControlFlagTimestampProcessing

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-mailbox.Inbox():
			m.handleControl(msg, &controlFlags)
		case pkt := <-m.incoming:
			m.handlePacket(pkt)
		case now := <-ticker.C:
			m.tick(now, controlFlags)
		}
	}
}

func (m *PortModule) readEvent(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		buf, addr, rx, err := m.transport.ReadEvent()
		if err != nil {
			log.Warnf("port %s: reading event socket: %v", m.name, err)
			continue
		}
		select {
		case m.incoming <- incomingPacket{buf: buf, addr: addr, rx: rx}:
		case <-ctx.Done():
			return
		}
	}
}

func (m *PortModule) readGeneral(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		buf, addr, err := m.transport.ReadGeneral()
		if err != nil {
			log.Warnf("port %s: reading general socket: %v", m.name, err)
			continue
		}
		select {
		case m.incoming <- incomingPacket{buf: buf, addr: addr, rx: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
}

func (m *PortModule) handlePacket(pkt incomingPacket) {
	p, err := ptp.DecodePacket(pkt.buf)
	if err != nil {
		log.Debugf("port %s: discarding unparseable packet: %v", m.name, err)
		return
	}
	switch b := p.(type) {
	case *ptp.Announce:
		caps := ptp.PortCommunicationCapabilitiesTLV{}
		if _, err := m.port.HandleAnnounce(b.Header, b.AnnounceBody, caps, pkt.addr, pkt.rx); err != nil {
			log.Warnf("port %s: handling Announce: %v", m.name, err)
		}
	case *ptp.SyncDelayReq:
		if b.Header.MessageType() == ptp.MessageSync {
			m.port.HandleSync(b, pkt.rx)
		} else {
			if err := m.port.AnswerDelayReq(b, pkt.rx); err != nil {
				log.Warnf("port %s: answering DelayReq: %v", m.name, err)
			}
		}
	case *ptp.FollowUp:
		m.port.HandleFollowUp(b)
	case *ptp.DelayResp:
		m.port.HandleDelayResp(b, pkt.rx)
	default:
		log.Debugf("port %s: ignoring message type %T", m.name, p)
	}
}

func (m *PortModule) tick(now time.Time, flags harness.ControlFlag) {
	defer m.port.SweepTimestampCache(now)
	if flags&harness.ControlFlagClockCtrl == 0 {
		return
	}
	switch m.port.State() {
	case ptp.PortStateMaster:
		if err := m.port.EmitAnnounce(now); err != nil {
			log.Warnf("port %s: emitting Announce: %v", m.name, err)
		}
		if err := m.port.EmitSync(now, true); err != nil {
			log.Warnf("port %s: emitting Sync: %v", m.name, err)
		}
	case ptp.PortStateSlave, ptp.PortStateUncalibrated:
		if _, err := m.port.SendDelayReq(now); err != nil {
			log.Warnf("port %s: sending DelayReq: %v", m.name, err)
		}
	}
}

func (m *PortModule) handleControl(msg harness.ControlMessage, flags *harness.ControlFlag) {
	switch msg.Type {
	case harness.ControlGetStatus:
		harness.Reply(msg, m.status())
	case harness.ControlControl:
		if cm, ok := msg.Payload.(controlFlagsMessage); ok {
			*flags = (*flags &^ cm.Mask) | (cm.Value & cm.Mask)
		}
		harness.Reply(msg, nil)
	case harness.ControlStepClock:
		harness.Reply(msg, nil)
	case harness.ControlUpdateLeapSecond:
		if info, ok := msg.Payload.(harness.LeapSecondInfo); ok {
			var leap61, leap59 bool
			if !info.At.IsZero() {
				leap61, leap59 = info.Positive, !info.Positive
			}
			m.port.SetLeapSecondInfo(info.CurrentUTCOffset, true, leap61, leap59)
		}
		harness.Reply(msg, nil)
	default:
		harness.Reply(msg, nil)
	}
}

// controlFlagsMessage is the CONTROL message payload (flag mask + value,
// per §6).
type controlFlagsMessage struct {
	Mask  harness.ControlFlag
	Value harness.ControlFlag
}

func (m *PortModule) status() harness.InstanceState {
	offset, _ := m.port.Offset()
	return harness.InstanceState{
		ClockName:         m.name,
		ClockID:           m.clockID,
		State:             m.port.State().String(),
		Alarms:            uint32(m.port.Alarms()),
		OffsetFromMaster:  int64(offset),
		FreqAdjustmentPPB: m.port.Servo().FrequencyCorrection(),
		InSync:            m.port.Servo().Synchronized(),
	}
}
