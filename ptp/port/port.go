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

// Package port implements one PTP port: a state machine that can act as
// a SLAVE (gathering Sync/FollowUp/DelayResp into offset/path-delay
// samples), a MASTER (emitting Announce/Sync/FollowUp and answering
// DelayReq), or PASSIVE, depending on what BMCA decides. The teacher
// keeps master (ptp4u/server) and slave (ptp/sptp/client) as separate
// binaries with separate types; this merges them into the single port
// abstraction the synchronization core wants, the way ptp4l/sfptpd
// model a port capable of either role.
package port

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ptpcore/sync/bmca"
	"github.com/ptpcore/sync/foreignmaster"
	ptp "github.com/ptpcore/sync/ptp/protocol"
	"github.com/ptpcore/sync/servo"
	"github.com/ptpcore/sync/tscache"
)

// Alarm is the §4.F soft-alarm bitfield. Alarms never change port state
// on their own; they only suppress servo convergence assertions.
type Alarm uint32

const (
	AlarmNone Alarm = 0
	AlarmNoSyncPkts Alarm = 1 << (iota - 1)
	AlarmNoFollowUps
	AlarmNoDelayResps
	AlarmServoFail
	AlarmNoInterface
	AlarmNoTxTimestamps
	AlarmNoRxTimestamps
)

// TimerID names the §4.F interval timers.
type TimerID int

const (
	TimerPDelayReqInterval TimerID = iota
	TimerPDelayRespReceipt
	TimerDelayReqInterval
	TimerDelayRespReceipt
	TimerSyncReceipt
	TimerSyncInterval
	TimerAnnounceReceipt
	TimerAnnounceInterval
	TimerOperatorMessages
	TimerFaultRestart
	TimerForeignMaster
	TimerTimestampCheck
	numTimers
)

// hybridFallbackThreshold is the number of consecutive unicast
// delay-resp losses before falling back to multicast (§4.F).
const hybridFallbackThreshold = 3

// Transport abstracts the socket layer a port sends/receives over,
// whether UDP multicast/unicast or raw Ethernet (§6). Both UDPTransport
// and RawTransport implement the full interface so PortModule can drive
// either one identically.
type Transport interface {
	Send(p ptp.Packet, addr net.Addr) (time.Time, error)
	LocalClockIdentity() ptp.ClockIdentity
	ReadEvent() ([]byte, net.Addr, time.Time, error)
	ReadGeneral() ([]byte, net.Addr, error)
	Close() error
}

// Config configures one port instance.
type Config struct {
	PortIdentity      ptp.PortIdentity
	Domain            uint8
	SyncInterval      time.Duration
	AnnounceInterval  time.Duration
	AnnounceReceiptTimeouts int // multiplier for AnnounceReceipt timer, per 9.2.6.11
	DelayReqInterval  time.Duration
	ACLExpr           string
	Local             bmca.LocalClock // Local.SlaveOnly governs whether this port ever emits Announce/Sync

	Servo servo.PipelineConfig
}

// Port is the unified port engine.
type Port struct {
	cfg       Config
	transport Transport
	acl       *ACL

	state  ptp.PortState
	alarms Alarm

	foreignMasters *foreignmaster.Dataset
	servo          *servo.Pipeline
	cache          *tscache.Cache
	clock          servo.ClockDriver

	lastOffset    time.Duration
	lastPathDelay time.Duration

	// currentParent is the port identity of the foreign master we are
	// currently synchronized to, fed back into bmca.Options.CurrentParent
	// so Figure 28's exactly-one-stepsRemoved tie-break can recognize an
	// already-selected path and avoid flapping.
	currentParent ptp.PortIdentity

	utcOffset     int16
	utcOffsetFlag bool
	leapFlag      uint16

	timers [numTimers]time.Time

	// slave-path sequencing
	eventSeq        uint16
	lastDelayReqSeq uint16
	waitingFollowUp bool
	pendingSyncSeq  uint16
	pendingSyncRx   time.Time
	earlyFollowUps  map[uint16]*ptp.FollowUp

	// offset/path-delay assembly (§4.F step 1-3)
	pendingT1, pendingT2, pendingT3, pendingT4 time.Time
	haveT1T2, haveT3T4                         bool

	// master-path sequencing
	syncSeq     uint16
	announceSeq uint16

	hybridUnicast    bool
	hybridFailCount  int

	everBeenLocked bool
}

// New builds a port in the UNINITIALIZED state, disciplining clock via
// the servo pipeline once enough Sync/DelayResp samples accumulate.
func New(cfg Config, transport Transport, clock servo.ClockDriver) (*Port, error) {
	acl, err := NewACL(cfg.ACLExpr)
	if err != nil {
		return nil, err
	}
	if cfg.AnnounceReceiptTimeouts == 0 {
		cfg.AnnounceReceiptTimeouts = 3
	}
	return &Port{
		cfg:            cfg,
		transport:      transport,
		acl:            acl,
		clock:          clock,
		state:          ptp.PortStateUninitialized,
		foreignMasters: foreignmaster.New(32, 2),
		servo:          servo.NewPipeline(cfg.Servo),
		cache:          tscache.New(),
		earlyFollowUps: make(map[uint16]*ptp.FollowUp),
	}, nil
}

// Servo exposes the port's servo pipeline for status reporting (offset
// convergence, persisted frequency correction) and SAVE_STATE.
func (p *Port) Servo() *servo.Pipeline { return p.servo }

// Offset returns the most recently computed offset-from-master and
// one-way path delay.
func (p *Port) Offset() (offset, pathDelay time.Duration) {
	return p.lastOffset, p.lastPathDelay
}

// SetLeapSecondInfo updates the UTC offset and pending leap-second flags
// this port advertises in Announce messages while it is MASTER; the
// harness calls this on UPDATE_LEAP_SECOND (§6).
func (p *Port) SetLeapSecondInfo(utcOffset int16, utcOffsetValid bool, leap61, leap59 bool) {
	p.utcOffset = utcOffset
	p.utcOffsetFlag = utcOffsetValid
	var flag uint16
	if leap61 {
		flag |= ptp.FlagLeap61
	}
	if leap59 {
		flag |= ptp.FlagLeap59
	}
	p.leapFlag = flag
}

// State returns the port's current state.
func (p *Port) State() ptp.PortState { return p.state }

// Alarms returns the current soft-alarm bitfield.
func (p *Port) Alarms() Alarm { return p.alarms }

// Initialize transitions UNINITIALIZED -> LISTENING and arms the
// announce-receipt, sync-interval and announce-interval timers.
func (p *Port) Initialize(now time.Time) {
	p.state = ptp.PortStateListening
	p.timers[TimerAnnounceReceipt] = now.Add(time.Duration(p.cfg.AnnounceReceiptTimeouts) * p.cfg.AnnounceInterval)
	p.timers[TimerSyncInterval] = now.Add(p.cfg.SyncInterval)
	p.timers[TimerAnnounceInterval] = now.Add(p.cfg.AnnounceInterval)
}

// seqInWindow implements the §5 modulo-16 sequence window: a newly
// observed sequence number must fall in [last+1, last+16] (mod 2^16) to
// be considered in-order rather than a duplicate/gap.
func seqInWindow(last, seq uint16) bool {
	delta := seq - last
	return delta >= 1 && delta <= 16
}

// HandleAnnounce records the Announce in the foreign-master dataset (if
// it passes the ACL) and re-runs BMCA.
func (p *Port) HandleAnnounce(hdr ptp.Header, body ptp.AnnounceBody, caps ptp.PortCommunicationCapabilitiesTLV, addr net.Addr, now time.Time) (bmca.Decision, error) {
	ip := udpAddrIP(addr)
	params := map[string]any{
		"domain":       int(hdr.DomainNumber),
		"clockClass":   int(body.GrandmasterClockQuality.ClockClass),
		"stepsRemoved": int(body.StepsRemoved),
		"unicast":      hdr.FlagField&ptp.FlagUnicast != 0,
		"sourceAddress": ip.String(),
	}
	allowed, err := p.acl.Allow(params)
	if err != nil {
		return bmca.Decision{}, err
	}
	if !allowed {
		return bmca.Decision{State: p.state}, nil
	}

	p.logReceive("ANNOUNCE", "seq=%d gmIdentity=%s stepsRemoved=%d", hdr.SequenceID, body.GrandmasterIdentity, body.StepsRemoved)
	p.foreignMasters.Insert(hdr, body, caps, ip, now)
	p.timers[TimerAnnounceReceipt] = now.Add(time.Duration(p.cfg.AnnounceReceiptTimeouts) * p.cfg.AnnounceInterval)

	local := p.cfg.Local
	local.EverBeenLocked = local.EverBeenLocked || p.everBeenLocked
	opts := bmca.Options{Local: local, CurrentState: p.state, CurrentParent: p.currentParent}
	decision, stale := bmca.Run(p.foreignMasters, now, opts)
	for _, rec := range stale {
		p.foreignMasters.Remove(rec.PortIdentity)
	}
	if decision.Best != nil {
		p.currentParent = decision.Best.PortIdentity
	}
	if decision.Changed {
		p.transitionTo(decision.State)
	}
	return decision, nil
}

// udpAddrIP extracts a netip.Addr from a net.Addr for storage in the
// foreign-master dataset; unparseable/nil addresses yield the zero
// value, which Record.SenderAddr tolerates (it is informational only).
func udpAddrIP(addr net.Addr) netip.Addr {
	udp, ok := addr.(*net.UDPAddr)
	if !ok || udp == nil {
		return netip.Addr{}
	}
	a, ok := netip.AddrFromSlice(udp.IP)
	if !ok {
		return netip.Addr{}
	}
	return a.Unmap()
}

func (p *Port) transitionTo(state ptp.PortState) {
	if state == ptp.PortStateSlave {
		p.everBeenLocked = true
	}
	p.state = state
}

// HandleSync implements the §4.F slave-path Sync handling: records the
// monotonic receive time, and if the message is a one-step Sync
// (OriginTimestamp already carries the precise origin) assembles t1/t2
// immediately; otherwise it waits for the matching FollowUp.
func (p *Port) HandleSync(b *ptp.SyncDelayReq, rxTS time.Time) {
	p.logReceive("SYNC", "seq=%d twoStep=%v", b.SequenceID, b.FlagField&ptp.FlagTwoStep != 0)
	if !seqInWindow(p.pendingSyncSeq, b.SequenceID) && p.waitingFollowUp {
		p.alarms |= AlarmNoFollowUps
		p.waitingFollowUp = false
	}

	oneStep := b.FlagField&ptp.FlagTwoStep == 0
	if oneStep {
		t1 := b.OriginTimestamp.Time().Add(-corrToDuration(b.CorrectionField))
		p.feedOffset(t1, rxTS)
		return
	}

	if fu, ok := p.earlyFollowUps[b.SequenceID]; ok {
		t1 := fu.PreciseOriginTimestamp.Time().Add(-corrToDuration(fu.CorrectionField))
		p.feedOffset(t1, rxTS)
		delete(p.earlyFollowUps, b.SequenceID)
		p.waitingFollowUp = false
		return
	}

	p.waitingFollowUp = true
	p.pendingSyncSeq = b.SequenceID
	p.pendingSyncRx = rxTS
	p.alarms &^= AlarmNoSyncPkts
	p.timers[TimerSyncReceipt] = rxTS.Add(2 * p.cfg.SyncInterval)
}

// HandleFollowUp implements the out-of-order FollowUp cache: a FollowUp
// arriving before its Sync is cached and applied when the Sync shows up.
func (p *Port) HandleFollowUp(b *ptp.FollowUp) {
	if !p.waitingFollowUp || b.SequenceID != p.pendingSyncSeq {
		p.earlyFollowUps[b.SequenceID] = b
		return
	}
	t1 := b.PreciseOriginTimestamp.Time().Add(-corrToDuration(b.CorrectionField))
	p.feedOffset(t1, p.pendingSyncRx)
	p.waitingFollowUp = false
	p.alarms &^= AlarmNoFollowUps
}

// feedOffset stashes (t1,t2) until the matching DelayReq/DelayResp pair
// produces (t3,t4), at which point the full offset/path-delay formula
// from §4.F step 3 runs.
func (p *Port) feedOffset(t1, t2 time.Time) {
	p.pendingT1 = t1
	p.pendingT2 = t2
	p.haveT1T2 = true
	p.tryComputeSample()
}

// SendDelayReq emits a DelayReq and reserves a timestamp ticket for its
// TX timestamp.
func (p *Port) SendDelayReq(now time.Time) (uint16, error) {
	seq := p.eventSeq
	p.eventSeq++
	p.lastDelayReqSeq = seq
	req := &ptp.SyncDelayReq{
		Header: ptp.Header{
			SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessageDelayReq, 0),
			Version:            ptp.Version,
			MessageLength:      uint16(binary.Size(ptp.SyncDelayReq{})),
			SequenceID:         seq,
			SourcePortIdentity: p.cfg.PortIdentity,
			LogMessageInterval: 0x7f,
		},
	}
	pdu, err := ptp.Bytes(req)
	if err != nil {
		return 0, err
	}
	p.cache.Reserve(pdu, 0, seq, now)
	p.timers[TimerDelayRespReceipt] = now.Add(2 * p.cfg.DelayReqInterval)
	return seq, nil
}

// HandleDelayResp implements §4.F step 2/3: matches the response's
// sequence to the last DelayReq, computes t3/t4, and if t1/t2 are also
// available, finishes the one-way-delay/offset computation and feeds
// the servo.
func (p *Port) HandleDelayResp(b *ptp.DelayResp, t3 time.Time) {
	p.logReceive("DELAY_RESP", "seq=%d requestingPort=%v", b.SequenceID, b.RequestingPortIdentity)
	if b.SequenceID != p.lastDelayReqSeq {
		p.alarms |= AlarmNoDelayResps
		return
	}
	p.alarms &^= AlarmNoDelayResps
	t4 := b.ReceiveTimestamp.Time()
	p.pendingT3 = t3
	p.pendingT4 = t4
	p.haveT3T4 = true
	p.tryComputeSample()
}

func (p *Port) tryComputeSample() {
	if !p.haveT1T2 || !p.haveT3T4 {
		return
	}
	t1, t2, t3, t4 := p.pendingT1, p.pendingT2, p.pendingT3, p.pendingT4
	pathDelay := (t2.Sub(t1) + t4.Sub(t3)) / 2
	offset := (t2.Sub(t1) - t4.Sub(t3)) / 2
	p.haveT1T2, p.haveT3T4 = false, false

	now := t4
	p.lastOffset = offset
	state, _ := p.servo.Update(offset, pathDelay, now, p.clock)
	p.lastPathDelay = p.servo.FilteredPathDelay()
	p.alarms &^= AlarmServoFail
	log.Debugf("port %v: offset=%v pathDelay=%v filtered=%v servo=%v", p.cfg.PortIdentity, offset, pathDelay, p.lastPathDelay, state)
}

// ResolveTxTimestamp correlates a transmit timestamp recovered
// asynchronously from the kernel error queue (by the concrete
// Transport's error-queue listener) against the pending ticket cache
// reserved in SendDelayReq, returning the sequence number the
// reservation was made under.
func (p *Port) ResolveTxTimestamp(recovered []byte, now time.Time) (seq uint16, ok bool) {
	user, matched := p.cache.Match(recovered, now)
	if !matched {
		return 0, false
	}
	s, isSeq := user.(uint16)
	return s, isSeq
}

// SweepTimestampCache accounts every still-pending timestamp ticket into
// its quantile bucket; the harness calls this on TIMESTAMP_CHECK.
func (p *Port) SweepTimestampCache(now time.Time) {
	p.cache.Sweep(now)
}

func corrToDuration(c ptp.Correction) time.Duration {
	if c.TooBig() {
		return 0
	}
	return time.Duration(c.Nanoseconds())
}

// --- master path ---

// EmitAnnounce builds and sends an Announce advertising the local
// clock's dataset.
func (p *Port) EmitAnnounce(now time.Time) error {
	seq := p.announceSeq
	p.announceSeq++
	body := p.cfg.Local.SelfAnnounce()
	body.CurrentUTCOffset = p.utcOffset
	var flags uint16
	if p.utcOffsetFlag {
		flags |= ptp.FlagCurrentUtcOffsetValid
	}
	flags |= p.leapFlag
	pkt := &ptp.Announce{
		Header: ptp.Header{
			SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessageAnnounce, 0),
			Version:            ptp.Version,
			MessageLength:      uint16(binary.Size(ptp.Announce{})),
			SequenceID:         seq,
			SourcePortIdentity: p.cfg.PortIdentity,
			DomainNumber:       p.cfg.Domain,
			FlagField:          flags,
			LogMessageInterval: logInterval(p.cfg.AnnounceInterval),
		},
		AnnounceBody: body,
	}
	_, err := p.transport.Send(pkt, nil)
	if err == nil {
		p.logSent("ANNOUNCE", "seq=%d gmIdentity=%s", seq, body.GrandmasterIdentity)
	}
	p.timers[TimerAnnounceInterval] = now.Add(p.cfg.AnnounceInterval)
	return err
}

// EmitSync sends a Sync and, if two-step, immediately sends a FollowUp
// carrying the transmit time the Transport's Send returned.
func (p *Port) EmitSync(now time.Time, twoStep bool) error {
	seq := p.syncSeq
	p.syncSeq++
	var flags uint16
	if twoStep {
		flags |= ptp.FlagTwoStep
	}
	pkt := &ptp.SyncDelayReq{
		Header: ptp.Header{
			SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessageSync, 0),
			Version:            ptp.Version,
			MessageLength:      uint16(binary.Size(ptp.SyncDelayReq{})),
			SequenceID:         seq,
			SourcePortIdentity: p.cfg.PortIdentity,
			DomainNumber:       p.cfg.Domain,
			FlagField:          flags,
			LogMessageInterval: logInterval(p.cfg.SyncInterval),
		},
	}
	txTS, err := p.transport.Send(pkt, nil)
	if err != nil {
		return err
	}
	p.logSent("SYNC", "seq=%d twoStep=%v", seq, twoStep)
	p.timers[TimerSyncInterval] = now.Add(p.cfg.SyncInterval)
	if twoStep {
		return p.emitFollowUp(seq, txTS)
	}
	return nil
}

func (p *Port) emitFollowUp(seq uint16, preciseOrigin time.Time) error {
	pkt := &ptp.FollowUp{
		Header: ptp.Header{
			SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessageFollowUp, 0),
			Version:            ptp.Version,
			MessageLength:      uint16(binary.Size(ptp.FollowUp{})),
			SequenceID:         seq,
			SourcePortIdentity: p.cfg.PortIdentity,
		},
		FollowUpBody: ptp.FollowUpBody{PreciseOriginTimestamp: ptp.NewTimestamp(preciseOrigin)},
	}
	_, err := p.transport.Send(pkt, nil)
	return err
}

// AnswerDelayReq implements the master-path DelayResp emission (§4.F):
// echo the requester's port identity and the DelayReq's receive time.
func (p *Port) AnswerDelayReq(req *ptp.SyncDelayReq, rxTS time.Time) error {
	resp := &ptp.DelayResp{
		Header: ptp.Header{
			SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessageDelayResp, 0),
			Version:            ptp.Version,
			MessageLength:      uint16(binary.Size(ptp.DelayResp{})),
			SequenceID:         req.SequenceID,
			SourcePortIdentity: p.cfg.PortIdentity,
		},
		DelayRespBody: ptp.DelayRespBody{
			ReceiveTimestamp:       ptp.NewTimestamp(rxTS),
			RequestingPortIdentity: req.SourcePortIdentity,
		},
	}
	_, err := p.transport.Send(resp, nil)
	if err == nil {
		p.logSent("DELAY_RESP", "seq=%d requestingPort=%v", req.SequenceID, req.SourcePortIdentity)
	}
	return err
}

// RecordHybridOutcome tracks consecutive unicast delay-resp losses and
// falls back to multicast after hybridFallbackThreshold.
func (p *Port) RecordHybridOutcome(responded bool) {
	if !p.hybridUnicast {
		return
	}
	if responded {
		p.hybridFailCount = 0
		return
	}
	p.hybridFailCount++
	if p.hybridFailCount >= hybridFallbackThreshold {
		p.hybridUnicast = false
		p.hybridFailCount = 0
	}
}

// ResetHybrid re-enables unicast hybrid mode and clears its failure
// counter, called whenever the selected master changes.
func (p *Port) ResetHybrid() {
	p.hybridUnicast = true
	p.hybridFailCount = 0
}

func logInterval(d time.Duration) ptp.LogInterval {
	li, err := ptp.NewLogInterval(d)
	if err != nil {
		return 0
	}
	return li
}

func (p *Port) String() string {
	return fmt.Sprintf("port %v state=%v alarms=%#x", p.cfg.PortIdentity, p.state, p.alarms)
}
