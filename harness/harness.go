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

// Package harness runs the synchronization core's sync modules (PTP
// ports, PPS instances, external ToD handles) each in their own
// goroutine behind a mailbox, fans control messages out to every
// module, and enforces that no two active modules ever discipline the
// same OS clock. It is grounded on ptp/sptp/client.SPTP's
// errgroup-per-tick/ctx-cancellation Run loop and ptp4u/server.Server's
// per-worker goroutine pool, merged into a generic per-module harness
// neither teacher binary needed on its own (each only ever ran one
// kind of module).
package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cespare/xxhash"
)

// ControlType names the control messages the engine fans out to every
// module's mailbox.
type ControlType int

const (
	ControlRun ControlType = iota
	ControlGetStatus
	ControlControl
	ControlUpdateGMInfo
	ControlUpdateLeapSecond
	ControlStepClock
	ControlLogStats
	ControlSaveState
	ControlWriteTopology
	ControlStatsEndPeriod
	ControlTestMode
	ControlServoPIDAdjust
)

func (c ControlType) String() string {
	switch c {
	case ControlRun:
		return "RUN"
	case ControlGetStatus:
		return "GET_STATUS"
	case ControlControl:
		return "CONTROL"
	case ControlUpdateGMInfo:
		return "UPDATE_GM_INFO"
	case ControlUpdateLeapSecond:
		return "UPDATE_LEAP_SECOND"
	case ControlStepClock:
		return "STEP_CLOCK"
	case ControlLogStats:
		return "LOG_STATS"
	case ControlSaveState:
		return "SAVE_STATE"
	case ControlWriteTopology:
		return "WRITE_TOPOLOGY"
	case ControlStatsEndPeriod:
		return "STATS_END_PERIOD"
	case ControlTestMode:
		return "TEST_MODE"
	case ControlServoPIDAdjust:
		return "SERVO_PID_ADJUST"
	default:
		return fmt.Sprintf("ControlType(%d)", int(c))
	}
}

// ControlMessage is one control-plane message fanned out (or sent
// point-to-point) to a module's mailbox.
type ControlMessage struct {
	Type    ControlType
	Payload any
	// reply, if non-nil, receives the module's response once it has
	// handled the message (SendWait uses this; Post leaves it nil, a
	// fire-and-forget post).
	reply chan any
}

// Mailbox is a module's inbox: a buffered channel of control messages
// plus the post/send-wait split the sync-module harness (§4.I) wants.
type Mailbox struct {
	inbox chan ControlMessage
}

// NewMailbox builds a mailbox with the given inbox depth.
func NewMailbox(depth int) *Mailbox {
	return &Mailbox{inbox: make(chan ControlMessage, depth)}
}

// Post enqueues msg without waiting for a reply. Returns false if the
// inbox is full (the module is not draining fast enough).
func (m *Mailbox) Post(t ControlType, payload any) bool {
	select {
	case m.inbox <- ControlMessage{Type: t, Payload: payload}:
		return true
	default:
		return false
	}
}

// SendWait enqueues msg and blocks for a reply, up to ctx's deadline.
func (m *Mailbox) SendWait(ctx context.Context, t ControlType, payload any) (any, error) {
	reply := make(chan any, 1)
	msg := ControlMessage{Type: t, Payload: payload, reply: reply}
	select {
	case m.inbox <- msg:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Inbox exposes the receive side for a module's Run loop.
func (m *Mailbox) Inbox() <-chan ControlMessage { return m.inbox }

// Reply delivers resp back to a SendWait caller; a no-op for messages
// posted via Post (msg.reply is nil).
func Reply(msg ControlMessage, resp any) {
	if msg.reply != nil {
		msg.reply <- resp
	}
}

// Module is one synchronization unit the harness drives: a PTP port, a
// PPS instance, or an external ToD handle.
type Module interface {
	// Name uniquely identifies the module within the harness.
	Name() string
	// ClockID identifies the OS clock this module disciplines (e.g. a
	// PHC device path or "CLOCK_REALTIME"); two modules must never
	// share one while both active (§5 clock-binding exclusivity).
	ClockID() string
	// Run drains mailbox until ctx is cancelled.
	Run(ctx context.Context, mailbox *Mailbox) error
}

type registeredModule struct {
	module  Module
	mailbox *Mailbox
}

// Harness runs a set of Modules, enforcing clock-binding exclusivity
// and fanning control messages out to all of them.
type Harness struct {
	mu       sync.Mutex
	modules  map[string]*registeredModule
	bindings map[string]string // clockID -> module name

	statsPeriod time.Duration
	procStats   *ProcessStats
}

// New builds an empty Harness.
func New(statsPeriod time.Duration) *Harness {
	return &Harness{
		modules:     make(map[string]*registeredModule),
		bindings:    make(map[string]string),
		statsPeriod: statsPeriod,
	}
}

// EnableProcessStats registers ambient process/runtime gauges with reg;
// the engine loop refreshes them alongside every STATS_END_PERIOD tick.
func (h *Harness) EnableProcessStats(reg prometheus.Registerer) error {
	ps, err := NewProcessStats(reg)
	if err != nil {
		return err
	}
	h.procStats = ps
	return nil
}

// Register adds a module to the harness, refusing to bind two active
// modules to the same clock (§5).
func (h *Harness) Register(m Module, mailboxDepth int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.modules[m.Name()]; exists {
		return fmt.Errorf("module %q already registered", m.Name())
	}
	if owner, bound := h.bindings[m.ClockID()]; bound {
		return fmt.Errorf("clock %q already bound to module %q, refusing to also bind %q", m.ClockID(), owner, m.Name())
	}

	h.bindings[m.ClockID()] = m.Name()
	h.modules[m.Name()] = &registeredModule{module: m, mailbox: NewMailbox(mailboxDepth)}
	return nil
}

// Unregister releases a module's clock binding, e.g. after it exits.
func (h *Harness) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.modules[name]
	if !ok {
		return
	}
	delete(h.bindings, rm.module.ClockID())
	delete(h.modules, name)
}

// Broadcast fans a control message out to every registered module's
// mailbox, skipping (and logging) any whose inbox is full rather than
// blocking the whole fan-out on one slow module.
func (h *Harness) Broadcast(t ControlType, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, rm := range h.modules {
		if !rm.mailbox.Post(t, payload) {
			log.Warnf("harness: module %s inbox full, dropping %s broadcast", name, t)
		}
	}
}

// Mailbox returns the mailbox for a registered module, or nil.
func (h *Harness) Mailbox(name string) *Mailbox {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.modules[name]
	if !ok {
		return nil
	}
	return rm.mailbox
}

// Names returns the currently registered module names.
func (h *Harness) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.modules))
	for name := range h.modules {
		out = append(out, name)
	}
	return out
}

// bindingKey hashes a clock identifier with xxhash, the way
// foreignmaster.Dataset hashes a PortIdentity. It is only printed in the
// module-start debug log; the bindings map is keyed by the clock
// identifier string itself.
func bindingKey(clockID string) uint64 {
	return xxhash.Sum64String(clockID)
}

// Run starts every registered module's goroutine and a periodic engine
// tick that fans out LOG_STATS/STATS_END_PERIOD, returning when ctx is
// cancelled or any module's Run returns an error.
func (h *Harness) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	h.mu.Lock()
	snapshot := make([]*registeredModule, 0, len(h.modules))
	for _, rm := range h.modules {
		snapshot = append(snapshot, rm)
	}
	h.mu.Unlock()

	for _, rm := range snapshot {
		rm := rm
		eg.Go(func() error {
			log.Debugf(color.YellowString("harness: starting module %s (clock %s, key %x)", rm.module.Name(), rm.module.ClockID(), bindingKey(rm.module.ClockID())))
			return rm.module.Run(ctx, rm.mailbox)
		})
	}

	eg.Go(func() error { return h.engineLoop(ctx) })

	return eg.Wait()
}

func (h *Harness) engineLoop(ctx context.Context) error {
	if h.statsPeriod <= 0 {
		h.statsPeriod = time.Minute
	}
	ticker := time.NewTicker(h.statsPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Broadcast(ControlLogStats, nil)
			h.Broadcast(ControlStatsEndPeriod, nil)
			if h.procStats != nil {
				h.procStats.Collect()
			}
		}
	}
}
