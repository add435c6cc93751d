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

package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ptpcore/sync/harness"
	"github.com/ptpcore/sync/pps"
)

// pollResult carries one pps.Instance.Poll outcome back to the mailbox
// loop goroutine, since PollPPSSink blocks on hardware I/O and must not
// share a goroutine with mailbox handling.
type pollResult struct {
	state  pps.State
	alarms pps.Alarm
	err    error
}

// PPSModule adapts a pps.Instance into a harness.Module: a dedicated
// goroutine blocks in Instance.Poll waiting for the next hardware edge
// (which can take up to ~1.1s) and reports back over a channel, while
// the Run loop itself only ever touches mailbox and status state.
type PPSModule struct {
	name     string
	instance *pps.Instance
	clockID  string

	results chan pollResult
}

// NewPPSModule builds a module named name wrapping instance,
// disciplining the clock identified by clockID.
func NewPPSModule(name string, instance *pps.Instance, clockID string) *PPSModule {
	return &PPSModule{
		name:     name,
		instance: instance,
		clockID:  clockID,
		results:  make(chan pollResult, 1),
	}
}

// Name implements harness.Module.
func (m *PPSModule) Name() string { return m.name }

// ClockID implements harness.Module.
func (m *PPSModule) ClockID() string { return m.clockID }

// Run implements harness.Module.
func (m *PPSModule) Run(ctx context.Context, mailbox *harness.Mailbox) error {
	go m.pollLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-mailbox.Inbox():
			m.handleControl(msg)
		case res := <-m.results:
			if res.err != nil {
				log.Debugf("pps %s: %v", m.name, res.err)
			}
		}
	}
}

func (m *PPSModule) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		state, alarms, err := m.instance.Poll(time.Now)
		select {
		case m.results <- pollResult{state: state, alarms: alarms, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (m *PPSModule) handleControl(msg harness.ControlMessage) {
	switch msg.Type {
	case harness.ControlGetStatus:
		harness.Reply(msg, m.status())
	default:
		harness.Reply(msg, nil)
	}
}

func (m *PPSModule) status() harness.InstanceState {
	return harness.InstanceState{
		ClockName: m.name,
		ClockID:   m.clockID,
		State:     m.instance.State().String(),
		Alarms:    uint32(m.instance.Alarms()),
	}
}
