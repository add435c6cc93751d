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

package bmca

import (
	"time"

	"github.com/ptpcore/sync/foreignmaster"
	ptp "github.com/ptpcore/sync/ptp/protocol"
)

// LocalClock describes the properties BMCA needs about our own clock to
// build a "virtual" self-Announce (copyD0 in IEEE 1588 terms) and to
// decide whether we have ever been locked (slaveOnly state decision).
type LocalClock struct {
	PortIdentity   ptp.PortIdentity
	Priority1      uint8
	Priority2      uint8
	ClockQuality   ptp.ClockQuality
	ClockClass     ptp.ClockClass
	SlaveOnly      bool
	EverBeenLocked bool
}

// SelfAnnounce builds the "virtual self Announce" (copyD0 in IEEE 1588
// terms) BMCA compares foreign masters against, and that a port in the
// MASTER state actually transmits.
func (l LocalClock) SelfAnnounce() ptp.AnnounceBody {
	return ptp.AnnounceBody{
		GrandmasterPriority1:    l.Priority1,
		GrandmasterPriority2:    l.Priority2,
		GrandmasterClockQuality: l.ClockQuality,
		GrandmasterIdentity:     l.PortIdentity.ClockIdentity,
		StepsRemoved:            0,
	}
}

// Decision is the outcome of one BMCA run.
type Decision struct {
	State   ptp.PortState
	Best    *foreignmaster.Record
	Changed bool
}

// Options configures one BMCA run.
type Options struct {
	Local         LocalClock
	Discriminator *foreignmaster.Discriminator
	// CurrentState lets the run decide whether a "no competitive pair"
	// outcome should fall back to LISTENING (only when we were
	// SLAVE/UNCALIBRATED and disqualification was purely by
	// discriminator) or leave state unchanged.
	CurrentState ptp.PortState
	// CurrentParent is the port identity of the foreign master we are
	// currently synchronized to, if any; it feeds Figure 28's exactly-
	// one-stepsRemoved tie-break so an already-selected path isn't
	// displaced by an equally-qualified one solely on port identity.
	CurrentParent ptp.PortIdentity
}

// Run implements §4.C steps 1-5: find the best qualified record, decide
// whether any pair was distinguishable ("competitive"), run the state
// decision when warranted, and report which now-unselected-but-qualified
// records the caller should evict from the dataset.
func Run(ds *foreignmaster.Dataset, now time.Time, opts Options) (Decision, []*foreignmaster.Record) {
	qualified := ds.Qualified(now, opts.Discriminator)
	if len(qualified) == 0 {
		// Nothing qualified: revert to LISTENING only if we were
		// SLAVE/UNCALIBRATED and the discriminator alone disqualified the
		// records; otherwise leave state unchanged.
		if (opts.CurrentState == ptp.PortStateSlave || opts.CurrentState == ptp.PortStateUncalibrated) &&
			allDisqualifiedByDiscriminatorOnly(ds, now, opts) {
			return Decision{State: ptp.PortStateListening, Changed: true}, nil
		}
		return Decision{State: opts.CurrentState, Changed: false}, nil
	}

	best := qualified[0]
	competitive := false
	for _, r := range qualified[1:] {
		cmp := Compare(
			Candidate{Source: best.PortIdentity, Announce: &best.Announce, ParentPortIdentity: opts.CurrentParent},
			Candidate{Source: r.PortIdentity, Announce: &r.Announce, ParentPortIdentity: opts.CurrentParent},
		)
		if cmp == BBetter || cmp == BBetterTopo {
			best = r
		}
		if cmp != Equal {
			competitive = true
		}
	}

	if !competitive && len(qualified) != 1 {
		// No pair was distinguishable and there's more than one
		// candidate: leave state unchanged, unless we were
		// SLAVE/UNCALIBRATED and the only disqualifications were by
		// discriminator, in which case revert to LISTENING.
		if (opts.CurrentState == ptp.PortStateSlave || opts.CurrentState == ptp.PortStateUncalibrated) &&
			allDisqualifiedByDiscriminatorOnly(ds, now, opts) {
			return Decision{State: ptp.PortStateListening, Changed: true}, nil
		}
		return Decision{State: opts.CurrentState, Best: best, Changed: false}, nil
	}

	state := stateDecision(opts.Local, best, opts.CurrentParent)

	toEvict := make([]*foreignmaster.Record, 0, len(qualified))
	for _, r := range qualified {
		if r != best {
			toEvict = append(toEvict, r)
		}
	}

	return Decision{State: state, Best: best, Changed: state != opts.CurrentState}, toEvict
}

func allDisqualifiedByDiscriminatorOnly(ds *foreignmaster.Dataset, now time.Time, opts Options) bool {
	if opts.Discriminator == nil {
		return false
	}
	withoutDisc := ds.Qualified(now, nil)
	withDisc := ds.Qualified(now, opts.Discriminator)
	return len(withoutDisc) > 0 && len(withDisc) == 0
}

// stateDecision implements IEEE 1588 §9.3.3 Figure 26: compare the best
// qualified foreign master against our virtual local master.
func stateDecision(local LocalClock, best *foreignmaster.Record, currentParent ptp.PortIdentity) ptp.PortState {
	if local.SlaveOnly {
		if local.EverBeenLocked {
			return ptp.PortStateSlave
		}
		return ptp.PortStateUncalibrated
	}

	self := local.SelfAnnounce()
	cmp := Compare(
		Candidate{Source: local.PortIdentity, Announce: &self, ParentPortIdentity: currentParent},
		Candidate{Source: best.PortIdentity, Announce: &best.Announce, ParentPortIdentity: currentParent},
	)

	localWins := cmp == ABetter || cmp == ABetterTopo
	if localWins {
		return ptp.PortStateMaster
	}

	// foreign wins
	if local.ClockClass < 128 {
		return ptp.PortStatePassive
	}
	if local.EverBeenLocked {
		return ptp.PortStateSlave
	}
	return ptp.PortStateUncalibrated
}
