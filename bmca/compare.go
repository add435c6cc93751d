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

// Package bmca implements the Best Master Clock Algorithm (IEEE 1588
// §9.3): dataset comparison between two Announce candidates (Figure
// 27/28) and the state-decision algorithm (Figure 26) that turns a
// qualified foreign-master dataset plus local capabilities into a port
// state. It is grounded on sptp/bmc's Dscmp/Dscmp2/TelcoDscmp, generalized
// from sptp's two-candidate client-only comparisons into a dataset-wide
// reduction feeding a full state decision, since the teacher's sptp
// client never runs a MASTER/PASSIVE outcome.
package bmca

import (
	ptp "github.com/ptpcore/sync/ptp/protocol"
)

// Result is the outcome of comparing two Announce candidates.
type Result int8

const (
	// ABetterTopo means A is better based on topology alone (same GM).
	ABetterTopo Result = 2
	// ABetter means A is strictly better.
	ABetter Result = 1
	// Equal means the two are indistinguishable.
	Equal Result = 0
	// BBetter means B is strictly better.
	BBetter Result = -1
	// BBetterTopo means B is better based on topology alone (same GM).
	BBetterTopo Result = -2
)

// ComparePortIdentity orders two port identities, clock identity first.
func ComparePortIdentity(a, b ptp.PortIdentity) int64 {
	diff := int64(a.ClockIdentity) - int64(b.ClockIdentity)
	if diff == 0 {
		diff = int64(a.PortNumber) - int64(b.PortNumber)
	}
	return diff
}

// Candidate bundles the data dataset_comparison needs about one Announce
// plus the identity of the port it arrived on and (for topology
// comparison) the port identity of our own recorded parent, if any.
type Candidate struct {
	Source             ptp.PortIdentity
	Announce           *ptp.AnnounceBody
	ParentPortIdentity ptp.PortIdentity
}

// topology implements Figure 28: same grandmaster, compare on
// stepsRemoved, then (when they differ by exactly one hop) the closer
// candidate's sender against our recorded parent, then sender port
// identity bytewise.
func topology(a, b Candidate) Result {
	stepsDiff := int32(a.Announce.StepsRemoved) - int32(b.Announce.StepsRemoved)
	switch {
	case stepsDiff < -1:
		return ABetter
	case stepsDiff > 1:
		return BBetter
	case stepsDiff == -1:
		// a is one hop closer to the grandmaster; if a is reached through
		// our own recorded parent, prefer it to avoid flapping between
		// equally-qualified paths.
		if a.Source == a.ParentPortIdentity {
			return ABetterTopo
		}
	case stepsDiff == 1:
		if b.Source == b.ParentPortIdentity {
			return BBetterTopo
		}
	}
	diff := ComparePortIdentity(a.Source, b.Source)
	if diff < 0 {
		return ABetterTopo
	}
	if diff > 0 {
		return BBetterTopo
	}
	return Equal
}

// Compare implements IEEE 1588 Figure 27 dataset_comparison: compares
// grandmaster identities first; if equal, falls through to topology.
// Otherwise compares in order: priority1, GM clockClass, GM
// clockAccuracy, offsetScaledLogVariance, priority2, GM identity
// bytewise.
func Compare(a, b Candidate) Result {
	if a.Announce.GrandmasterIdentity == b.Announce.GrandmasterIdentity {
		return topology(a, b)
	}

	if a.Announce.GrandmasterPriority1 < b.Announce.GrandmasterPriority1 {
		return ABetter
	}
	if a.Announce.GrandmasterPriority1 > b.Announce.GrandmasterPriority1 {
		return BBetter
	}
	if a.Announce.GrandmasterClockQuality.ClockClass < b.Announce.GrandmasterClockQuality.ClockClass {
		return ABetter
	}
	if a.Announce.GrandmasterClockQuality.ClockClass > b.Announce.GrandmasterClockQuality.ClockClass {
		return BBetter
	}
	if a.Announce.GrandmasterClockQuality.ClockAccuracy < b.Announce.GrandmasterClockQuality.ClockAccuracy {
		return ABetter
	}
	if a.Announce.GrandmasterClockQuality.ClockAccuracy > b.Announce.GrandmasterClockQuality.ClockAccuracy {
		return BBetter
	}
	if a.Announce.GrandmasterClockQuality.OffsetScaledLogVariance < b.Announce.GrandmasterClockQuality.OffsetScaledLogVariance {
		return ABetter
	}
	if a.Announce.GrandmasterClockQuality.OffsetScaledLogVariance > b.Announce.GrandmasterClockQuality.OffsetScaledLogVariance {
		return BBetter
	}
	if a.Announce.GrandmasterPriority2 < b.Announce.GrandmasterPriority2 {
		return ABetter
	}
	if a.Announce.GrandmasterPriority2 > b.Announce.GrandmasterPriority2 {
		return BBetter
	}
	diff := int64(a.Announce.GrandmasterIdentity) - int64(b.Announce.GrandmasterIdentity)
	if diff < 0 {
		return ABetter
	}
	if diff > 0 {
		return BBetter
	}
	return Equal
}
