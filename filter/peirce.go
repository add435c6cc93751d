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

package filter

import (
	"math"

	"github.com/eclesh/welford"
)

// peirceTable holds Peirce's criterion critical ratios for a single
// doubtful observation, indexed by sample count n in [5,60]. Values below
// 5 are never consulted (Peirce accepts unconditionally for n<5).
var peirceTable = [...]float64{
	// n=5..20
	1.571, 1.668, 1.740, 1.797, 1.844, 1.883, 1.917, 1.947, 1.973, 1.997,
	2.018, 2.037, 2.055, 2.071, 2.086, 2.100,
	// n=21..40
	2.112, 2.124, 2.135, 2.145, 2.155, 2.164, 2.172, 2.180, 2.188, 2.195,
	2.202, 2.208, 2.214, 2.220, 2.226, 2.231, 2.236, 2.241, 2.246, 2.250,
	// n=41..60
	2.255, 2.259, 2.263, 2.267, 2.270, 2.274, 2.277, 2.281, 2.284, 2.287,
	2.290, 2.293, 2.296, 2.299, 2.301, 2.304, 2.306, 2.309, 2.311, 2.313,
}

func peirceCriterion(n int) float64 {
	if n < 5 {
		return math.Inf(1)
	}
	if n > 60 {
		n = 60
	}
	return peirceTable[n-5]
}

// Peirce rejects outliers from a running sample using Peirce's criterion,
// backed by github.com/eclesh/welford for the running mean/variance (the
// same library the teacher already uses for clock-quality statistics).
type Peirce struct {
	maxSamples       int
	outlierWeighting float64

	stats   *welford.Stats
	ring    []float64
	next    int
	count   int
}

// NewPeirce builds a Peirce filter retaining up to maxSamples (clamped to
// [5,60]) with the given outlier weighting in [0,1].
func NewPeirce(maxSamples int, outlierWeighting float64) *Peirce {
	if maxSamples < 5 {
		maxSamples = 5
	}
	if maxSamples > 60 {
		maxSamples = 60
	}
	if outlierWeighting < 0 {
		outlierWeighting = 0
	}
	if outlierWeighting > 1 {
		outlierWeighting = 1
	}
	return &Peirce{
		maxSamples:       maxSamples,
		outlierWeighting: outlierWeighting,
		stats:            welford.New(),
		ring:             make([]float64, maxSamples),
	}
}

// Update runs x through the criterion; on rejection a damped value is
// inserted into the running statistics instead of x.
func (p *Peirce) Update(x float64) (float64, Verdict) {
	if p.count < 5 {
		p.insert(x)
		return x, OK
	}

	mean := p.stats.Mean()
	sigma := p.stats.Stddev()
	if sigma == 0 && x == mean {
		p.insert(x)
		return x, OK
	}

	ratio := math.Abs(x-mean) / sigma
	if ratio > peirceCriterion(p.count) {
		damped := mean + p.outlierWeighting*(x-mean)
		p.insert(damped)
		return damped, OutOfRange
	}

	p.insert(x)
	return x, OK
}

func (p *Peirce) insert(v float64) {
	p.ring[p.next] = v
	p.next = (p.next + 1) % p.maxSamples
	if p.count < p.maxSamples {
		p.count++
	}
	p.rebuildStats()
}

// rebuildStats recomputes the running statistics over the current ring
// contents. welford.Stats has no remove operation, so a fixed-size
// retained window is recomputed on each insert; maxSamples is capped at
// 60 so this stays cheap.
func (p *Peirce) rebuildStats() {
	s := welford.New()
	for i := 0; i < p.count; i++ {
		s.Add(p.ring[i])
	}
	p.stats = s
}

// Reset clears all accumulated samples.
func (p *Peirce) Reset() {
	p.next = 0
	p.count = 0
	p.stats = welford.New()
}

// Count returns the number of samples currently in the window.
func (p *Peirce) Count() int {
	return p.count
}
