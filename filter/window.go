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

import "time"

// windowEntry is one retained path-delay sample.
type windowEntry struct {
	pathDelay float64
	insertion time.Time
}

// SmallestOfWindow selects the minimum path-delay sample within a time
// window, age-weighted, grounded on the sptp client's slidingWindow
// (container/ring based mean/median) generalized to the spec's
// age-weighted minimum selection used for path-delay filtering.
type SmallestOfWindow struct {
	maxSamples        int
	timeout           time.Duration
	ageingCoefficient float64

	entries []windowEntry
}

// NewSmallestOfWindow builds a filter retaining up to maxSamples (clamped
// to [1,25]) each valid for timeout (10-20s per the data model) before
// eviction, weighting age by ageingCoefficient.
func NewSmallestOfWindow(maxSamples int, timeout time.Duration, ageingCoefficient float64) *SmallestOfWindow {
	if maxSamples < 1 {
		maxSamples = 1
	}
	if maxSamples > 25 {
		maxSamples = 25
	}
	return &SmallestOfWindow{
		maxSamples:        maxSamples,
		timeout:           timeout,
		ageingCoefficient: ageingCoefficient,
	}
}

// Update evicts stale/excess entries, inserts sample at now, and returns
// the entry minimising pathDelay + ageingCoefficient*(now-insertion).
func (w *SmallestOfWindow) Update(pathDelay float64, now time.Time) float64 {
	kept := w.entries[:0]
	for _, e := range w.entries {
		if now.Sub(e.insertion) < w.timeout {
			kept = append(kept, e)
		}
	}
	w.entries = kept

	if len(w.entries) >= w.maxSamples {
		oldest := 0
		for i, e := range w.entries {
			if e.insertion.Before(w.entries[oldest].insertion) {
				oldest = i
			}
		}
		w.entries = append(w.entries[:oldest], w.entries[oldest+1:]...)
	}

	w.entries = append(w.entries, windowEntry{pathDelay: pathDelay, insertion: now})

	best := w.entries[0]
	bestScore := best.pathDelay + w.ageingCoefficient*now.Sub(best.insertion).Seconds()
	for _, e := range w.entries[1:] {
		score := e.pathDelay + w.ageingCoefficient*now.Sub(e.insertion).Seconds()
		if score < bestScore {
			best = e
			bestScore = score
		}
	}
	return best.pathDelay
}

// Reset discards all retained samples.
func (w *SmallestOfWindow) Reset() {
	w.entries = w.entries[:0]
}

// Len reports the number of retained samples.
func (w *SmallestOfWindow) Len() int {
	return len(w.entries)
}
