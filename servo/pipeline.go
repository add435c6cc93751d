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

package servo

import (
	"time"

	"github.com/ptpcore/sync/filter"
)

// ClockDriver is the OS clock primitive surface the pipeline needs,
// matching the §6 external interface (adjust_frequency, adjust_time,
// max_freq_adjustment).
type ClockDriver interface {
	AdjustFrequency(ppb float64) error
	Step(offset time.Duration) error
	MaxFreqPPB() float64
}

// PipelineConfig configures the shared 7-stage servo pipeline (§4.H).
type PipelineConfig struct {
	Mode             StepMode
	ClockControl     bool
	StepThreshold    time.Duration // 1s PTP default, 500ms PPS default
	FIRStiffness     int
	Kp, Ki, Kd       float64
	PIDInterval      time.Duration
	IMax             float64
	PeircePathDelay  bool // enable Peirce outlier rejection on path delay (PTP only)
	PeirceMaxSamples int
	PeirceWeighting  float64
	WindowMaxSamples int
	WindowTimeout    time.Duration
	WindowAgeing     float64

	ConvergenceWindow    time.Duration
	ConvergenceThreshold time.Duration
}

// Pipeline implements the shared servo stages: step decision, Peirce
// outlier check on path delay, smallest-of-window on path delay, FIR on
// offset, PID, saturation, and the clock.adjust_frequency call. It is
// grounded on servo/pi.go's PiServo, generalized from the teacher's
// single combined filter+PID struct into the spec's explicit staged
// cascade so each stage can be reasoned about (and tested) independently.
type Pipeline struct {
	cfg PipelineConfig

	peirce *filter.Peirce
	window *filter.SmallestOfWindow
	fir    *filter.FIR
	pid    *filter.PID

	frequencyCorrection float64 // persisted baseline
	clockSteps          uint64
	firstUpdate         bool

	filteredPathDelay time.Duration
	rejectedSamples   uint64

	convergenceStart time.Time
	inConvergence    bool
	synchronized     bool
}

// NewPipeline builds a Pipeline from its configuration.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		cfg:         cfg,
		fir:         filter.NewFIR(cfg.FIRStiffness),
		pid:         filter.NewPID(cfg.Kp, cfg.Ki, cfg.Kd, cfg.PIDInterval, cfg.IMax),
		firstUpdate: true,
	}
	if cfg.PeircePathDelay {
		p.peirce = filter.NewPeirce(cfg.PeirceMaxSamples, cfg.PeirceWeighting)
	}
	if cfg.WindowMaxSamples > 0 {
		p.window = filter.NewSmallestOfWindow(cfg.WindowMaxSamples, cfg.WindowTimeout, cfg.WindowAgeing)
	}
	return p
}

// SetFrequencyCorrection seeds the persisted baseline (e.g. loaded from
// the per-clock frequency-correction file at startup).
func (p *Pipeline) SetFrequencyCorrection(ppb float64) {
	p.frequencyCorrection = ppb
}

// FrequencyCorrection returns the current persisted baseline.
func (p *Pipeline) FrequencyCorrection() float64 {
	return p.frequencyCorrection
}

// ClockSteps returns the number of discrete steps applied so far.
func (p *Pipeline) ClockSteps() uint64 {
	return p.clockSteps
}

// Synchronized reports whether the offset has stayed within
// ConvergenceThreshold for a full ConvergenceWindow.
func (p *Pipeline) Synchronized() bool {
	return p.synchronized
}

// FilteredPathDelay returns the path delay after the Peirce outlier and
// smallest-of-window stages, i.e. the value §4.H stages 2-3 actually
// produce, as opposed to the raw one-way-delay sample passed into Update.
func (p *Pipeline) FilteredPathDelay() time.Duration {
	return p.filteredPathDelay
}

// RejectedSamples returns the count of offset samples whose paired path
// delay was flagged OutOfRange by the Peirce stage and so was withheld
// from the FIR/PID stages.
func (p *Pipeline) RejectedSamples() uint64 {
	return p.rejectedSamples
}

func (p *Pipeline) stepPermitted(offset time.Duration) bool {
	if !p.cfg.ClockControl {
		return false
	}
	switch p.cfg.Mode {
	case StepModeSlewOnly:
		return false
	case StepModeSlewAndStep:
		return true
	case StepModeStepAtStartup:
		return p.firstUpdate
	case StepModeStepForwardOnly:
		// Update steps by -offset, so only a negative offset advances the clock.
		return offset < 0
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Update runs one sample through the full pipeline and returns the
// resulting servo State along with the frequency (in ppb) that was
// applied to the clock driver, if any.
func (p *Pipeline) Update(offset time.Duration, pathDelay time.Duration, now time.Time, clock ClockDriver) (State, float64) {
	defer func() { p.firstUpdate = false }()

	if absDuration(offset) > p.cfg.StepThreshold && p.stepPermitted(offset) {
		if clock != nil {
			_ = clock.Step(-offset)
		}
		p.reset()
		p.clockSteps++
		if clock != nil {
			_ = clock.AdjustFrequency(p.frequencyCorrection)
		}
		return StateJump, p.frequencyCorrection
	}

	delay := float64(pathDelay)
	outlier := false
	if p.peirce != nil {
		var verdict filter.Verdict
		delay, verdict = p.peirce.Update(delay)
		outlier = verdict == filter.OutOfRange
	}
	if p.window != nil {
		delay = p.window.Update(delay, now)
	}
	p.filteredPathDelay = time.Duration(delay)

	// An outlier path-delay sample taints the paired offset measurement
	// (both derive from the same four timestamps), so withhold it from
	// FIR/PID rather than let a bad delay masquerade as a frequency error.
	if outlier {
		p.rejectedSamples++
		freq := p.frequencyCorrection
		if clock != nil {
			_ = clock.AdjustFrequency(freq)
		}
		return StateLocked, freq
	}

	firOut := p.fir.Update(float64(offset))
	pidOut := p.pid.Update(firOut, now)

	freq := p.frequencyCorrection + pidOut
	maxFreq := p.cfg.Mode.maxFreqOr(clock)
	if freq > maxFreq {
		freq = maxFreq
	} else if freq < -maxFreq {
		freq = -maxFreq
	}

	p.updateConvergence(offset, now)

	if clock != nil {
		_ = clock.AdjustFrequency(freq)
	}
	return StateLocked, freq
}

// maxFreqOr is a small helper so a nil clock (e.g. in unit tests) doesn't
// panic; StepMode doesn't actually carry a max, so this just delegates.
func (m StepMode) maxFreqOr(clock ClockDriver) float64 {
	if clock == nil {
		return 1e12 // effectively unbounded when no clock is attached
	}
	return clock.MaxFreqPPB()
}

func (p *Pipeline) reset() {
	p.fir.Reset()
	p.pid.Reset()
	if p.peirce != nil {
		p.peirce.Reset()
	}
	if p.window != nil {
		p.window.Reset()
	}
	p.inConvergence = false
	p.synchronized = false
}

func (p *Pipeline) updateConvergence(offset time.Duration, now time.Time) {
	if absDuration(offset) > p.cfg.ConvergenceThreshold {
		p.inConvergence = false
		p.synchronized = false
		return
	}
	if !p.inConvergence {
		p.inConvergence = true
		p.convergenceStart = now
		return
	}
	if now.Sub(p.convergenceStart) >= p.cfg.ConvergenceWindow {
		p.synchronized = true
	}
}
