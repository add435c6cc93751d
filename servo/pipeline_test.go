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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeClock struct {
	freq    float64
	steps   int
	maxFreq float64
}

func (f *fakeClock) AdjustFrequency(ppb float64) error {
	f.freq = ppb
	return nil
}

func (f *fakeClock) Step(offset time.Duration) error {
	f.steps++
	return nil
}

func (f *fakeClock) MaxFreqPPB() float64 { return f.maxFreq }

func testConfig() PipelineConfig {
	return PipelineConfig{
		Mode:                 StepModeSlewAndStep,
		ClockControl:         true,
		StepThreshold:        time.Second,
		FIRStiffness:         4,
		Kp:                   0.5,
		Ki:                   0.1,
		Kd:                   0,
		PIDInterval:          time.Second,
		IMax:                 100000,
		PeircePathDelay:      true,
		PeirceMaxSamples:     30,
		PeirceWeighting:      0.5,
		WindowMaxSamples:     4,
		WindowTimeout:        time.Minute,
		WindowAgeing:         0,
		ConvergenceWindow:    5 * time.Second,
		ConvergenceThreshold: 100 * time.Microsecond,
	}
}

func TestPipelineLocksOnSmallOffsets(t *testing.T) {
	p := NewPipeline(testConfig())
	clk := &fakeClock{maxFreq: 900000000}
	now := time.Unix(1000, 0)

	var state State
	for i := 0; i < 10; i++ {
		state, _ = p.Update(10*time.Microsecond, 5*time.Millisecond, now, clk)
		now = now.Add(time.Second)
	}
	require.Equal(t, StateLocked, state)
	require.Equal(t, 0, clk.steps)
}

func TestPipelineStepsOnLargeOffset(t *testing.T) {
	p := NewPipeline(testConfig())
	clk := &fakeClock{maxFreq: 900000000}
	now := time.Unix(1000, 0)

	state, _ := p.Update(2*time.Second, 5*time.Millisecond, now, clk)
	require.Equal(t, StateJump, state)
	require.Equal(t, 1, clk.steps)
}

func TestPipelineSlewOnlyNeverSteps(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = StepModeSlewOnly
	p := NewPipeline(cfg)
	clk := &fakeClock{maxFreq: 900000000}
	now := time.Unix(1000, 0)

	state, _ := p.Update(5*time.Second, 5*time.Millisecond, now, clk)
	require.Equal(t, StateLocked, state)
	require.Equal(t, 0, clk.steps)
}

func TestPipelineConvergence(t *testing.T) {
	p := NewPipeline(testConfig())
	clk := &fakeClock{maxFreq: 900000000}
	now := time.Unix(1000, 0)

	for i := 0; i < 10; i++ {
		p.Update(10*time.Microsecond, time.Millisecond, now, clk)
		now = now.Add(time.Second)
	}
	require.True(t, p.Synchronized())

	// a large excursion resets convergence
	p.Update(2*time.Second, time.Millisecond, now, clk)
	require.False(t, p.Synchronized())
}

// TestPipelineRejectsOutlierPathDelay drives enough well-behaved samples
// to seed the Peirce stage's statistics, then feeds one wildly outlying
// path delay and checks its paired offset is withheld from FIR/PID: the
// mock clock must still see the unchanged baseline frequency, not a fresh
// PID term derived from the tainted sample.
func TestPipelineRejectsOutlierPathDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	clk := NewMockClockDriver(ctrl)
	clk.EXPECT().MaxFreqPPB().Return(900000000.0).AnyTimes()

	p := NewPipeline(testConfig())
	now := time.Unix(1000, 0)

	for i := 0; i < 10; i++ {
		clk.EXPECT().AdjustFrequency(gomock.Any()).Return(nil)
		delay := 5*time.Millisecond + time.Duration(i%2)*100*time.Microsecond
		p.Update(10*time.Microsecond, delay, now, clk)
		now = now.Add(time.Second)
	}
	seeded := p.FrequencyCorrection()

	clk.EXPECT().AdjustFrequency(seeded).Return(nil)
	state, freq := p.Update(10*time.Microsecond, 500*time.Millisecond, now, clk)
	require.Equal(t, StateLocked, state)
	require.Equal(t, seeded, freq)
	require.Equal(t, uint64(1), p.RejectedSamples())
}
