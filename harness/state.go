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

package harness

import (
	"fmt"
	"path/filepath"

	"github.com/go-ini/ini"

	"github.com/ptpcore/sync/clockctl"
)

// ControlFlag is the per-instance bitfield §6 names: CLOCK_CTRL,
// TIMESTAMP_PROCESSING, SELECTED, CLUSTERING_DETERMINANT.
type ControlFlag uint8

const (
	ControlFlagClockCtrl ControlFlag = 1 << iota
	ControlFlagTimestampProcessing
	ControlFlagSelected
	ControlFlagClusteringDeterminant
)

// InstanceState is the SAVE_STATE snapshot of one sync module, with the
// exact key list §6 names.
type InstanceState struct {
	ClockName         string
	ClockID           string
	State             string
	Alarms            uint32
	ControlFlags      ControlFlag
	Interface         string
	OffsetFromMaster  int64 // nanoseconds
	FreqAdjustmentPPB float64
	InSync            bool
	ClusteringScore    int
}

// SaveState persists every registered module's InstanceState (obtained
// via a GET_STATUS send-wait) to path as an INI file, one section per
// module, using the key names §6 specifies. It also saves each
// in-sync, clock-controlled module's frequency correction to its own
// per-clock file in freqDir, grounded on ptp/sptp/client/clock.go's
// persisted-frequency-on-exit idiom, generalized to run continuously
// rather than only at shutdown.
func SaveState(path, freqDir string, states []InstanceState) error {
	f := ini.Empty()
	for _, s := range states {
		sec, err := f.NewSection(s.ClockName)
		if err != nil {
			return fmt.Errorf("creating section for %s: %w", s.ClockName, err)
		}
		sec.Key("clock-id").SetValue(s.ClockID)
		sec.Key("state").SetValue(s.State)
		sec.Key("alarms").SetValue(fmt.Sprintf("%#x", s.Alarms))
		sec.Key("control-flags").SetValue(fmt.Sprintf("%#x", s.ControlFlags))
		sec.Key("interface").SetValue(s.Interface)
		sec.Key("offset-from-master").SetValue(fmt.Sprintf("%d", s.OffsetFromMaster))
		sec.Key("freq-adjustment-ppb").SetValue(fmt.Sprintf("%f", s.FreqAdjustmentPPB))
		sec.Key("in-sync").SetValue(fmt.Sprintf("%t", s.InSync))
		sec.Key("clustering-score").SetValue(fmt.Sprintf("%d", s.ClusteringScore))

		if s.InSync && s.ControlFlags&ControlFlagClockCtrl != 0 {
			freqPath := filepath.Join(freqDir, s.ClockName+".freq")
			if err := clockctl.SaveFreqCorrection(freqPath, s.FreqAdjustmentPPB); err != nil {
				return fmt.Errorf("saving frequency for %s: %w", s.ClockName, err)
			}
		}
	}
	return f.SaveTo(path)
}
