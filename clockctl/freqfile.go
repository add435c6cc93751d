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

package clockctl

import (
	"fmt"
	"os"

	"github.com/go-ini/ini"
)

const freqSection = "clock"
const freqKey = "freq_ppb"

// LoadFreqCorrection reads a legacy INI-style per-clock frequency-
// correction file (the SAVE_STATE persistence format, compatible with
// existing /var/lib/*.freq files), grounded on calnex/config/config.go's
// ini.Load/Section/Key usage. A missing file is not an error: callers
// treat it as "no prior correction" and start from zero.
func LoadFreqCorrection(path string) (float64, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return 0, fmt.Errorf("loading frequency file %s: %w", path, err)
	}
	return f.Section(freqSection).Key(freqKey).Float64()
}

// SaveFreqCorrection persists the clock's current frequency correction
// (PPB) to path, overwriting any prior value.
func SaveFreqCorrection(path string, freqPPB float64) error {
	f := ini.Empty()
	f.Section(freqSection).Key(freqKey).SetValue(fmt.Sprintf("%f", freqPPB))
	return f.SaveTo(path)
}
