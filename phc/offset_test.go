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

package phc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSysoffEstimateBasic(t *testing.T) {
	ts1 := time.Unix(0, 1667818190552297411)
	rt := time.Unix(0, 1667818153552297462)
	ts2 := time.Unix(0, 1667818190552297522)
	got := sysoffEstimateBasic(ts1, rt, ts2)
	want := SysoffResult{
		SysTime: ts1.Add(ts2.Sub(ts1) / 2),
		PHCTime: rt,
		Delay:   ts2.Sub(ts1),
		Offset:  ts2.Sub(rt) - (ts2.Sub(ts1) / 2),
	}
	require.Equal(t, want, got)
}

func TestSysoffEstimateExtended(t *testing.T) {
	extended := &PTPSysOffsetExtended{
		NSamples: 3,
		TS: [ptpMaxSamples][3]PTPClockTime{
			{{Sec: 1667818190, NSec: 552297522}, {Sec: 1667818153, NSec: 552297462}, {Sec: 1667818190, NSec: 552297622}},
			{{Sec: 1667818190, NSec: 552297533}, {Sec: 1667818153, NSec: 552297582}, {Sec: 1667818190, NSec: 552297622}},
			{{Sec: 1667818190, NSec: 552297644}, {Sec: 1667818153, NSec: 552297661}, {Sec: 1667818190, NSec: 552297722}},
		},
	}

	got := sysoffEstimateExtended(extended)

	// the third sample has the shortest system round-trip interval (78ns)
	t1 := extended.TS[2][0].Time()
	tp := extended.TS[2][1].Time()
	t2 := extended.TS[2][2].Time()
	want := SysoffResult{
		SysTime: t1.Add(t2.Sub(t1) / 2),
		PHCTime: tp,
		Delay:   t2.Sub(t1),
		Offset:  t1.Add(t2.Sub(t1) / 2).Sub(tp),
	}
	require.Equal(t, want, got)
}

func TestCalcPHCOffet(t *testing.T) {
	a := SysoffResult{
		SysTime: time.Unix(0, 1667818190552297411),
		PHCTime: time.Unix(0, 1667818153552297462),
	}
	b := SysoffResult{
		SysTime: time.Unix(0, 1667818191552297411),
		PHCTime: time.Unix(0, 1667818154552297562),
	}

	got := CalcPHCOffet(a, b)

	// system clock advanced exactly 1s; PHC advanced 1s + 100ns, so the
	// clocks drifted apart by 100ns over the interval.
	require.Equal(t, 100*time.Nanosecond, got)
}
