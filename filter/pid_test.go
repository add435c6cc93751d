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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPIDIntegralClamp(t *testing.T) {
	c := NewPID(0, 10, 0, time.Second, 5)
	for i := 0; i < 100; i++ {
		c.Update(1, time.Time{})
		require.LessOrEqual(t, c.IntegralAbs(), 5.0)
	}
}

func TestPIDResetZeroesState(t *testing.T) {
	c := NewPID(0.2, 0.003, 0, time.Second, 0)
	c.Update(10, time.Time{})
	c.Reset()
	require.Equal(t, 0.0, c.IntegralAbs())
}

func TestPIDNaNLeavesCoefficientUnchanged(t *testing.T) {
	c := NewPID(0.2, 0.003, 0.1, time.Second, 0)
	c.Reconfigure(0.5, nan(), nan())
	require.Equal(t, 0.5, c.kp)
	require.Equal(t, 0.003, c.ki)
	require.Equal(t, 0.1, c.kd)
}

func nan() float64 {
	var z float64
	return z / z
}
