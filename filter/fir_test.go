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

	"github.com/stretchr/testify/require"
)

func TestFIRMeanOfFilled(t *testing.T) {
	f := NewFIR(4)
	require.Equal(t, 10.0, f.Update(10))
	require.Equal(t, 15.0, f.Update(20))
	require.InDelta(t, 20.0, f.Update(30), 1e-9)
	require.InDelta(t, 25.0, f.Update(40), 1e-9)
	// fifth sample evicts the first (10), mean of {20,30,40,50}
	require.InDelta(t, 35.0, f.Update(50), 1e-9)
}

func TestFIRStiffnessOnePassesThrough(t *testing.T) {
	f := NewFIR(1)
	require.Equal(t, 7.0, f.Update(7))
	require.Equal(t, -3.0, f.Update(-3))
}

func TestFIRReset(t *testing.T) {
	f := NewFIR(3)
	f.Update(1)
	f.Update(2)
	f.Reset()
	require.Equal(t, 0, f.Count())
	require.Equal(t, 5.0, f.Update(5))
}
