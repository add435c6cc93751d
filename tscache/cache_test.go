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

package tscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReserveMatchResolvesOnce(t *testing.T) {
	c := New()
	now := time.Unix(1000, 0)
	pdu := make([]byte, 44)
	for i := range pdu {
		pdu[i] = byte(i)
	}
	tk := c.Reserve(pdu, 0, "user-A", now)
	require.Equal(t, 1, c.Occupied())

	user, ok := c.Match(pdu, now.Add(time.Microsecond))
	require.True(t, ok)
	require.Equal(t, "user-A", user)
	require.Equal(t, 0, c.Occupied())

	// second match attempt on the same bytes must not resolve again
	_, ok2 := c.Match(pdu, now.Add(2*time.Microsecond))
	require.False(t, ok2)

	require.Equal(t, 0, tk.Slot|0) // the first reservation in an empty cache takes slot 0
}

func TestOccupiedMatchesFreeBitmapInvariant(t *testing.T) {
	c := New()
	now := time.Unix(1000, 0)
	for i := 0; i < 10; i++ {
		c.Reserve([]byte{byte(i)}, 0, i, now)
	}
	require.Equal(t, 10, c.Occupied())
	require.LessOrEqual(t, c.Occupied(), Slots)
}

func TestReserveEvictsOldestWhenFull(t *testing.T) {
	c := New()
	now := time.Unix(1000, 0)
	for i := 0; i < Slots; i++ {
		c.Reserve([]byte{byte(i)}, 0, i, now.Add(time.Duration(i)*time.Millisecond))
	}
	require.Equal(t, Slots, c.Occupied())
	// one more reservation must evict the oldest (slot holding value 0)
	c.Reserve([]byte{99}, 0, 99, now.Add(100*time.Millisecond))
	require.Equal(t, Slots, c.Occupied())

	_, ok := c.Match([]byte{0}, now.Add(200*time.Millisecond))
	require.False(t, ok)
	user, ok := c.Match([]byte{1}, now.Add(200*time.Millisecond))
	require.True(t, ok)
	require.Equal(t, 1, user)
}
