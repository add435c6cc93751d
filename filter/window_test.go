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

func TestSmallestOfWindowPicksMinimum(t *testing.T) {
	w := NewSmallestOfWindow(5, 20*time.Second, 0)
	now := time.Unix(1000, 0)
	w.Update(500, now)
	w.Update(300, now.Add(time.Second))
	got := w.Update(800, now.Add(2*time.Second))
	require.Equal(t, 300.0, got)
}

func TestSmallestOfWindowExpiredReturnsFresh(t *testing.T) {
	w := NewSmallestOfWindow(5, time.Second, 0)
	now := time.Unix(1000, 0)
	w.Update(100, now)
	got := w.Update(900, now.Add(10*time.Second))
	require.Equal(t, 900.0, got)
}
