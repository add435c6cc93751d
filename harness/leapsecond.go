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

import "time"

// LeapSecondInfo is the §6 UPDATE_LEAP_SECOND payload, broadcast to
// every module so its Announce/FollowUp traffic carries the current
// UTC offset and the leap59/leap61 pending-event flags. Grounded on
// leapsectz.LeapSecond, generalized here from "next entry in the
// system's right/UTC zoneinfo table" to the wire-ready fields a PTP
// port needs.
type LeapSecondInfo struct {
	CurrentUTCOffset int16
	// At is when the next leap second takes effect, zero if none is
	// scheduled within the lookahead the caller checked.
	At time.Time
	// Positive is true for a leap61 (inserted) second, false for a
	// leap59 (deleted) second; meaningless if At is zero.
	Positive bool
}
