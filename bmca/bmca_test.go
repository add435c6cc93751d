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

package bmca

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ptpcore/sync/foreignmaster"
	ptp "github.com/ptpcore/sync/ptp/protocol"
)

func mkAnnounce(gmID uint64, prio1 uint8) ptp.AnnounceBody {
	return ptp.AnnounceBody{
		GrandmasterIdentity:  ptp.ClockIdentity(gmID),
		GrandmasterPriority1: prio1,
		GrandmasterPriority2: 128,
	}
}

func TestTieBreakByPriority1(t *testing.T) {
	a := Candidate{Source: ptp.PortIdentity{ClockIdentity: 1}, Announce: ref(mkAnnounce(101, 127))}
	b := Candidate{Source: ptp.PortIdentity{ClockIdentity: 2}, Announce: ref(mkAnnounce(100, 128))}
	require.Equal(t, ABetter, Compare(a, b))
}

func ref(a ptp.AnnounceBody) *ptp.AnnounceBody { return &a }

func TestRunPicksBestAndDeterministic(t *testing.T) {
	ds := foreignmaster.New(16, 2)
	now := time.Unix(1000, 0)
	h1 := ptp.Header{SourcePortIdentity: ptp.PortIdentity{ClockIdentity: 1, PortNumber: 1}}
	h2 := ptp.Header{SourcePortIdentity: ptp.PortIdentity{ClockIdentity: 2, PortNumber: 1}}
	ds.Insert(h1, mkAnnounce(100, 127), ptp.PortCommunicationCapabilitiesTLV{}, netip.Addr{}, now)
	ds.Insert(h1, mkAnnounce(100, 127), ptp.PortCommunicationCapabilitiesTLV{}, netip.Addr{}, now.Add(time.Second))
	ds.Insert(h2, mkAnnounce(100, 128), ptp.PortCommunicationCapabilitiesTLV{}, netip.Addr{}, now)
	ds.Insert(h2, mkAnnounce(100, 128), ptp.PortCommunicationCapabilitiesTLV{}, netip.Addr{}, now.Add(time.Second))

	local := LocalClock{PortIdentity: ptp.PortIdentity{ClockIdentity: 99}, Priority1: 200, ClockClass: 248}
	opts := Options{Local: local, CurrentState: ptp.PortStateListening}

	d1, _ := Run(ds, now.Add(time.Second), opts)
	require.Equal(t, ptp.ClockIdentity(1), d1.Best.PortIdentity.ClockIdentity)

	d2, _ := Run(ds, now.Add(time.Second), opts)
	require.Equal(t, d1.Best.PortIdentity, d2.Best.PortIdentity)
	require.Equal(t, d1.State, d2.State)
}
