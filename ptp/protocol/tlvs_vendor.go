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

package protocol

import (
	"encoding/binary"
	"fmt"
)

// OrganizationID identifies the 3-octet IEEE OUI of an organization-specific
// TLV, e.g. Meinberg's NetSync Monitor extension.
type OrganizationID [3]byte

// OUIMeinberg is Meinberg Funkuhren's assigned OUI, used by the NetSync
// Monitor organization-extension TLV.
var OUIMeinberg = OrganizationID{0xEC, 0x46, 0x70}

// OUISolarflare is Solarflare Communications' assigned OUI, used by the
// sfptpd slave-status organization-extension TLV.
var OUISolarflare = OrganizationID{0x00, 0x0F, 0x53}

// NetSyncMonitorTLV carries Meinberg's NetSync Monitor status payload piggy
// backed on an ORGANIZATION_EXTENSION TLV (Table 56).
type NetSyncMonitorTLV struct {
	TLVHead
	OrganizationID         OrganizationID
	OrganizationSubType    [3]byte
	GMPriority1            uint8
	GMClockClass           ClockClass
	GMClockAccuracy        ClockAccuracy
	GMOffsetScaledLogVariance uint16
	GMPriority2            uint8
	CurrentUTCOffset       int16
	ReservedFlags          uint8
}

const netSyncMonitorBodyLen = 16

// MarshalBinaryTo marshals bytes to NetSyncMonitorTLV.
func (t *NetSyncMonitorTLV) MarshalBinaryTo(b []byte) (int, error) {
	tlvHeadMarshalBinaryTo(&t.TLVHead, b)
	pos := tlvHeadSize
	copy(b[pos:], t.OrganizationID[:])
	pos += 3
	copy(b[pos:], t.OrganizationSubType[:])
	pos += 3
	b[pos] = t.GMPriority1
	pos++
	b[pos] = uint8(t.GMClockClass)
	pos++
	b[pos] = uint8(t.GMClockAccuracy)
	pos++
	binary.BigEndian.PutUint16(b[pos:], t.GMOffsetScaledLogVariance)
	pos += 2
	b[pos] = t.GMPriority2
	pos++
	binary.BigEndian.PutUint16(b[pos:], uint16(t.CurrentUTCOffset))
	pos += 2
	b[pos] = t.ReservedFlags
	pos++
	return pos, nil
}

// UnmarshalBinary parses []byte and populates struct fields.
func (t *NetSyncMonitorTLV) UnmarshalBinary(b []byte) error {
	if err := unmarshalTLVHeader(&t.TLVHead, b); err != nil {
		return err
	}
	if err := checkTLVLength(&t.TLVHead, len(b), netSyncMonitorBodyLen, false); err != nil {
		return err
	}
	pos := tlvHeadSize
	copy(t.OrganizationID[:], b[pos:])
	pos += 3
	copy(t.OrganizationSubType[:], b[pos:])
	pos += 3
	t.GMPriority1 = b[pos]
	pos++
	t.GMClockClass = ClockClass(b[pos])
	pos++
	t.GMClockAccuracy = ClockAccuracy(b[pos])
	pos++
	t.GMOffsetScaledLogVariance = binary.BigEndian.Uint16(b[pos:])
	pos += 2
	t.GMPriority2 = b[pos]
	pos++
	t.CurrentUTCOffset = int16(binary.BigEndian.Uint16(b[pos:]))
	pos += 2
	t.ReservedFlags = b[pos]
	return nil
}

// SlaveStatusTLV mirrors Solarflare's sfptpd slave-status organization
// extension: a compact summary of the port's own servo state, carried so
// a remote monitor can assess sync quality without a full management
// exchange.
type SlaveStatusTLV struct {
	TLVHead
	OrganizationID      OrganizationID
	OrganizationSubType [3]byte
	State               PortState
	OffsetFromMasterNS  int64
	MeanPathDelayNS     int64
}

const slaveStatusBodyLen = 23

// MarshalBinaryTo marshals bytes to SlaveStatusTLV.
func (t *SlaveStatusTLV) MarshalBinaryTo(b []byte) (int, error) {
	tlvHeadMarshalBinaryTo(&t.TLVHead, b)
	pos := tlvHeadSize
	copy(b[pos:], t.OrganizationID[:])
	pos += 3
	copy(b[pos:], t.OrganizationSubType[:])
	pos += 3
	b[pos] = uint8(t.State)
	pos++
	binary.BigEndian.PutUint64(b[pos:], uint64(t.OffsetFromMasterNS))
	pos += 8
	binary.BigEndian.PutUint64(b[pos:], uint64(t.MeanPathDelayNS))
	pos += 8
	return pos, nil
}

// UnmarshalBinary parses []byte and populates struct fields.
func (t *SlaveStatusTLV) UnmarshalBinary(b []byte) error {
	if err := unmarshalTLVHeader(&t.TLVHead, b); err != nil {
		return err
	}
	if err := checkTLVLength(&t.TLVHead, len(b), slaveStatusBodyLen, false); err != nil {
		return err
	}
	pos := tlvHeadSize
	copy(t.OrganizationID[:], b[pos:])
	pos += 3
	copy(t.OrganizationSubType[:], b[pos:])
	pos += 3
	t.State = PortState(b[pos])
	pos++
	t.OffsetFromMasterNS = int64(binary.BigEndian.Uint64(b[pos:]))
	pos += 8
	t.MeanPathDelayNS = int64(binary.BigEndian.Uint64(b[pos:]))
	return nil
}

// PortCommunicationCapabilitiesTLV (0x8002) advertises which message types
// a port is willing to receive unicast vs multicast, letting a hybrid slave
// know whether it may send unicast DelayReq to this master.
type PortCommunicationCapabilitiesTLV struct {
	TLVHead
	SyncCapabilities      uint8
	DelayRespCapabilities uint8
}

const portCommCapBodyLen = 2

// MarshalBinaryTo marshals bytes to PortCommunicationCapabilitiesTLV.
func (t *PortCommunicationCapabilitiesTLV) MarshalBinaryTo(b []byte) (int, error) {
	tlvHeadMarshalBinaryTo(&t.TLVHead, b)
	b[tlvHeadSize] = t.SyncCapabilities
	b[tlvHeadSize+1] = t.DelayRespCapabilities
	return tlvHeadSize + portCommCapBodyLen, nil
}

// UnmarshalBinary parses []byte and populates struct fields.
func (t *PortCommunicationCapabilitiesTLV) UnmarshalBinary(b []byte) error {
	if err := unmarshalTLVHeader(&t.TLVHead, b); err != nil {
		return err
	}
	if err := checkTLVLength(&t.TLVHead, len(b), portCommCapBodyLen, true); err != nil {
		return err
	}
	t.SyncCapabilities = b[tlvHeadSize]
	t.DelayRespCapabilities = b[tlvHeadSize+1]
	return nil
}

// SlaveEventMonitoringTLV is the shared shape of the three
// slave-event-monitoring TLVs (0x8004-0x8006): each carries a fixed count
// of per-event nanosecond fields whose meaning is determined entirely by
// TLVType, so one struct serves all three.
type SlaveEventMonitoringTLV struct {
	TLVHead
	Values []int64
}

// MarshalBinaryTo marshals bytes to SlaveEventMonitoringTLV.
func (t *SlaveEventMonitoringTLV) MarshalBinaryTo(b []byte) (int, error) {
	tlvHeadMarshalBinaryTo(&t.TLVHead, b)
	pos := tlvHeadSize
	for _, v := range t.Values {
		binary.BigEndian.PutUint64(b[pos:], uint64(v))
		pos += 8
	}
	return pos, nil
}

// UnmarshalBinary parses []byte and populates struct fields.
func (t *SlaveEventMonitoringTLV) UnmarshalBinary(b []byte) error {
	if err := unmarshalTLVHeader(&t.TLVHead, b); err != nil {
		return err
	}
	if int(t.TLVHead.LengthField)%8 != 0 {
		return fmt.Errorf("slave event monitoring TLV length %d is not a multiple of 8", t.TLVHead.LengthField)
	}
	n := int(t.TLVHead.LengthField) / 8
	if tlvHeadSize+n*8 > len(b) {
		return fmt.Errorf("cannot decode %d slave event monitoring values from %d bytes", n, len(b))
	}
	t.Values = make([]int64, n)
	for i := 0; i < n; i++ {
		pos := tlvHeadSize + i*8
		t.Values[i] = int64(binary.BigEndian.Uint64(b[pos:]))
	}
	return nil
}
