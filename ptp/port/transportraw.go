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

package port

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/sys/unix"

	ptp "github.com/ptpcore/sync/ptp/protocol"
)

// EtherTypePTP is the PTP-over-Ethernet ethertype (IEEE 1588-2008 Annex F).
const EtherTypePTP = 0x88F7

// ptpMulticastMAC is the non-forwardable PTP multicast destination
// address (Annex F.2, Table 111); the forwardable alternative
// (01:80:C2:00:00:0E) is not used since spec.md's raw-Ethernet variant
// targets a single L2 segment.
var ptpMulticastMAC = net.HardwareAddr{0x01, 0x1B, 0x19, 0x00, 0x00, 0x00}

// RawTransport implements Transport directly over Ethernet frames
// (ethertype 0x88F7) via an AF_PACKET socket, the variant spec.md §3
// [PORT] calls out alongside UDPv4/UDPv6 for links with no IP
// configured. Framing uses gopacket/layers, the same library the
// original monorepo's ziffy packet-path tracer used for Ethernet framing,
// applied here to PTP instead of LLDP/traceroute probes. IEEE 1588
// carries no separate event/general ports over raw Ethernet (both
// message classes share one ethertype), so a background read loop
// demuxes incoming frames by message type into two channels,
// preserving the per-class blocking-read contract PortModule expects
// from UDPTransport.
type RawTransport struct {
	clockIdentity ptp.ClockIdentity
	ifi           *net.Interface
	fd            int

	eventCh   chan rawFrame
	generalCh chan rawFrame
	errCh     chan error
}

type rawFrame struct {
	buf []byte
	rx  time.Time
}

// NewRawTransport opens a raw AF_PACKET socket on iface carrying PTP in
// Ethernet frames rather than over UDP.
func NewRawTransport(iface string, clockIdentity ptp.ClockIdentity) (*RawTransport, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("resolving interface %s: %w", iface, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(EtherTypePTP)))
	if err != nil {
		return nil, fmt.Errorf("opening AF_PACKET socket: %w", err)
	}
	addr := unix.SockaddrLinklayer{
		Protocol: htons(EtherTypePTP),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding to %s: %w", iface, err)
	}

	t := &RawTransport{
		clockIdentity: clockIdentity,
		ifi:           ifi,
		fd:            fd,
		eventCh:       make(chan rawFrame, 64),
		generalCh:     make(chan rawFrame, 64),
		errCh:         make(chan error, 1),
	}
	go t.readLoop()
	return t, nil
}

func (t *RawTransport) readLoop() {
	buf := make([]byte, 1500)
	for {
		n, _, err := unix.Recvfrom(t.fd, buf, 0)
		if err != nil {
			select {
			case t.errCh <- err:
			default:
			}
			return
		}
		rx := time.Now()
		frame := make([]byte, n)
		copy(frame, buf[:n])
		hdr, err := ptp.DecodePacket(frame)
		if err != nil {
			continue
		}
		if isEventMessage(hdr) {
			t.eventCh <- rawFrame{buf: frame, rx: rx}
		} else {
			t.generalCh <- rawFrame{buf: frame, rx: rx}
		}
	}
}

// Close releases the raw socket.
func (t *RawTransport) Close() error {
	return unix.Close(t.fd)
}

// LocalClockIdentity implements Transport.
func (t *RawTransport) LocalClockIdentity() ptp.ClockIdentity { return t.clockIdentity }

// Send implements Transport, wrapping p in an Ethernet frame addressed
// to the PTP multicast MAC (addr is ignored: raw Ethernet has no
// per-peer unicast addressing in spec.md's deployment model).
func (t *RawTransport) Send(p ptp.Packet, _ net.Addr) (time.Time, error) {
	payload, err := ptp.Bytes(p)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshaling packet: %w", err)
	}

	eth := layers.Ethernet{
		SrcMAC:       t.ifi.HardwareAddr,
		DstMAC:       ptpMulticastMAC,
		EthernetType: EtherTypePTP,
	}
	sb := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(sb, gopacket.SerializeOptions{}, &eth, gopacket.Payload(payload)); err != nil {
		return time.Time{}, fmt.Errorf("serializing frame: %w", err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(EtherTypePTP),
		Ifindex:  t.ifi.Index,
		Halen:    6,
	}
	copy(addr.Addr[:], ptpMulticastMAC)
	now := time.Now()
	if err := unix.Sendto(t.fd, sb.Bytes(), 0, &addr); err != nil {
		return time.Time{}, fmt.Errorf("sending frame: %w", err)
	}
	return now, nil
}

// ReadEvent implements the same blocking-per-class read PortModule
// drives UDPTransport with.
func (t *RawTransport) ReadEvent() ([]byte, net.Addr, time.Time, error) {
	select {
	case f := <-t.eventCh:
		return f.buf, nil, f.rx, nil
	case err := <-t.errCh:
		return nil, nil, time.Time{}, err
	}
}

// ReadGeneral implements the general-class half of the same contract.
func (t *RawTransport) ReadGeneral() ([]byte, net.Addr, error) {
	select {
	case f := <-t.generalCh:
		return f.buf, nil, nil
	case err := <-t.errCh:
		return nil, nil, err
	}
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}
