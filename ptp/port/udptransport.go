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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"

	"github.com/ptpcore/sync/dscp"
	ptp "github.com/ptpcore/sync/ptp/protocol"
	"github.com/ptpcore/sync/timestamp"
)

// EventPort/GeneralPort are the standard PTP UDP ports (§6).
const (
	EventPort   = 319
	GeneralPort = 320
)

// PTP multicast groups (§6): the primary group carries Announce/Sync/
// Follow_Up/Delay_Req/Delay_Resp, the pdelay group carries the peer-
// delay exchange alone so it stays link-local even when the primary
// group is routed.
var (
	multicastPrimaryIPv4 = net.IPv4(224, 0, 1, 129)
	multicastPDelayIPv4  = net.IPv4(224, 0, 0, 107)
	multicastPrimaryIPv6 = net.ParseIP("ff0e::181")
	multicastPDelayIPv6  = net.ParseIP("ff02::6b")
)

// UDPTransport implements Transport over a pair of UDP sockets (event
// port 319, general port 320), grounded on ptp/sptp/client/client.go's
// udpConnTS: WriteToWithTS recovers the TX timestamp via the socket's
// error queue immediately after sending (hardware timestamping mode),
// the same discipline the teacher's unicast client uses for its own
// DelayReq exchange, generalized here to every outgoing event message a
// port (SLAVE or MASTER) sends.
type UDPTransport struct {
	clockIdentity ptp.ClockIdentity

	eventConn   *net.UDPConn
	generalConn *net.UDPConn

	mu sync.Mutex
}

// NewUDPTransport opens the event/general UDP sockets on iface, enables
// hardware (falling back to software) TX/RX timestamping, and marks
// outgoing traffic with dscpValue (0 disables DSCP marking).
func NewUDPTransport(iface string, clockIdentity ptp.ClockIdentity, hw bool, dscpValue int) (*UDPTransport, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("resolving interface %s: %w", iface, err)
	}

	eventConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: EventPort})
	if err != nil {
		return nil, fmt.Errorf("listening on event port: %w", err)
	}
	generalConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: GeneralPort})
	if err != nil {
		eventConn.Close()
		return nil, fmt.Errorf("listening on general port: %w", err)
	}

	connFd, err := timestamp.ConnFd(eventConn)
	if err != nil {
		eventConn.Close()
		generalConn.Close()
		return nil, fmt.Errorf("getting event socket fd: %w", err)
	}
	ts := timestamp.SWTIMESTAMP
	if hw {
		ts = timestamp.HWTIMESTAMP
	}
	if err := timestamp.EnableTimestamps(ts, connFd, ifi); err != nil {
		eventConn.Close()
		generalConn.Close()
		return nil, fmt.Errorf("enabling timestamps: %w", err)
	}

	if err := joinPTPMulticastGroups(eventConn, generalConn, ifi); err != nil {
		eventConn.Close()
		generalConn.Close()
		return nil, fmt.Errorf("joining PTP multicast groups: %w", err)
	}

	if dscpValue > 0 {
		generalFd, err := timestamp.ConnFd(generalConn)
		if err != nil {
			eventConn.Close()
			generalConn.Close()
			return nil, fmt.Errorf("getting general socket fd: %w", err)
		}
		for _, fd := range []int{connFd, generalFd} {
			if err := dscp.Enable(fd, net.IPv4zero, dscpValue); err != nil {
				eventConn.Close()
				generalConn.Close()
				return nil, fmt.Errorf("enabling DSCP: %w", err)
			}
		}
	}

	return &UDPTransport{
		clockIdentity: clockIdentity,
		eventConn:     eventConn,
		generalConn:   generalConn,
	}, nil
}

// Close releases both sockets.
func (t *UDPTransport) Close() error {
	err1 := t.eventConn.Close()
	err2 := t.generalConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// LocalClockIdentity returns the clock identity this transport's port
// advertises as SourcePortIdentity.
func (t *UDPTransport) LocalClockIdentity() ptp.ClockIdentity { return t.clockIdentity }

// Send marshals p and writes it to the event or general socket
// depending on its message type, returning the TX timestamp recovered
// from the event socket's error queue for event messages (general
// messages, which carry no t1/t3/t4 semantics, get the wall-clock send
// time instead).
func (t *UDPTransport) Send(p ptp.Packet, addr net.Addr) (time.Time, error) {
	buf, err := ptp.Bytes(p)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshaling packet: %w", err)
	}

	if addr == nil {
		addr = &net.UDPAddr{IP: net.IPv4(224, 0, 1, 129), Port: EventPort}
	}

	if isEventMessage(p) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, err := t.eventConn.WriteTo(buf, addr); err != nil {
			return time.Time{}, fmt.Errorf("writing event message: %w", err)
		}
		connFd, err := timestamp.ConnFd(t.eventConn)
		if err != nil {
			return time.Time{}, fmt.Errorf("getting event socket fd: %w", err)
		}
		txTS, _, err := timestamp.ReadTXtimestamp(connFd)
		if err != nil {
			return time.Time{}, fmt.Errorf("reading TX timestamp: %w", err)
		}
		return txTS, nil
	}

	if _, err := t.generalConn.WriteTo(buf, &net.UDPAddr{IP: addr.(*net.UDPAddr).IP, Port: GeneralPort}); err != nil {
		return time.Time{}, fmt.Errorf("writing general message: %w", err)
	}
	return time.Now(), nil
}

// ReadEvent blocks for the next event-port packet and its RX timestamp.
func (t *UDPTransport) ReadEvent() ([]byte, net.Addr, time.Time, error) {
	connFd, err := timestamp.ConnFd(t.eventConn)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("getting event socket fd: %w", err)
	}
	buf, sa, ts, err := timestamp.ReadPacketWithRXTimestamp(connFd)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	return buf, sockaddrToUDPAddr(sa), ts, nil
}

// ReadGeneral blocks for the next general-port packet.
func (t *UDPTransport) ReadGeneral() ([]byte, net.Addr, error) {
	buf := make([]byte, 1500)
	n, addr, err := t.generalConn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// joinPTPMulticastGroups subscribes both sockets to the primary and
// pdelay multicast groups (§6), v4 and v6, on ifi. A port that never
// joins these never sees Announce/Sync from a multicast master, so
// every socket this transport opens must join before it's handed back
// to the caller.
func joinPTPMulticastGroups(eventConn, generalConn *net.UDPConn, ifi *net.Interface) error {
	p4event := ipv4.NewPacketConn(eventConn)
	p4general := ipv4.NewPacketConn(generalConn)
	p6event := ipv6.NewPacketConn(eventConn)
	p6general := ipv6.NewPacketConn(generalConn)

	for _, group := range []net.IP{multicastPrimaryIPv4, multicastPDelayIPv4} {
		addr := &net.UDPAddr{IP: group}
		if err := p4event.JoinGroup(ifi, addr); err != nil {
			return fmt.Errorf("joining %s on event socket: %w", group, err)
		}
		if err := p4general.JoinGroup(ifi, addr); err != nil {
			return fmt.Errorf("joining %s on general socket: %w", group, err)
		}
	}
	// IPv6 group membership is best-effort: a v4-only host or a kernel
	// with IPv6 disabled on ifi must not prevent an otherwise-working
	// v4 port from starting.
	for _, group := range []net.IP{multicastPrimaryIPv6, multicastPDelayIPv6} {
		addr := &net.UDPAddr{IP: group}
		if err := p6event.JoinGroup(ifi, addr); err != nil {
			log.Warnf("joining IPv6 group %s on event socket: %v", group, err)
			continue
		}
		if err := p6general.JoinGroup(ifi, addr); err != nil {
			log.Warnf("joining IPv6 group %s on general socket: %v", group, err)
		}
	}
	return nil
}

func isEventMessage(p ptp.Packet) bool {
	switch p.(type) {
	case *ptp.SyncDelayReq:
		return true
	default:
		return false
	}
}

func sockaddrToUDPAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	default:
		return nil
	}
}
