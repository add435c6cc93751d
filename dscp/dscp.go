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

// Package dscp sets the DSCP (Differentiated Services Code Point)
// marking on outgoing PTP event-socket traffic, grounded on
// sptp/client/dscp.go's unexported enableDSCP, promoted here to its own
// package (the teacher only needed DSCP marking from the unicast
// client; the port engine's event/general sockets want it too, and a
// shared top-level package avoids duplicating the IPv4/IPv6 TOS/TCLASS
// branch in two places).
package dscp

import (
	"net"

	"golang.org/x/sys/unix"
)

// Enable sets the DSCP code point on fd, used for both the IPv4 and
// IPv6 destination address families a PTP event socket may send to.
// The DSCP value occupies the top 6 bits of the TOS/TCLASS octet,
// hence the <<2 shift.
func Enable(fd int, localAddr net.IP, dscpValue int) error {
	if localAddr.To4() == nil {
		return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_TCLASS, dscpValue<<2)
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, dscpValue<<2)
}
