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

// Package clockctl adapts the OS clock primitives (CLOCK_ADJTIME on the
// system clock, PTP_SYS_OFFSET/PTP_PEROUT ioctls on a PHC device) to the
// servo.ClockDriver and pps.EdgeSource interfaces the synchronization
// core disciplines against, generalizing clock/clock.go and
// phc/{phc.go,device.go,adjtime.go} away from their standalone
// command-line-tool call sites toward the §6 external clock surface.
package clockctl

import (
	"fmt"
	"os"
	"time"

	"github.com/jsimonetti/rtnetlink/rtnl"
	"golang.org/x/sys/unix"

	"github.com/ptpcore/sync/clock"
	"github.com/ptpcore/sync/phc"
	ptp "github.com/ptpcore/sync/ptp/protocol"
)

// SystemClock disciplines CLOCK_REALTIME via clock_adjtime(2), implementing
// servo.ClockDriver.
type SystemClock struct {
	clockID int32
}

// NewSystemClock builds a SystemClock driving CLOCK_REALTIME.
func NewSystemClock() *SystemClock {
	return &SystemClock{clockID: unix.CLOCK_REALTIME}
}

// AdjustFrequency sets the clock's frequency offset in PPB.
func (c *SystemClock) AdjustFrequency(ppb float64) error {
	_, err := clock.AdjFreqPPB(c.clockID, ppb)
	return err
}

// Step steps the clock by offset immediately.
func (c *SystemClock) Step(offset time.Duration) error {
	_, err := clock.Step(c.clockID, offset)
	return err
}

// MaxFreqPPB returns the maximum frequency adjustment the clock accepts.
func (c *SystemClock) MaxFreqPPB() float64 {
	freq, _, err := clock.MaxFreqPPB(c.clockID)
	if err != nil {
		return 0
	}
	return freq
}

// FrequencyPPB reads back the clock's currently applied frequency offset,
// used by the harness to persist SAVE_STATE.
func (c *SystemClock) FrequencyPPB() (float64, error) {
	freq, _, err := clock.FrequencyPPB(c.clockID)
	return freq, err
}

// MarkSynchronized sets the system clock's kernel discipline state to
// TIME_OK once the servo reports convergence.
func (c *SystemClock) MarkSynchronized() error {
	return clock.SetSync()
}

// PHCClock disciplines a PTP hardware clock device, implementing both
// servo.ClockDriver and pps.EdgeSource (via its extts PPS sink).
type PHCClock struct {
	dev  *phc.Device
	file *os.File
}

// OpenPHCClock opens the PHC character device (e.g. "/dev/ptp0").
func OpenPHCClock(devicePath string) (*PHCClock, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening PHC device %s: %w", devicePath, err)
	}
	return &PHCClock{dev: phc.FromFile(f), file: f}, nil
}

// Close releases the underlying device file.
func (c *PHCClock) Close() error { return c.file.Close() }

// AdjustFrequency sets the PHC's frequency offset in PPB.
func (c *PHCClock) AdjustFrequency(ppb float64) error { return c.dev.AdjFreq(ppb) }

// Step steps the PHC by offset immediately.
func (c *PHCClock) Step(offset time.Duration) error { return c.dev.Step(offset) }

// MaxFreqPPB returns the maximum frequency adjustment the PHC accepts.
func (c *PHCClock) MaxFreqPPB() float64 {
	max, err := c.dev.MaxFreqAdjPPB()
	if err != nil {
		return 0
	}
	return max
}

// FrequencyPPB reads back the PHC's currently applied frequency offset.
func (c *PHCClock) FrequencyPPB() (float64, error) { return c.dev.FreqPPB() }

// Time returns the PHC's current time, used to timestamp PPS-fused ToD
// samples (§4.G).
func (c *PHCClock) Time() (time.Time, error) { return c.dev.Time() }

// ActivatePPSSink configures pinIndex as an extts input and returns a
// pps.EdgeSource polling it, grounded on phc/pps_source.go's
// PPSSinkFromDevice/PollPPSSink (the real extts-poll path, as opposed to
// reading the PHC's own clock on a fixed tick).
func (c *PHCClock) ActivatePPSSink(pinIndex uint) (*phc.PPSSink, error) {
	return phc.PPSSinkFromDevice(c.dev, pinIndex)
}

// ActivatePPSSource configures pinIndex as a 1Hz PEROUT output, for a PHC
// that generates the PPS edge another PHCClock's ActivatePPSSink consumes.
func (c *PHCClock) ActivatePPSSource(pinIndex uint) (*phc.PPSSource, error) {
	return phc.ActivatePPSSource(c.dev, pinIndex)
}

// NewClockIdentity derives a PTP clock identity (EUI-64, FF:FE inserted
// at the middle per IEEE 1588 §7.5.2.2.2) from an interface's hardware
// address, resolved over rtnetlink rather than net.InterfaceByName. Each
// call dials its own netlink connection and closes it before returning.
func NewClockIdentity(iface string) (ptp.ClockIdentity, error) {
	conn, err := rtnl.Dial(nil)
	if err != nil {
		return 0, fmt.Errorf("establishing netlink connection: %w", err)
	}
	defer conn.Close()

	link, err := conn.LinkByName(iface)
	if err != nil {
		return 0, fmt.Errorf("resolving interface %s: %w", iface, err)
	}
	mac := link.HardwareAddr
	if len(mac) != 6 {
		return 0, fmt.Errorf("interface %s has no 6-byte hardware address", iface)
	}

	var id [8]byte
	copy(id[0:3], mac[0:3])
	id[3] = 0xff
	id[4] = 0xfe
	copy(id[5:8], mac[3:6])

	var out ptp.ClockIdentity
	for _, b := range id {
		out = out<<8 | ptp.ClockIdentity(b)
	}
	return out, nil
}
