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

package pps

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialToD implements ToDSource over a GPS receiver's NMEA-0183 serial
// stream, grounded on sa53fw/mac.Mac's serial.Open/Mode dial pattern
// (57600 8N1 request/response), generalized here to a background
// read loop parsing $--ZDA/$--RMC time-of-day sentences instead of
// sa53fw's firmware-query request/response protocol.
type SerialToD struct {
	port serial.Port

	mu       sync.Mutex
	lastFix  time.Time
	lastRead time.Time
}

// OpenSerialToD dials a GPS receiver's NMEA serial port at the given
// baud rate (commonly 4800 or 9600 for u-blox/Trimble receivers) and
// starts the background sentence reader.
func OpenSerialToD(device string, baud int) (*SerialToD, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("opening ToD serial device %s: %w", device, err)
	}
	s := &SerialToD{port: port}
	go s.readLoop()
	return s, nil
}

// Close releases the serial port.
func (s *SerialToD) Close() error { return s.port.Close() }

func (s *SerialToD) readLoop() {
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		if fix, ok := parseNMEATime(scanner.Text()); ok {
			s.mu.Lock()
			s.lastFix = fix
			s.lastRead = time.Now()
			s.mu.Unlock()
		}
	}
}

// OffsetFromMaster returns now's offset from the GPS receiver's most
// recently parsed UTC fix, implementing pps.ToDSource. A fix older than
// 2 seconds is treated as stale (the 1 Hz ZDA/RMC sentence rate §4.G
// assumes).
func (s *SerialToD) OffsetFromMaster(now time.Time) (time.Duration, error) {
	s.mu.Lock()
	fix, read := s.lastFix, s.lastRead
	s.mu.Unlock()
	if fix.IsZero() {
		return 0, fmt.Errorf("no ToD fix received yet")
	}
	if now.Sub(read) > 2*time.Second {
		return 0, fmt.Errorf("ToD fix stale (last at %v)", read)
	}
	return now.Sub(fix), nil
}

// NotifyStepped is a no-op for a GPS ToD source: it has no local clock
// of its own for the synchronization core to keep informed of a step.
func (s *SerialToD) NotifyStepped(time.Duration) {}

// parseNMEATime extracts a UTC timestamp from a $--ZDA or $--RMC
// sentence's hhmmss.ss + date fields. It ignores checksum validation
// (the serial link is a trusted local peripheral, not untrusted input).
func parseNMEATime(line string) (time.Time, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return time.Time{}, false
	}
	fields := strings.Split(line, ",")
	if len(fields) == 0 {
		return time.Time{}, false
	}
	switch {
	case strings.HasSuffix(fields[0], "ZDA") && len(fields) >= 5:
		return parseZDA(fields)
	case strings.HasSuffix(fields[0], "RMC") && len(fields) >= 10:
		return parseRMC(fields)
	}
	return time.Time{}, false
}

func parseZDA(fields []string) (time.Time, bool) {
	hms, ok := parseHMS(fields[1])
	if !ok {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(fields[2])
	month, err2 := strconv.Atoi(fields[3])
	year, err3 := strconv.Atoi(fields[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hms.h, hms.m, hms.s, hms.ns, time.UTC), true
}

func parseRMC(fields []string) (time.Time, bool) {
	hms, ok := parseHMS(fields[1])
	if !ok {
		return time.Time{}, false
	}
	ddmmyy := fields[9]
	if len(ddmmyy) < 6 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(ddmmyy[0:2])
	month, err2 := strconv.Atoi(ddmmyy[2:4])
	yy, err3 := strconv.Atoi(ddmmyy[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	return time.Date(2000+yy, time.Month(month), day, hms.h, hms.m, hms.s, hms.ns, time.UTC), true
}

type hms struct {
	h, m, s, ns int
}

func parseHMS(field string) (hms, bool) {
	if len(field) < 6 {
		return hms{}, false
	}
	h, err1 := strconv.Atoi(field[0:2])
	m, err2 := strconv.Atoi(field[2:4])
	secFloat, err3 := strconv.ParseFloat(field[4:], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return hms{}, false
	}
	s := int(secFloat)
	ns := int((secFloat - float64(s)) * 1e9)
	return hms{h: h, m: m, s: s, ns: ns}, true
}
