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

// Package leaphash computes the IANA leap-seconds.list file's
// self-verifying hash: a SHA1 digest over the NTP-time/TAI-offset pairs
// the file lists, formatted as five space-separated 32-bit hex words
// (the "#h" line every leap-seconds.list file carries). No other package
// of this module calls it; syncd's UPDATE_LEAP_SECOND data comes from the
// zoneinfo table read by leapsectz.
package leaphash

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // leap-seconds.list's own integrity hash is defined as SHA1, not a choice made here
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Compute returns doc's leap-seconds.list integrity hash, formatted the
// same way the file's own "#h" comment line is.
func Compute(doc string) string {
	h := sha1.New() //nolint:gosec
	scanner := bufio.NewScanner(strings.NewReader(doc))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if _, err := strconv.ParseUint(fields[0], 10, 64); err != nil {
			continue
		}
		if _, err := strconv.ParseInt(fields[1], 10, 64); err != nil {
			continue
		}
		h.Write([]byte(fields[0]))
		h.Write([]byte(fields[1]))
	}

	sum := h.Sum(nil)
	words := make([]string, 5)
	for i := 0; i < 5; i++ {
		words[i] = fmt.Sprintf("%08x", binary.BigEndian.Uint32(sum[i*4:i*4+4]))
	}
	return strings.Join(words, " ")
}
