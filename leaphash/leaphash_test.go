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

package leaphash

import (
	"testing"
)

// testDoc is a truncated leap-seconds.list excerpt (header comments
// plus the first three NTP-time/TAI-offset entries).
const testDoc = "#\tUpdated through IERS Bulletin C65\n" +
	"#\tFile expires on:  28 December 2023\n" +
	"#$\t3754944000\n" +
	"#\n" +
	"2272060800\t10\t# 1 Jan 1972\n" +
	"2287785600\t11\t# 1 Jul 1972\n" +
	"2303683200\t12\t# 1 Jan 1973\n"

// TestHashShouldMatch verifies that the hash value computed from testDoc
// matches a fixed expected value (testDoc itself carries no "#h" line)
func TestHashShouldMatch(t *testing.T) {
	hash := Compute(testDoc)
	expected := "11220c90 9d0cd464 8d38a6f5 5b8fd9ad 55649f24"
	if hash != expected {
		t.Fatalf("invalid hash value, got '%s', expected '%s'", hash, expected)
	}
}

// TestHashIgnoresComments verifies comment lines (and the "#h" hash
// line itself, were it present) never contribute to the digest.
func TestHashIgnoresComments(t *testing.T) {
	withComment := testDoc + "# trailing comment, not a data line\n"
	if Compute(withComment) != Compute(testDoc) {
		t.Fatal("trailing comment line changed the computed hash")
	}
}

func FuzzCompute(f *testing.F) {
	f.Add(testDoc)
	f.Fuzz(func(t *testing.T, input string) {
		_ = Compute(input)
	})
}
