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

// Package tscache correlates transmit timestamps recovered asynchronously
// from the kernel error queue to the in-flight packets awaiting them. It
// generalizes the teacher's timestamp/timestamp_linux.go error-queue
// poll/recv/parse discipline (waitForHWTS, recvoob,
// socketControlMessageSeqIDTimestamp) away from SCM_TS_OPT_ID sequence
// correlation toward the synchronization core's ticket/slot/free-bitmap/
// PDU-byte-match design, since the kernel's own sequence numbering is not
// always available or trustworthy across NIC driver generations.
package tscache

import (
	"bytes"
	"math"
	"time"

	"github.com/eclesh/welford"
)

// Slots is the fixed cache size per interface.
const Slots = 32

// Ticket identifies a reserved cache entry. Match does not take a
// Ticket: it finds entries by PDU bytes, and once an entry is evicted its
// slot may hold a newer reservation with a different Seq.
type Ticket struct {
	Seq  uint64
	Slot int
}

type entry struct {
	pdu     []byte
	trailer int
	user    any
	sentAt  time.Time
	seq     uint64
	valid   bool
}

// numBuckets buckets ages by power of ten: bucket index =
// ceil(log10(age_ns)) clamped to [0,10], so bucket 5 ends at 1e-4s (100us)
// and bucket 10 holds every age above 1s, including ages above 10s.
const numBuckets = 11 // log10 in [0,10]

type bucketStats struct {
	resolved int64
	pending  int64
	evicted  int64
	age      *welford.Stats
}

// Cache is the per-interface timestamp correlation cache.
type Cache struct {
	entries    [Slots]entry
	freeBitmap uint32 // bit set => slot free
	nextSeq    uint64

	buckets [numBuckets]bucketStats
}

// New builds an empty cache with all slots free.
func New() *Cache {
	c := &Cache{freeBitmap: (1 << Slots) - 1}
	for i := range c.buckets {
		c.buckets[i].age = welford.New()
	}
	return c
}

func bucketIndex(ageNs float64) int {
	if ageNs <= 0 {
		return 0
	}
	idx := int(math.Ceil(math.Log10(ageNs)))
	if idx < 0 {
		idx = 0
	}
	if idx >= numBuckets {
		idx = numBuckets - 1
	}
	return idx
}

// Reserve picks a free slot (or evicts the oldest-sent occupant if the
// cache is full) and returns a ticket identifying it.
func (c *Cache) Reserve(pdu []byte, trailer int, user any, now time.Time) Ticket {
	slot := c.findFreeSlot()
	if slot < 0 {
		slot = c.evictOldest(now)
	}

	buf := make([]byte, len(pdu))
	copy(buf, pdu)

	c.nextSeq++
	c.entries[slot] = entry{
		pdu:     buf,
		trailer: trailer,
		user:    user,
		sentAt:  now,
		seq:     c.nextSeq,
		valid:   true,
	}
	c.freeBitmap &^= 1 << uint(slot)

	return Ticket{Seq: c.nextSeq, Slot: slot}
}

func (c *Cache) findFreeSlot() int {
	for i := 0; i < Slots; i++ {
		if c.freeBitmap&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

func (c *Cache) evictOldest(now time.Time) int {
	oldest := -1
	for i := range c.entries {
		if !c.entries[i].valid {
			continue
		}
		if oldest == -1 || c.entries[i].sentAt.Before(c.entries[oldest].sentAt) {
			oldest = i
		}
	}
	if oldest >= 0 {
		age := now.Sub(c.entries[oldest].sentAt).Seconds() * 1e9
		b := &c.buckets[bucketIndex(age)]
		b.evicted++
		c.release(oldest)
	}
	return oldest
}

func (c *Cache) release(slot int) {
	c.entries[slot] = entry{}
	c.freeBitmap |= 1 << uint(slot)
}

// Match compares recovered against each occupied slot's stored PDU bytes
// (excluding the trailing `trailer` bytes, which may have been mangled by
// the kernel), releasing and returning the first (and only) match.
// Returns the user descriptor and true on success.
func (c *Cache) Match(recovered []byte, now time.Time) (any, bool) {
	for i := range c.entries {
		e := &c.entries[i]
		if !e.valid {
			continue
		}
		if pduMatches(e.pdu, e.trailer, recovered) {
			user := e.user
			age := now.Sub(e.sentAt).Seconds() * 1e9
			b := &c.buckets[bucketIndex(age)]
			b.resolved++
			b.age.Add(age)
			c.release(i)
			return user, true
		}
	}
	return nil, false
}

func pduMatches(stored []byte, trailer int, recovered []byte) bool {
	n := len(stored) - trailer
	if n < 0 {
		n = 0
	}
	if n > len(recovered) {
		return false
	}
	return bytes.Equal(stored[:n], recovered[:n])
}

// Sweep accounts every still-pending slot into its quantile bucket for
// the time-to-alarm metric; it does not evict anything.
func (c *Cache) Sweep(now time.Time) {
	for i := range c.entries {
		if !c.entries[i].valid {
			continue
		}
		age := now.Sub(c.entries[i].sentAt).Seconds() * 1e9
		c.buckets[bucketIndex(age)].pending++
	}
}

// Occupied reports the number of slots currently in use.
func (c *Cache) Occupied() int {
	n := 0
	for i := 0; i < Slots; i++ {
		if c.freeBitmap&(1<<uint(i)) == 0 {
			n++
		}
	}
	return n
}

// BucketStats is a read-only snapshot of one quantile bucket's counters.
type BucketStats struct {
	Resolved, Pending, Evicted int64
	MeanAgeNS, StddevAgeNS     float64
}

// Stats returns a snapshot of all quantile buckets.
func (c *Cache) Stats() [numBuckets]BucketStats {
	var out [numBuckets]BucketStats
	for i, b := range c.buckets {
		out[i] = BucketStats{
			Resolved:     b.resolved,
			Pending:      b.pending,
			Evicted:      b.evicted,
			MeanAgeNS:    b.age.Mean(),
			StddevAgeNS:  b.age.Stddev(),
		}
	}
	return out
}
