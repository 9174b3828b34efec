// Package testutil provides helpers shared by the representation tests:
// entry construction, insert plumbing, and iterator draining.
//
// This package is intended for use in tests and benchmarks only.
package testutil

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/internal/ikey"
)

// Entry builds an encoded memtable entry for a value write.
func Entry(userKey string, seq uint64, value string) []byte {
	return ikey.AppendEntry(nil, []byte(userKey), seq, ikey.TagValue, []byte(value))
}

// Insert allocates, encodes and inserts one value entry.
func Insert(rep memrep.MemTableRep, userKey string, seq uint64, value string) error {
	h, buf, err := rep.Allocate(ikey.EntrySize([]byte(userKey), []byte(value)))
	if err != nil {
		return err
	}
	ikey.EncodeEntry(buf, []byte(userKey), seq, ikey.TagValue, []byte(value))
	rep.Insert(h)
	return nil
}

// UserKeys drains it forward from its current position and returns the user
// keys it visits, as strings.
func UserKeys(it memrep.Iterator) []string {
	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(ikey.UserKey(it.Key())))
	}
	return keys
}

// Values drains it forward and returns the entry values it visits.
func Values(it memrep.Iterator) []string {
	var values []string
	for ; it.Valid(); it.Next() {
		values = append(values, string(ikey.Value(it.Key())))
	}
	return values
}

// RandomKeys returns n distinct user keys in random order, deterministic for
// a given seed.
func RandomKeys(n int, seed int64) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%08d", i)
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	return keys
}

// CountingComparator wraps a comparator and counts Compare/CompareKey calls.
// The counter is safe to read while readers drive iterators.
type CountingComparator struct {
	Inner memrep.KeyComparator
	calls atomic.Int64
}

// Compare forwards to the wrapped comparator.
func (c *CountingComparator) Compare(a, b []byte) int {
	c.calls.Add(1)
	return c.Inner.Compare(a, b)
}

// CompareKey forwards to the wrapped comparator.
func (c *CountingComparator) CompareKey(a, internalKey []byte) int {
	c.calls.Add(1)
	return c.Inner.CompareKey(a, internalKey)
}

// Calls returns the number of comparisons observed so far.
func (c *CountingComparator) Calls() int64 { return c.calls.Load() }
