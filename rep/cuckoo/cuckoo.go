// Package cuckoo provides a closed-hash memtable representation with O(1)
// worst-case point lookup.
//
// Every key hashes to a small fixed set of candidate slots and occupies
// exactly one of them, possibly after relocating other keys along a bounded
// displacement path. When no path terminates within the budget the key is
// routed to an overflow skip list and the table latches itself immutable:
// the variant deliberately trades continued write acceptance for bounded
// insert latency.
//
// The representation keeps only the latest version of each user key, so it
// supports neither snapshot reads nor merge operands; both capability flags
// report false and the engine must flush before operations that need them.
package cuckoo

import (
	"bytes"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/hashing"
	"github.com/simon-rock/memrep/internal/ikey"
	"github.com/simon-rock/memrep/rep/skiplist"
)

// FactoryName is the registered name of the cuckoo factory.
const FactoryName = "HashCuckooRepFactory"

func init() {
	memrep.Register(FactoryName, func() memrep.Factory {
		return NewFactory(DefaultWriteBufferSize)
	})
}

const (
	// DefaultWriteBufferSize sizes the slot table when the engine does not
	// pass its own write buffer size.
	DefaultWriteBufferSize = 64 << 20

	// DefaultAverageDataSize is the assumed key+value size used with the
	// write buffer size to estimate the expected entry count.
	DefaultAverageDataSize = 64

	// DefaultHashCount is the number of candidate slots per key.
	DefaultHashCount = 4

	// maxHashCount caps the candidate set; more hash functions past this
	// point buy no insert success worth the probe cost.
	maxHashCount = 8

	// targetLoadFactor leaves enough slack that displacement paths almost
	// always terminate below the step budget.
	targetLoadFactor = 0.7

	// maxDisplacementSteps bounds the breadth-first search for an eviction
	// path. Exhausting it is the designed overflow trigger, not an error.
	maxDisplacementSteps = 100
)

// Rep is the cuckoo hash representation.
type Rep struct {
	memrep.Base
	cmp memrep.KeyComparator

	slots     []atomic.Uint64 // key offsets, 0 = empty
	slotCount uint64
	seeds     []uint64

	// backup holds keys whose displacement search failed. Created lazily;
	// published by the single writer, probed by readers.
	backup atomic.Pointer[skiplist.List]

	immutable atomic.Bool
	logger    *memrep.Logger
}

var _ memrep.MemTableRep = (*Rep)(nil)

// New creates a cuckoo representation sized for writeBufferSize bytes of
// entries averaging averageDataSize bytes each.
func New(cmp memrep.KeyComparator, a *arena.Arena, writeBufferSize, averageDataSize int, hashCount int, logger *memrep.Logger) *Rep {
	if averageDataSize <= 0 {
		averageDataSize = DefaultAverageDataSize
	}
	if hashCount <= 0 {
		hashCount = DefaultHashCount
	}
	if hashCount > maxHashCount {
		hashCount = maxHashCount
	}
	if logger == nil {
		logger = memrep.NoopLogger()
	}

	expected := writeBufferSize / averageDataSize
	slotCount := uint64(float64(expected) / targetLoadFactor)
	if slotCount < uint64(hashCount)+1 {
		slotCount = uint64(hashCount) + 1
	}

	seeds := make([]uint64, hashCount)
	for i := range seeds {
		// Distinct odd seeds give independent murmur streams.
		seeds[i] = 0x9E3779B97F4A7C15*uint64(i+1) | 1
	}

	return &Rep{
		Base:      memrep.NewBase(a),
		cmp:       cmp,
		slots:     make([]atomic.Uint64, slotCount),
		slotCount: slotCount,
		seeds:     seeds,
		logger:    logger.WithRep(FactoryName),
	}
}

// Immutable reports whether the table has latched itself read-only, either
// through MarkReadOnly or through overflow backpressure. The engine must
// stop writing to it and flush.
func (r *Rep) Immutable() bool { return r.immutable.Load() }

func (r *Rep) candidates(userKey []byte, out []uint64) []uint64 {
	for _, seed := range r.seeds {
		out = append(out, hashing.Seeded(userKey, seed)%r.slotCount)
	}
	return out
}

func (r *Rep) entryAt(slot uint64) []byte {
	off := r.slots[slot].Load()
	if off == 0 {
		return nil
	}
	return ikey.Entry(r.Arena.Bytes(off))
}

// Insert places the key in one of its candidate slots, displacing residents
// along a bounded path when necessary. A failed displacement search routes
// the key to the overflow store and forces the table immutable; the key is
// never lost.
func (r *Rep) Insert(handle memrep.KeyHandle) {
	if r.immutable.Load() {
		panic("cuckoo: Insert after the table was forced immutable")
	}
	keyOff := uint64(handle)
	entry := ikey.Entry(r.Arena.Bytes(keyOff))
	userKey := ikey.UserKey(entry)

	var buf [maxHashCount]uint64
	cands := r.candidates(userKey, buf[:0])

	// Same user key: overwrite in place. Only the latest version is kept;
	// that is exactly why SupportsSnapshot reports false.
	for _, slot := range cands {
		if e := r.entryAt(slot); e != nil && bytes.Equal(ikey.UserKey(e), userKey) {
			r.slots[slot].Store(keyOff)
			return
		}
	}
	for _, slot := range cands {
		if r.slots[slot].Load() == 0 {
			r.slots[slot].Store(keyOff)
			return
		}
	}

	if path, ok := r.findDisplacementPath(cands); ok {
		// Apply from the far end backward: each resident is copied into its
		// next slot before its old slot is overwritten, so every key stays
		// reachable through one of its candidates at every instant.
		for i := len(path) - 2; i >= 0; i-- {
			r.slots[path[i+1]].Store(r.slots[path[i]].Load())
		}
		r.slots[path[0]].Store(keyOff)
		return
	}

	r.overflow(keyOff)
}

// findDisplacementPath searches breadth-first for a chain of moves ending in
// an empty slot, bounded by maxDisplacementSteps expansions. It returns slot
// indices from the incoming key's slot to the empty one.
func (r *Rep) findDisplacementPath(cands []uint64) ([]uint64, bool) {
	type step struct {
		slot   uint64
		parent int
	}
	queue := make([]step, 0, len(cands)*2)
	for _, slot := range cands {
		queue = append(queue, step{slot: slot, parent: -1})
	}
	seen := make(map[uint64]struct{}, maxDisplacementSteps)

	buildPath := func(i int, last uint64) []uint64 {
		path := []uint64{last}
		for ; i >= 0; i = queue[i].parent {
			path = append(path, queue[i].slot)
		}
		for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
			path[l], path[r] = path[r], path[l]
		}
		return path
	}

	for i, steps := 0, 0; i < len(queue) && steps < maxDisplacementSteps; i, steps = i+1, steps+1 {
		slot := queue[i].slot
		if _, dup := seen[slot]; dup {
			continue
		}
		seen[slot] = struct{}{}

		resident := r.entryAt(slot)
		if resident == nil {
			// Freed by an earlier expansion of this same search; treat as
			// terminal.
			return buildPath(queue[i].parent, slot), true
		}
		var buf [maxHashCount]uint64
		for _, next := range r.candidates(ikey.UserKey(resident), buf[:0]) {
			if next == slot {
				continue
			}
			if r.slots[next].Load() == 0 {
				return append(buildPath(queue[i].parent, slot), next), true
			}
			queue = append(queue, step{slot: next, parent: i})
		}
	}
	return nil, false
}

// overflow is the designed degradation path: the key lands in a backup skip
// list and the table latches immutable so the engine flushes it.
func (r *Rep) overflow(keyOff uint64) {
	l := r.backup.Load()
	if l == nil {
		var err error
		l, err = skiplist.NewList(r.cmp, r.Arena, 0, 0)
		if err != nil {
			panic(fmt.Errorf("cuckoo: overflow store: %w", err))
		}
		r.backup.Store(l)
	}
	if err := l.InsertKey(keyOff); err != nil {
		panic(fmt.Errorf("cuckoo: overflow insert: %w", err))
	}
	if !r.immutable.Swap(true) {
		r.logger.Warn("displacement budget exhausted, table forced immutable",
			"slots", r.slotCount, "step_budget", maxDisplacementSteps)
	}
}

// Contains probes the candidate slots and the overflow store.
func (r *Rep) Contains(key []byte) bool {
	userKey := ikey.UserKey(key)
	var buf [maxHashCount]uint64
	for _, slot := range r.candidates(userKey, buf[:0]) {
		if e := r.entryAt(slot); e != nil && r.cmp.Compare(e, key) == 0 {
			return true
		}
	}
	l := r.backup.Load()
	return l != nil && l.Contains(key)
}

// MarkReadOnly latches the table immutable.
func (r *Rep) MarkReadOnly() {
	r.immutable.Store(true)
}

// Get probes the candidate slots directly instead of walking an iterator;
// this is the constant-time lookup the variant exists for.
func (r *Rep) Get(k memrep.LookupKey, visit func(entry []byte) bool) {
	userKey := k.UserKey()
	var buf [maxHashCount]uint64
	for _, slot := range r.candidates(userKey, buf[:0]) {
		if e := r.entryAt(slot); e != nil && bytes.Equal(ikey.UserKey(e), userKey) {
			if !visit(e) {
				return
			}
			break
		}
	}
	if l := r.backup.Load(); l != nil {
		memrep.ScanGet(l.NewIterator(), k, visit)
	}
}

// ApproximateMemoryUsage counts the slot array.
func (r *Rep) ApproximateMemoryUsage() uint64 {
	return r.slotCount * 8
}

// NewIterator exists for flush: it snapshots all occupied slots plus the
// overflow store into a sorted vector. It is not snapshot consistent with
// concurrent writes, which is acceptable only because the engine flushes
// this table once it is immutable.
func (r *Rep) NewIterator() memrep.Iterator {
	entries := make([][]byte, 0, 256)
	for i := range r.slots {
		if e := r.entryAt(uint64(i)); e != nil {
			entries = append(entries, e)
		}
	}
	if l := r.backup.Load(); l != nil {
		it := l.NewIterator()
		for it.SeekToFirst(); it.Valid(); it.Next() {
			entries = append(entries, it.Key())
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return r.cmp.Compare(entries[i], entries[j]) < 0
	})
	return &iterator{entries: entries, cmp: r.cmp, pos: -1}
}

// NewUserKeyIterator falls back to the full snapshot iterator.
func (r *Rep) NewUserKeyIterator(userKey []byte) memrep.Iterator {
	return r.NewIterator()
}

// NewDynamicPrefixIterator falls back to the full snapshot iterator.
func (r *Rep) NewDynamicPrefixIterator() memrep.Iterator {
	return r.NewIterator()
}

// SupportsMerge reports false: merge operands need every version of a key.
func (r *Rep) SupportsMerge() bool { return false }

// SupportsSnapshot reports false: only the latest version of each key is
// kept.
func (r *Rep) SupportsSnapshot() bool { return false }
