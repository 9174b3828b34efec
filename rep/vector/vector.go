// Package vector provides a memtable representation backed by an unsorted
// append buffer of key offsets, sorted lazily on first read after the
// read-only transition.
//
// It is built for write-heavy tables that are usually flushed before anyone
// scans them: inserts are O(1) appends and the ordering cost is paid at most
// once, or never.
package vector

import (
	"sort"
	"sync"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/ikey"
)

// FactoryName is the registered name of the vector factory.
const FactoryName = "VectorRepFactory"

func init() {
	memrep.Register(FactoryName, func() memrep.Factory { return NewFactory(0) })
}

// Rep is the vector representation. Unlike the linked representations it
// mutates a shared array, so reads take a read lock instead of relying on
// atomic link publication.
type Rep struct {
	memrep.Base
	cmp memrep.KeyComparator

	mu        sync.RWMutex
	offsets   []uint64
	immutable bool
	sorted    bool
}

var _ memrep.MemTableRep = (*Rep)(nil)

// New creates a vector representation reserving capacity for count entries.
func New(cmp memrep.KeyComparator, a *arena.Arena, count int) *Rep {
	return &Rep{
		Base:    memrep.NewBase(a),
		cmp:     cmp,
		offsets: make([]uint64, 0, count),
	}
}

func (r *Rep) entry(off uint64) []byte {
	return ikey.Entry(r.Arena.Bytes(off))
}

// Insert appends the key in O(1) without maintaining order.
func (r *Rep) Insert(handle memrep.KeyHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.immutable {
		panic("vector: Insert after MarkReadOnly")
	}
	r.offsets = append(r.offsets, uint64(handle))
}

// Contains scans linearly before the sort and binary-searches after it.
func (r *Rep) Contains(key []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sorted {
		i := sort.Search(len(r.offsets), func(i int) bool {
			return r.cmp.Compare(r.entry(r.offsets[i]), key) >= 0
		})
		return i < len(r.offsets) && r.cmp.Compare(r.entry(r.offsets[i]), key) == 0
	}
	for _, off := range r.offsets {
		if r.cmp.Compare(r.entry(off), key) == 0 {
			return true
		}
	}
	return false
}

// MarkReadOnly arms the one-time sort performed by the next iterator request.
func (r *Rep) MarkReadOnly() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.immutable = true
}

// Get scans entries for k's user key through an iterator.
func (r *Rep) Get(k memrep.LookupKey, visit func(entry []byte) bool) {
	memrep.ScanGet(r.NewIterator(), k, visit)
}

// ApproximateMemoryUsage counts the offset buffer; key bytes live in the
// arena.
func (r *Rep) ApproximateMemoryUsage() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(cap(r.offsets)) * 8
}

// NewIterator returns a sorted cursor. After MarkReadOnly the backing buffer
// is sorted in place exactly once and shared by later iterators; before the
// transition each iterator sorts a private copy, since a concurrent writer
// may still be appending.
func (r *Rep) NewIterator() memrep.Iterator {
	r.mu.Lock()
	if r.immutable {
		if !r.sorted {
			r.sortOffsets(r.offsets)
			r.sorted = true
		}
		keys := r.offsets
		r.mu.Unlock()
		return &iterator{rep: r, keys: keys, pos: -1}
	}
	keys := make([]uint64, len(r.offsets))
	copy(keys, r.offsets)
	r.mu.Unlock()
	r.sortOffsets(keys)
	return &iterator{rep: r, keys: keys, pos: -1}
}

func (r *Rep) sortOffsets(keys []uint64) {
	sort.Slice(keys, func(i, j int) bool {
		return r.cmp.Compare(r.entry(keys[i]), r.entry(keys[j])) < 0
	})
}

// NewUserKeyIterator falls back to the full iterator.
func (r *Rep) NewUserKeyIterator(userKey []byte) memrep.Iterator {
	return r.NewIterator()
}

// NewDynamicPrefixIterator falls back to the full iterator.
func (r *Rep) NewDynamicPrefixIterator() memrep.Iterator {
	return r.NewIterator()
}

type iterator struct {
	rep  *Rep
	keys []uint64
	pos  int
}

func (it *iterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.keys)
}

func (it *iterator) Key() []byte {
	return it.rep.entry(it.keys[it.pos])
}

func (it *iterator) Next() { it.pos++ }

func (it *iterator) Prev() { it.pos-- }

func (it *iterator) Seek(internalKey, memtableKey []byte) {
	it.pos = sort.Search(len(it.keys), func(i int) bool {
		entry := it.rep.entry(it.keys[i])
		if memtableKey != nil {
			return it.rep.cmp.Compare(entry, memtableKey) >= 0
		}
		return it.rep.cmp.CompareKey(entry, internalKey) >= 0
	})
}

func (it *iterator) SeekToFirst() { it.pos = 0 }

func (it *iterator) SeekToLast() { it.pos = len(it.keys) - 1 }

// Factory builds vector representations.
type Factory struct {
	count int
}

// NewFactory returns a vector factory whose representations reserve capacity
// for count entries up front.
func NewFactory(count int) *Factory {
	return &Factory{count: count}
}

// Create builds a representation. The prefix extractor is ignored.
func (f *Factory) Create(cmp memrep.KeyComparator, a *arena.Arena, _ memrep.PrefixExtractor) (memrep.MemTableRep, error) {
	return New(cmp, a, f.count), nil
}

// Name identifies the factory.
func (f *Factory) Name() string { return FactoryName }
