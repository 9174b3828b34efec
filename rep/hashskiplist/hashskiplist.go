// Package hashskiplist provides a memtable representation that partitions
// keys into hash buckets by user-key prefix, each bucket backed by an
// independent skip list.
//
// It targets workloads that iterate within one prefix far more often than
// across prefixes: a prefix-scoped scan touches a single bucket and costs
// O(bucket size) instead of O(table size).
//
// Ordering caveat: the full-table iterator concatenates buckets in bucket
// index order, each bucket internally sorted. Entries are totally ordered
// only within a prefix, never across the whole table.
package hashskiplist

import (
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/hashing"
	"github.com/simon-rock/memrep/internal/ikey"
	"github.com/simon-rock/memrep/rep/skiplist"
)

// FactoryName is the registered name of the hash skip list factory.
const FactoryName = "HashSkipListRepFactory"

func init() {
	memrep.Register(FactoryName, func() memrep.Factory { return NewFactory() })
}

// Defaults tuned for many small buckets: towers stay short because each
// bucket holds far fewer keys than a whole table would.
const (
	DefaultBucketCount     = 1000000
	DefaultSkiplistHeight  = 4
	DefaultBranchingFactor = 4
)

// Rep is the hash-bucketed skip list representation.
type Rep struct {
	memrep.Base
	cmp    memrep.KeyComparator
	prefix memrep.PrefixExtractor

	buckets     []atomic.Pointer[skiplist.List]
	bucketCount uint64
	height      int
	branching   int

	// nonEmpty is a copy-on-write snapshot of the bucket indices holding at
	// least one entry. Only the writer replaces it; readers snapshot it to
	// walk buckets in index order.
	nonEmpty atomic.Pointer[roaring.Bitmap]
}

var _ memrep.MemTableRep = (*Rep)(nil)

// New creates a hash skip list representation. prefix selects the bucket for
// each user key; it must not be nil.
func New(cmp memrep.KeyComparator, a *arena.Arena, prefix memrep.PrefixExtractor, bucketCount uint64, height, branching int) (*Rep, error) {
	if prefix == nil {
		return nil, fmt.Errorf("hashskiplist: prefix extractor is required")
	}
	if bucketCount == 0 {
		bucketCount = DefaultBucketCount
	}
	r := &Rep{
		Base:        memrep.NewBase(a),
		cmp:         cmp,
		prefix:      prefix,
		buckets:     make([]atomic.Pointer[skiplist.List], bucketCount),
		bucketCount: bucketCount,
		height:      height,
		branching:   branching,
	}
	r.nonEmpty.Store(roaring.New())
	return r, nil
}

func (r *Rep) bucketIndex(userKey []byte) uint64 {
	p := userKey
	if r.prefix.InDomain(userKey) {
		p = r.prefix.Transform(userKey)
	}
	return hashing.Bucket(p, r.bucketCount)
}

// bucket returns the bucket for an index, or nil when it was never created.
func (r *Rep) bucket(idx uint64) *skiplist.List {
	return r.buckets[idx].Load()
}

// bucketOrCreate creates the bucket list on first use. Creation is a CAS:
// even under single-writer inserts, a racing reader path may be probing the
// same slot, and the published pointer must be the one everybody agrees on.
func (r *Rep) bucketOrCreate(idx uint64) (*skiplist.List, error) {
	if l := r.buckets[idx].Load(); l != nil {
		return l, nil
	}
	l, err := skiplist.NewList(r.cmp, r.Arena, r.height, r.branching)
	if err != nil {
		return nil, err
	}
	if !r.buckets[idx].CompareAndSwap(nil, l) {
		return r.buckets[idx].Load(), nil
	}
	snap := r.nonEmpty.Load().Clone()
	snap.Add(uint32(idx))
	r.nonEmpty.Store(snap)
	return l, nil
}

// Insert routes the key to its prefix bucket, creating the bucket's skip
// list on first use.
func (r *Rep) Insert(handle memrep.KeyHandle) {
	keyOff := uint64(handle)
	entry := ikey.Entry(r.Arena.Bytes(keyOff))
	idx := r.bucketIndex(ikey.UserKey(entry))
	l, err := r.bucketOrCreate(idx)
	if err == nil {
		err = l.InsertKey(keyOff)
	}
	if err != nil {
		// Arena exhaustion mid-insert; the key buffer was already reserved,
		// so there is no path that preserves the write.
		panic(fmt.Errorf("hashskiplist: insert: %w", err))
	}
}

// Contains probes only the bucket the key's prefix hashes to.
func (r *Rep) Contains(key []byte) bool {
	l := r.bucket(r.bucketIndex(ikey.UserKey(key)))
	return l != nil && l.Contains(key)
}

// Get scans k's bucket only.
func (r *Rep) Get(k memrep.LookupKey, visit func(entry []byte) bool) {
	l := r.bucket(r.bucketIndex(k.UserKey()))
	if l == nil {
		return
	}
	memrep.ScanGet(l.NewIterator(), k, visit)
}

// ApproximateMemoryUsage counts the bucket pointer array and the non-empty
// bucket bitmap; bucket nodes live in the arena.
func (r *Rep) ApproximateMemoryUsage() uint64 {
	return r.bucketCount*8 + r.nonEmpty.Load().GetSizeInBytes()
}

// NewIterator returns a cursor concatenating every non-empty bucket in
// bucket index order. See the package comment for the ordering caveat.
func (r *Rep) NewIterator() memrep.Iterator {
	return &iterator{rep: r, bucketIDs: r.nonEmpty.Load().ToArray(), pos: -1}
}

// NewUserKeyIterator returns a cursor over the single bucket that userKey
// hashes to. It exposes every entry of that bucket, a superset of the
// entries carrying userKey.
func (r *Rep) NewUserKeyIterator(userKey []byte) memrep.Iterator {
	l := r.bucket(r.bucketIndex(userKey))
	if l == nil {
		return memrep.NewEmptyIterator()
	}
	return l.NewIterator()
}

// NewDynamicPrefixIterator returns a cursor that binds itself to the target
// bucket at Seek time, restricting visible entries to the target's prefix
// bucket.
func (r *Rep) NewDynamicPrefixIterator() memrep.Iterator {
	return &prefixIterator{rep: r}
}

// Factory builds hash skip list representations.
type Factory struct {
	bucketCount uint64
	height      int
	branching   int
}

// Option adjusts factory parameters.
type Option func(*Factory)

// WithBucketCount sets the number of hash buckets.
func WithBucketCount(n uint64) Option {
	return func(f *Factory) { f.bucketCount = n }
}

// WithSkiplistHeight sets the per-bucket tower height cap.
func WithSkiplistHeight(h int) Option {
	return func(f *Factory) { f.height = h }
}

// WithBranchingFactor sets the per-bucket skip list branching factor.
func WithBranchingFactor(b int) Option {
	return func(f *Factory) { f.branching = b }
}

// NewFactory returns a hash skip list factory with the given options.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		bucketCount: DefaultBucketCount,
		height:      DefaultSkiplistHeight,
		branching:   DefaultBranchingFactor,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create builds a representation over the given arena and prefix extractor.
func (f *Factory) Create(cmp memrep.KeyComparator, a *arena.Arena, prefix memrep.PrefixExtractor) (memrep.MemTableRep, error) {
	return New(cmp, a, prefix, f.bucketCount, f.height, f.branching)
}

// Name identifies the factory.
func (f *Factory) Name() string { return FactoryName }
