// Package hashlinklist provides a memtable representation that partitions
// keys into hash buckets by user-key prefix, each bucket a sorted singly
// linked chain.
//
// Compared to the bucketed skip list it trades O(log bucket) operations for
// O(bucket) ones in exchange for two words of overhead per entry, which pays
// off when buckets are expected to stay small.
//
// The bucket index array can be backed by huge pages to cut TLB pressure on
// very large bucket counts; absent OS support this silently degrades to a
// standard allocation. A mapped bucket array lives outside the Go heap, so
// the representation must be released with Close when it is discarded after
// flush, alongside freeing its arena.
package hashlinklist

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/hashing"
	"github.com/simon-rock/memrep/internal/ikey"
	"github.com/simon-rock/memrep/internal/mmap"
)

// FactoryName is the registered name of the hash linked list factory.
const FactoryName = "HashLinkListRepFactory"

func init() {
	memrep.Register(FactoryName, func() memrep.Factory { return NewFactory() })
}

// DefaultBucketCount is sized for small buckets over a typical write buffer.
const DefaultBucketCount = 50000

const bloomFalsePositiveRate = 0.01

// Arena chain node layout: the key offset followed by the next link.
const (
	nodeKeyOff  = 0
	nodeNextOff = 8
	nodeSize    = 16
)

// Rep is the hash-bucketed sorted linked list representation.
type Rep struct {
	memrep.Base
	cmp    memrep.KeyComparator
	prefix memrep.PrefixExtractor

	bucketCount uint64
	heads       []atomic.Uint64
	mapping     *mmap.Mapping // non-nil when heads lives in mapped memory

	entries  atomic.Uint64
	nonEmpty atomic.Pointer[roaring.Bitmap]

	// filter is built once inside MarkReadOnly and published here; the
	// bloom implementation is not safe for concurrent writes, so it never
	// exists while inserts are still running.
	filter atomic.Pointer[bloom.BloomFilter]

	logger *memrep.Logger
}

var _ memrep.MemTableRep = (*Rep)(nil)

// New creates a hash linked list representation. A hugePageTLBSize > 0
// requests huge-page backing of that page size for the bucket array.
func New(cmp memrep.KeyComparator, a *arena.Arena, prefix memrep.PrefixExtractor, bucketCount uint64, hugePageTLBSize int, logger *memrep.Logger) (*Rep, error) {
	if prefix == nil {
		return nil, fmt.Errorf("hashlinklist: prefix extractor is required")
	}
	if bucketCount == 0 {
		bucketCount = DefaultBucketCount
	}
	if logger == nil {
		logger = memrep.NoopLogger()
	}
	r := &Rep{
		Base:        memrep.NewBase(a),
		cmp:         cmp,
		prefix:      prefix,
		bucketCount: bucketCount,
		logger:      logger.WithRep(FactoryName).WithBuckets(bucketCount),
	}
	r.nonEmpty.Store(roaring.New())

	if hugePageTLBSize > 0 {
		if m, err := mmap.MapAnonHuge(int(bucketCount)*8, hugePageTLBSize); err == nil {
			r.mapping = m
			b := m.Bytes()
			r.heads = unsafe.Slice((*atomic.Uint64)(unsafe.Pointer(&b[0])), bucketCount)
		} else {
			r.logger.Debug("huge page mapping unavailable, using standard allocation", "error", err)
		}
	}
	if r.heads == nil {
		r.heads = make([]atomic.Uint64, bucketCount)
	}
	return r, nil
}

// Close releases the bucket array mapping when huge pages were granted.
// Mapped memory is outside the GC's reach, so the engine must pair every New
// with a Close when it discards the representation after flush, the same way
// it pairs the arena with Free. A heap-backed rep has nothing to release;
// Close is always safe to call and idempotent.
func (r *Rep) Close() error {
	if r.mapping != nil {
		return r.mapping.Close()
	}
	return nil
}

func (r *Rep) bucketIndex(userKey []byte) uint64 {
	p := userKey
	if r.prefix.InDomain(userKey) {
		p = r.prefix.Transform(userKey)
	}
	return hashing.Bucket(p, r.bucketCount)
}

func (r *Rep) nextWord(n uint64) *atomic.Uint64 {
	return (*atomic.Uint64)(r.Arena.Pointer(n + nodeNextOff))
}

func (r *Rep) nodeKey(n uint64) []byte {
	keyOff := (*atomic.Uint64)(r.Arena.Pointer(n + nodeKeyOff)).Load()
	return ikey.Entry(r.Arena.Bytes(keyOff))
}

// Insert walks the target chain to the key's sorted position and publishes
// the new node with a single atomic link store.
func (r *Rep) Insert(handle memrep.KeyHandle) {
	keyOff := uint64(handle)
	entry := ikey.Entry(r.Arena.Bytes(keyOff))
	idx := r.bucketIndex(ikey.UserKey(entry))

	prev := &r.heads[idx]
	emptyBucket := prev.Load() == 0
	curr := prev.Load()
	for curr != 0 && r.cmp.Compare(r.nodeKey(curr), entry) < 0 {
		prev = r.nextWord(curr)
		curr = prev.Load()
	}

	n, _, err := r.Arena.Alloc(nodeSize)
	if err != nil {
		// The key buffer was already reserved; no path preserves the write.
		panic(fmt.Errorf("hashlinklist: insert: %w", err))
	}
	(*atomic.Uint64)(r.Arena.Pointer(n + nodeKeyOff)).Store(keyOff)
	r.nextWord(n).Store(curr)
	prev.Store(n)

	r.entries.Add(1)
	if emptyBucket {
		snap := r.nonEmpty.Load().Clone()
		snap.Add(uint32(idx))
		r.nonEmpty.Store(snap)
	}
}

// Contains consults the read-only bloom filter when present, then walks the
// key's chain.
func (r *Rep) Contains(key []byte) bool {
	userKey := ikey.UserKey(key)
	if f := r.filter.Load(); f != nil && !f.Test(userKey) {
		return false
	}
	curr := r.heads[r.bucketIndex(userKey)].Load()
	for curr != 0 {
		c := r.cmp.Compare(r.nodeKey(curr), key)
		if c == 0 {
			return true
		}
		if c > 0 {
			return false
		}
		curr = r.nextWord(curr).Load()
	}
	return false
}

// MarkReadOnly builds the user-key bloom filter from a full chain walk and
// publishes it. No insert runs after this, so the filter is immutable from
// birth.
func (r *Rep) MarkReadOnly() {
	n := r.entries.Load()
	if n == 0 {
		return
	}
	f := bloom.NewWithEstimates(uint(n), bloomFalsePositiveRate)
	snap := r.nonEmpty.Load()
	for it := snap.Iterator(); it.HasNext(); {
		curr := r.heads[it.Next()].Load()
		for curr != 0 {
			f.Add(ikey.UserKey(r.nodeKey(curr)))
			curr = r.nextWord(curr).Load()
		}
	}
	r.filter.Store(f)
	r.logger.Debug("published read-only bloom filter", "entries", n)
}

// Get scans k's chain only.
func (r *Rep) Get(k memrep.LookupKey, visit func(entry []byte) bool) {
	userKey := k.UserKey()
	if f := r.filter.Load(); f != nil && !f.Test(userKey) {
		return
	}
	idx := r.bucketIndex(userKey)
	memrep.ScanGet(&chainIterator{rep: r, head: &r.heads[idx]}, k, visit)
}

// ApproximateMemoryUsage counts the bucket array (unless it lives in a
// dedicated mapping), the bucket bitmap, and the bloom filter.
func (r *Rep) ApproximateMemoryUsage() uint64 {
	total := r.nonEmpty.Load().GetSizeInBytes()
	if r.mapping != nil {
		total += uint64(r.mapping.Size())
	} else {
		total += r.bucketCount * 8
	}
	if f := r.filter.Load(); f != nil {
		total += uint64(f.Cap()) / 8
	}
	return total
}

// NewIterator returns a cursor concatenating every non-empty chain in bucket
// index order, each chain sorted. As with the bucketed skip list, there is
// no total order across buckets.
func (r *Rep) NewIterator() memrep.Iterator {
	return &crossIterator{rep: r, bucketIDs: r.nonEmpty.Load().ToArray(), pos: -1}
}

// NewUserKeyIterator returns a cursor over the single chain userKey hashes
// to.
func (r *Rep) NewUserKeyIterator(userKey []byte) memrep.Iterator {
	idx := r.bucketIndex(userKey)
	it := &chainIterator{rep: r, head: &r.heads[idx]}
	return it
}

// NewDynamicPrefixIterator returns a cursor that binds to the target's chain
// at Seek time.
func (r *Rep) NewDynamicPrefixIterator() memrep.Iterator {
	return &dynamicIterator{rep: r}
}

// Factory builds hash linked list representations.
type Factory struct {
	bucketCount     uint64
	hugePageTLBSize int
	logger          *memrep.Logger
}

// Option adjusts factory parameters.
type Option func(*Factory)

// WithBucketCount sets the number of hash buckets.
func WithBucketCount(n uint64) Option {
	return func(f *Factory) { f.bucketCount = n }
}

// WithHugePageTLBSize requests huge-page backing of the given page size for
// the bucket array. Zero keeps standard allocation.
func WithHugePageTLBSize(size int) Option {
	return func(f *Factory) { f.hugePageTLBSize = size }
}

// WithLogger sets the logger passed to created representations.
func WithLogger(l *memrep.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// NewFactory returns a hash linked list factory with the given options.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{bucketCount: DefaultBucketCount}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create builds a representation over the given arena and prefix extractor.
func (f *Factory) Create(cmp memrep.KeyComparator, a *arena.Arena, prefix memrep.PrefixExtractor) (memrep.MemTableRep, error) {
	return New(cmp, a, prefix, f.bucketCount, f.hugePageTLBSize, f.logger)
}

// Name identifies the factory.
func (f *Factory) Name() string { return FactoryName }
