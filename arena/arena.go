// Package arena provides the bump allocator that owns every key buffer and
// node a memtable representation creates.
//
// Allocations are handed out as global offsets rather than raw pointers, so a
// representation can store links as plain integers inside arena memory.
// Nothing is ever freed individually; the arena releases all of its memory at
// once when the owning representation is discarded.
//
// Alloc may be called from multiple goroutines. Free must not run concurrently
// with allocations; the single-writer discipline of the memtable layer already
// guarantees this.
package arena

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/simon-rock/memrep/internal/mmap"
)

// ErrExhausted is returned when the arena cannot grow any further. The write
// that hit it cannot proceed; the engine is expected to fail the write, not
// retry against the same table.
var ErrExhausted = errors.New("arena: exhausted")

const (
	// DefaultChunkSize is the size of each allocation chunk.
	DefaultChunkSize = 1 << 20

	// alignment applies to every allocation so that link words embedded in
	// arena memory can be accessed atomically.
	alignment = 8

	// maxChunks bounds the chunk table. With 1 MiB chunks this allows 64 GiB
	// per arena, far beyond any single write buffer.
	maxChunks = 1 << 16
)

type chunk struct {
	data    []byte
	mapping *mmap.Mapping // nil when the chunk fell back to heap allocation
	offset  atomic.Int64
	index   uint32
}

// Stats reports arena memory accounting.
type Stats struct {
	BytesReserved uint64 // memory reserved from the OS or heap
	BytesUsed     uint64 // bytes handed out, before alignment padding
	ActiveChunks  uint64
	TotalAllocs   uint64
}

type atomicStats struct {
	bytesReserved atomic.Uint64
	bytesUsed     atomic.Uint64
	activeChunks  atomic.Uint64
	totalAllocs   atomic.Uint64
}

// Arena is a chunked bump allocator addressed by global offsets.
//
// A global offset packs the chunk index into its high bits and the byte
// offset within the chunk into its low bits. Offset 0 is reserved as the nil
// handle: the first allocation of the first chunk is burned at construction.
type Arena struct {
	chunkSize  int
	chunkBits  int
	chunkMask  uint64
	chunks     [maxChunks]atomic.Pointer[chunk]
	chunkCount atomic.Uint32
	current    atomic.Pointer[chunk]
	mu         sync.Mutex
	stats      atomicStats
}

// New creates an arena with the given chunk size, rounded up to a power of
// two. A chunkSize <= 0 selects DefaultChunkSize.
func New(chunkSize int) (*Arena, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkBits := bits.Len(uint(chunkSize - 1))
	chunkSize = 1 << chunkBits

	a := &Arena{
		chunkSize: chunkSize,
		chunkBits: chunkBits,
		chunkMask: uint64(chunkSize) - 1,
	}
	if err := a.grow(); err != nil {
		return nil, err
	}
	// Burn offset 0 so it can serve as the nil handle.
	if _, _, err := a.Alloc(alignment); err != nil {
		return nil, err
	}
	return a, nil
}

// Alloc reserves n bytes and returns the global offset of the reservation
// together with the zeroed byte slice backing it. An allocation never spans
// chunks; n must not exceed the chunk size.
func (a *Arena) Alloc(n int) (uint64, []byte, error) {
	if n <= 0 {
		return 0, nil, nil
	}
	if n > a.chunkSize {
		return 0, nil, fmt.Errorf("arena: allocation of %d bytes exceeds chunk size %d: %w", n, a.chunkSize, ErrExhausted)
	}
	aligned := (n + alignment - 1) &^ (alignment - 1)

	for {
		curr := a.current.Load()
		if curr == nil {
			return 0, nil, fmt.Errorf("arena: closed: %w", ErrExhausted)
		}
		if off, buf, ok := a.tryAlloc(curr, n, aligned); ok {
			return off, buf, nil
		}

		// Chunk full. If another goroutine already grew the arena, retry on
		// the fresh chunk; otherwise grow it ourselves.
		if a.current.Load() != curr {
			continue
		}
		a.mu.Lock()
		if a.current.Load() != curr {
			a.mu.Unlock()
			continue
		}
		err := a.growLocked()
		a.mu.Unlock()
		if err != nil {
			return 0, nil, err
		}
	}
}

func (a *Arena) tryAlloc(c *chunk, n, aligned int) (uint64, []byte, bool) {
	old := c.offset.Load()
	next := old + int64(aligned)
	if next > int64(len(c.data)) {
		return 0, nil, false
	}
	if !c.offset.CompareAndSwap(old, next) {
		return 0, nil, false
	}
	a.stats.bytesUsed.Add(uint64(n))
	a.stats.totalAllocs.Add(1)
	global := uint64(c.index)<<a.chunkBits | uint64(old)
	return global, c.data[old : old+int64(n) : next], true
}

func (a *Arena) grow() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.growLocked()
}

func (a *Arena) growLocked() error {
	idx := a.chunkCount.Load()
	if idx >= maxChunks {
		return fmt.Errorf("arena: chunk limit reached: %w", ErrExhausted)
	}

	c := &chunk{index: idx}
	// Off-heap anonymous mapping keeps large write buffers out of GC scans.
	if m, err := mmap.MapAnon(a.chunkSize); err == nil {
		c.data = m.Bytes()
		c.mapping = m
	} else {
		c.data = make([]byte, a.chunkSize)
	}

	a.chunks[idx].Store(c)
	a.stats.bytesReserved.Add(uint64(a.chunkSize))
	a.stats.activeChunks.Add(1)
	// Count must be visible before the chunk becomes current, so concurrent
	// Bytes/Pointer lookups on fresh offsets pass the bounds check.
	a.chunkCount.Add(1)
	a.current.Store(c)
	return nil
}

// Bytes returns the arena memory starting at the given global offset and
// extending to the end of its chunk. Entries are self-delimiting, so callers
// decode only their own allocation out of the returned slice.
func (a *Arena) Bytes(offset uint64) []byte {
	c := a.chunkAt(offset)
	return c.data[offset&a.chunkMask:]
}

// Pointer returns an unsafe pointer to the memory at the given global offset.
// The offset must come from Alloc; no bounds checking beyond the chunk index
// is performed.
func (a *Arena) Pointer(offset uint64) unsafe.Pointer {
	c := a.chunkAt(offset)
	return unsafe.Pointer(&c.data[offset&a.chunkMask])
}

func (a *Arena) chunkAt(offset uint64) *chunk {
	idx := offset >> a.chunkBits
	if idx >= uint64(a.chunkCount.Load()) {
		panic("arena: offset past allocated chunks")
	}
	c := a.chunks[idx].Load()
	if c == nil {
		panic("arena: offset into freed arena")
	}
	return c
}

// Stats returns a snapshot of the arena accounting counters.
func (a *Arena) Stats() Stats {
	return Stats{
		BytesReserved: a.stats.bytesReserved.Load(),
		BytesUsed:     a.stats.bytesUsed.Load(),
		ActiveChunks:  a.stats.activeChunks.Load(),
		TotalAllocs:   a.stats.totalAllocs.Load(),
	}
}

// MemoryUsage returns the bytes currently reserved by the arena.
func (a *Arena) MemoryUsage() uint64 {
	return a.stats.bytesReserved.Load()
}

// Free releases all arena memory. Every offset and slice obtained from this
// arena is invalid afterwards. Free must not race with Alloc or reads.
func (a *Arena) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := a.chunkCount.Load()
	for i := uint32(0); i < count; i++ {
		c := a.chunks[i].Load()
		if c != nil && c.mapping != nil {
			_ = c.mapping.Close()
		}
		a.chunks[i].Store(nil)
	}
	a.chunkCount.Store(0)
	a.current.Store(nil)
	a.stats.activeChunks.Store(0)
	a.stats.bytesReserved.Store(0)
	a.stats.bytesUsed.Store(0)
}
