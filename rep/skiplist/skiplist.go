// Package skiplist provides the default memtable representation: a
// probabilistic ordered linked structure whose nodes and links live in the
// owning arena.
//
// Readers traverse forward links without locks. An insert fully initializes
// its node before splicing it in, and each splice is a single atomic link
// store, so a concurrent reader observes either the pre-insert or the
// post-insert chain and never a partially linked node.
package skiplist

import (
	"sync/atomic"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/ikey"
)

const (
	// DefaultMaxHeight bounds tower height for the standalone representation.
	// The hashed representation passes a smaller bound per bucket.
	DefaultMaxHeight = 12

	// DefaultBranching is the inverse probability of growing a tower by one
	// level, balancing average search depth against per-node link overhead.
	DefaultBranching = 4
)

// Arena node layout, 8-byte aligned:
//
//	+0               keyOff  uint64
//	+8               height  uint32
//	+12              pad
//	+16 + 8*level    next    uint64 per level
const (
	nodeKeyOff    = 0
	nodeHeightOff = 8
	nodeNextOff   = 16
)

// List is an arena-backed concurrent skip list of encoded keys. It supports
// one writer and any number of concurrent readers.
type List struct {
	cmp       memrep.KeyComparator
	arena     *arena.Arena
	head      uint64
	maxHeight atomic.Int32
	heightCap int
	branching uint64
	rng       uint64
}

// NewList creates a skip list with the given tower height cap and branching
// factor. Zero values select the defaults.
func NewList(cmp memrep.KeyComparator, a *arena.Arena, heightCap, branching int) (*List, error) {
	if heightCap <= 0 {
		heightCap = DefaultMaxHeight
	}
	if branching <= 1 {
		branching = DefaultBranching
	}
	l := &List{
		cmp:       cmp,
		arena:     a,
		heightCap: heightCap,
		branching: uint64(branching),
		rng:       0x9E3779B97F4A7C15, // fixed seed: towers are reproducible per list
	}
	head, err := l.newNode(0, heightCap)
	if err != nil {
		return nil, err
	}
	l.head = head
	l.maxHeight.Store(1)
	return l, nil
}

func (l *List) newNode(keyOff uint64, height int) (uint64, error) {
	off, _, err := l.arena.Alloc(nodeNextOff + 8*height)
	if err != nil {
		return 0, err
	}
	// The arena hands out zeroed memory, so all links start nil.
	l.keyWord(off).Store(keyOff)
	l.heightWord(off).Store(uint32(height))
	return off, nil
}

func (l *List) keyWord(n uint64) *atomic.Uint64 {
	return (*atomic.Uint64)(l.arena.Pointer(n + nodeKeyOff))
}

func (l *List) heightWord(n uint64) *atomic.Uint32 {
	return (*atomic.Uint32)(l.arena.Pointer(n + nodeHeightOff))
}

func (l *List) next(n uint64, level int) *atomic.Uint64 {
	return (*atomic.Uint64)(l.arena.Pointer(n + nodeNextOff + 8*uint64(level)))
}

func (l *List) key(n uint64) []byte {
	return ikey.Entry(l.arena.Bytes(l.keyWord(n).Load()))
}

// compare orders the key stored at node n against a search target, given as
// either a length-prefixed memtable key or a bare internal key.
func (l *List) compare(n uint64, internalKey, memtableKey []byte) int {
	if memtableKey != nil {
		return l.cmp.Compare(l.key(n), memtableKey)
	}
	return l.cmp.CompareKey(l.key(n), internalKey)
}

func (l *List) randomHeight() int {
	h := 1
	for h < l.heightCap {
		// xorshift64*; single-writer state, no synchronization needed.
		l.rng ^= l.rng >> 12
		l.rng ^= l.rng << 25
		l.rng ^= l.rng >> 27
		if (l.rng*0x2545F4914F6CDD1D)%l.branching != 0 {
			break
		}
		h++
	}
	return h
}

// findGreaterOrEqual returns the first node at or after the target. When prev
// is non-nil it is filled with the rightmost node before the target at every
// level, sized heightCap.
func (l *List) findGreaterOrEqual(internalKey, memtableKey []byte, prev []uint64) uint64 {
	x := l.head
	level := int(l.maxHeight.Load()) - 1
	for {
		nxt := l.next(x, level).Load()
		if nxt != 0 && l.compare(nxt, internalKey, memtableKey) < 0 {
			x = nxt
			continue
		}
		if prev != nil {
			prev[level] = x
		}
		if level == 0 {
			return nxt
		}
		level--
	}
}

// findLessThan returns the last node before the target, or the head node when
// no entry precedes it.
func (l *List) findLessThan(internalKey, memtableKey []byte) uint64 {
	x := l.head
	level := int(l.maxHeight.Load()) - 1
	for {
		nxt := l.next(x, level).Load()
		if nxt != 0 && l.compare(nxt, internalKey, memtableKey) < 0 {
			x = nxt
			continue
		}
		if level == 0 {
			return x
		}
		level--
	}
}

// findLast returns the last node in the list, or the head node when empty.
func (l *List) findLast() uint64 {
	x := l.head
	level := int(l.maxHeight.Load()) - 1
	for {
		nxt := l.next(x, level).Load()
		if nxt != 0 {
			x = nxt
			continue
		}
		if level == 0 {
			return x
		}
		level--
	}
}

// AllocateNode reserves a node with a fresh random tower height and keyLen
// bytes of key storage directly behind the tower, so the key and its links
// share a cache neighborhood. The caller encodes the entry into the returned
// buffer and then passes the node offset to InsertNode.
func (l *List) AllocateNode(keyLen int) (uint64, []byte, error) {
	height := l.randomHeight()
	towerEnd := nodeNextOff + 8*height
	off, buf, err := l.arena.Alloc(towerEnd + keyLen)
	if err != nil {
		return 0, nil, err
	}
	l.keyWord(off).Store(off + uint64(towerEnd))
	l.heightWord(off).Store(uint32(height))
	return off, buf[towerEnd : towerEnd+keyLen], nil
}

// InsertNode links a node obtained from AllocateNode into the list. It
// performs no allocation and cannot fail.
// REQUIRES: external synchronization against other writers, and no key
// comparing equal to the node's key already present.
func (l *List) InsertNode(n uint64) {
	l.splice(n, int(l.heightWord(n).Load()))
}

// InsertKey allocates a node for the key at the given arena offset and links
// it in. Used when keys are allocated without node co-location, as in the
// hash-bucketed representation.
func (l *List) InsertKey(keyOff uint64) error {
	n, err := l.newNode(keyOff, l.randomHeight())
	if err != nil {
		return err
	}
	l.splice(n, int(l.heightWord(n).Load()))
	return nil
}

func (l *List) splice(n uint64, height int) {
	memtableKey := l.key(n)
	prev := make([]uint64, l.heightCap)
	l.findGreaterOrEqual(nil, memtableKey, prev)

	if curr := int(l.maxHeight.Load()); height > curr {
		for i := curr; i < height; i++ {
			prev[i] = l.head
		}
		// Readers that load the new height before the splice below see nil
		// links from the head and simply descend a level early.
		l.maxHeight.Store(int32(height))
	}

	for i := 0; i < height; i++ {
		// The node's own link is not yet reachable; the store into the
		// predecessor publishes the node at this level.
		l.next(n, i).Store(l.next(prev[i], i).Load())
		l.next(prev[i], i).Store(n)
	}
}

// Contains reports whether a key comparing equal to the length-prefixed key
// is in the list.
func (l *List) Contains(memtableKey []byte) bool {
	x := l.findGreaterOrEqual(nil, memtableKey, nil)
	return x != 0 && l.cmp.Compare(l.key(x), memtableKey) == 0
}

// Empty reports whether the list holds no entries.
func (l *List) Empty() bool {
	return l.next(l.head, 0).Load() == 0
}
