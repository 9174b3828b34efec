package hashlinklist

import (
	"sort"
	"sync/atomic"

	"github.com/simon-rock/memrep/internal/ikey"
)

// chainIterator is a cursor over one bucket's sorted chain. Chains are
// forward linked only; Prev re-walks from the head.
type chainIterator struct {
	rep  *Rep
	head *atomic.Uint64
	node uint64
}

func (it *chainIterator) Valid() bool { return it.node != 0 }

func (it *chainIterator) Key() []byte { return it.rep.nodeKey(it.node) }

func (it *chainIterator) Next() {
	it.node = it.rep.nextWord(it.node).Load()
}

func (it *chainIterator) Prev() {
	target := it.node
	it.node = 0
	for curr := it.head.Load(); curr != 0 && curr != target; curr = it.rep.nextWord(curr).Load() {
		it.node = curr
	}
}

func (it *chainIterator) compare(n uint64, internalKey, memtableKey []byte) int {
	if memtableKey != nil {
		return it.rep.cmp.Compare(it.rep.nodeKey(n), memtableKey)
	}
	return it.rep.cmp.CompareKey(it.rep.nodeKey(n), internalKey)
}

func (it *chainIterator) Seek(internalKey, memtableKey []byte) {
	curr := it.head.Load()
	for curr != 0 && it.compare(curr, internalKey, memtableKey) < 0 {
		curr = it.rep.nextWord(curr).Load()
	}
	it.node = curr
}

func (it *chainIterator) SeekToFirst() { it.node = it.head.Load() }

func (it *chainIterator) SeekToLast() {
	it.node = 0
	for curr := it.head.Load(); curr != 0; curr = it.rep.nextWord(curr).Load() {
		it.node = curr
	}
}

// crossIterator concatenates the non-empty chains captured at creation time
// in bucket index order.
type crossIterator struct {
	rep       *Rep
	bucketIDs []uint32
	pos       int
	inner     *chainIterator
}

func (it *crossIterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.bucketIDs) && it.inner != nil && it.inner.Valid()
}

func (it *crossIterator) Key() []byte { return it.inner.Key() }

func (it *crossIterator) Next() {
	it.inner.Next()
	if !it.inner.Valid() {
		it.forwardFrom(it.pos + 1)
	}
}

func (it *crossIterator) Prev() {
	it.inner.Prev()
	if !it.inner.Valid() {
		it.backwardFrom(it.pos - 1)
	}
}

func (it *crossIterator) chainAt(p int) *chainIterator {
	return &chainIterator{rep: it.rep, head: &it.rep.heads[it.bucketIDs[p]]}
}

func (it *crossIterator) forwardFrom(p int) {
	for ; p < len(it.bucketIDs); p++ {
		inner := it.chainAt(p)
		inner.SeekToFirst()
		if inner.Valid() {
			it.pos, it.inner = p, inner
			return
		}
	}
	it.pos, it.inner = len(it.bucketIDs), nil
}

func (it *crossIterator) backwardFrom(p int) {
	for ; p >= 0; p-- {
		inner := it.chainAt(p)
		inner.SeekToLast()
		if inner.Valid() {
			it.pos, it.inner = p, inner
			return
		}
	}
	it.pos, it.inner = -1, nil
}

// Seek targets the bucket the seek key hashes to, spilling forward when that
// chain has no entry at or after the target.
func (it *crossIterator) Seek(internalKey, memtableKey []byte) {
	if internalKey == nil {
		internalKey = ikey.InternalKey(memtableKey)
	}
	idx := it.rep.bucketIndex(ikey.UserKeyOf(internalKey))
	p := sort.Search(len(it.bucketIDs), func(i int) bool {
		return uint64(it.bucketIDs[i]) >= idx
	})
	if p < len(it.bucketIDs) && uint64(it.bucketIDs[p]) == idx {
		inner := it.chainAt(p)
		inner.Seek(internalKey, memtableKey)
		if inner.Valid() {
			it.pos, it.inner = p, inner
			return
		}
		p++
	}
	it.forwardFrom(p)
}

func (it *crossIterator) SeekToFirst() { it.forwardFrom(0) }

func (it *crossIterator) SeekToLast() { it.backwardFrom(len(it.bucketIDs) - 1) }

// dynamicIterator binds to the seek target's chain, restricting the visible
// entries to the target's prefix bucket.
type dynamicIterator struct {
	rep   *Rep
	inner *chainIterator
}

func (it *dynamicIterator) Valid() bool {
	return it.inner != nil && it.inner.Valid()
}

func (it *dynamicIterator) Key() []byte { return it.inner.Key() }

func (it *dynamicIterator) Next() { it.inner.Next() }

func (it *dynamicIterator) Prev() { it.inner.Prev() }

func (it *dynamicIterator) Seek(internalKey, memtableKey []byte) {
	if internalKey == nil {
		internalKey = ikey.InternalKey(memtableKey)
	}
	idx := it.rep.bucketIndex(ikey.UserKeyOf(internalKey))
	it.inner = &chainIterator{rep: it.rep, head: &it.rep.heads[idx]}
	it.inner.Seek(internalKey, memtableKey)
}

func (it *dynamicIterator) SeekToFirst() {
	if it.inner != nil {
		it.inner.SeekToFirst()
	}
}

func (it *dynamicIterator) SeekToLast() {
	if it.inner != nil {
		it.inner.SeekToLast()
	}
}
