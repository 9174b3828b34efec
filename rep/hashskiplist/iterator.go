package hashskiplist

import (
	"sort"

	"github.com/simon-rock/memrep/internal/ikey"
	"github.com/simon-rock/memrep/rep/skiplist"
)

// iterator concatenates the non-empty buckets captured at creation time, in
// bucket index order, each internally sorted. Entries inserted into brand-new
// buckets afterwards are not observed; entries added to captured buckets are.
type iterator struct {
	rep       *Rep
	bucketIDs []uint32
	pos       int
	inner     *skiplist.Iterator
}

func (it *iterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.bucketIDs) && it.inner != nil && it.inner.Valid()
}

func (it *iterator) Key() []byte { return it.inner.Key() }

func (it *iterator) Next() {
	it.inner.Next()
	if !it.inner.Valid() {
		it.forwardFrom(it.pos + 1)
	}
}

func (it *iterator) Prev() {
	it.inner.Prev()
	if !it.inner.Valid() {
		it.backwardFrom(it.pos - 1)
	}
}

// forwardFrom positions the cursor at the first entry of the first bucket at
// or after position p that has one. A bucket can transiently be listed but
// still empty while the writer is between creating it and linking its first
// key, so empty buckets are skipped rather than assumed impossible.
func (it *iterator) forwardFrom(p int) {
	for ; p < len(it.bucketIDs); p++ {
		l := it.rep.bucket(uint64(it.bucketIDs[p]))
		if l == nil {
			continue
		}
		inner := l.NewIterator()
		inner.SeekToFirst()
		if inner.Valid() {
			it.pos, it.inner = p, inner
			return
		}
	}
	it.pos, it.inner = len(it.bucketIDs), nil
}

func (it *iterator) backwardFrom(p int) {
	for ; p >= 0; p-- {
		l := it.rep.bucket(uint64(it.bucketIDs[p]))
		if l == nil {
			continue
		}
		inner := l.NewIterator()
		inner.SeekToLast()
		if inner.Valid() {
			it.pos, it.inner = p, inner
			return
		}
	}
	it.pos, it.inner = -1, nil
}

// Seek positions the cursor within the target's own bucket at the first
// entry at or after the target, spilling into the next bucket when the
// target's bucket is exhausted. There is no cross-bucket key order to seek
// against; see the package comment.
func (it *iterator) Seek(internalKey, memtableKey []byte) {
	if internalKey == nil {
		internalKey = ikey.InternalKey(memtableKey)
	}
	idx := it.rep.bucketIndex(ikey.UserKeyOf(internalKey))
	p := sort.Search(len(it.bucketIDs), func(i int) bool {
		return uint64(it.bucketIDs[i]) >= idx
	})
	if p < len(it.bucketIDs) && uint64(it.bucketIDs[p]) == idx {
		if l := it.rep.bucket(idx); l != nil {
			inner := l.NewIterator()
			inner.Seek(internalKey, memtableKey)
			if inner.Valid() {
				it.pos, it.inner = p, inner
				return
			}
		}
		p++
	}
	it.forwardFrom(p)
}

func (it *iterator) SeekToFirst() { it.forwardFrom(0) }

func (it *iterator) SeekToLast() { it.backwardFrom(len(it.bucketIDs) - 1) }

// prefixIterator binds itself to a single bucket at Seek time: every
// position it ever exposes shares the seek target's prefix bucket.
type prefixIterator struct {
	rep   *Rep
	inner *skiplist.Iterator
}

func (it *prefixIterator) Valid() bool {
	return it.inner != nil && it.inner.Valid()
}

func (it *prefixIterator) Key() []byte { return it.inner.Key() }

func (it *prefixIterator) Next() { it.inner.Next() }

func (it *prefixIterator) Prev() { it.inner.Prev() }

func (it *prefixIterator) Seek(internalKey, memtableKey []byte) {
	if internalKey == nil {
		internalKey = ikey.InternalKey(memtableKey)
	}
	l := it.rep.bucket(it.rep.bucketIndex(ikey.UserKeyOf(internalKey)))
	if l == nil {
		it.inner = nil
		return
	}
	it.inner = l.NewIterator()
	it.inner.Seek(internalKey, memtableKey)
}

// SeekToFirst is undefined before a Seek has chosen a bucket; the cursor
// stays invalid.
func (it *prefixIterator) SeekToFirst() {
	if it.inner != nil {
		it.inner.SeekToFirst()
	}
}

// SeekToLast mirrors SeekToFirst.
func (it *prefixIterator) SeekToLast() {
	if it.inner != nil {
		it.inner.SeekToLast()
	}
}
