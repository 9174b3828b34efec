package cuckoo

import (
	"sort"

	"github.com/simon-rock/memrep"
)

// iterator walks a sorted point-in-time snapshot of the table, taken when
// the iterator was created.
type iterator struct {
	entries [][]byte
	cmp     memrep.KeyComparator
	pos     int
}

func (it *iterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.entries)
}

func (it *iterator) Key() []byte { return it.entries[it.pos] }

func (it *iterator) Next() { it.pos++ }

func (it *iterator) Prev() { it.pos-- }

func (it *iterator) Seek(internalKey, memtableKey []byte) {
	it.pos = sort.Search(len(it.entries), func(i int) bool {
		if memtableKey != nil {
			return it.cmp.Compare(it.entries[i], memtableKey) >= 0
		}
		return it.cmp.CompareKey(it.entries[i], internalKey) >= 0
	})
}

func (it *iterator) SeekToFirst() { it.pos = 0 }

func (it *iterator) SeekToLast() { it.pos = len(it.entries) - 1 }
