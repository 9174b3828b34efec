package skiplist

// Iterator is a cursor over a List. It holds no locks; a cursor created
// before a concurrent insert sees either the old or the new chain.
type Iterator struct {
	list *List
	node uint64
}

// NewIterator returns an unpositioned cursor over the list.
func (l *List) NewIterator() *Iterator {
	return &Iterator{list: l}
}

// Valid reports whether the cursor is positioned at an entry.
func (it *Iterator) Valid() bool { return it.node != 0 }

// Key returns the encoded key at the current position.
func (it *Iterator) Key() []byte { return it.list.key(it.node) }

// Next advances to the next entry.
func (it *Iterator) Next() {
	it.node = it.list.next(it.node, 0).Load()
}

// Prev retreats to the previous entry. There are no back links; the previous
// node is found by a descending search from the top.
func (it *Iterator) Prev() {
	it.node = it.list.findLessThan(nil, it.list.key(it.node))
	if it.node == it.list.head {
		it.node = 0
	}
}

// Seek positions the cursor at the first entry at or after the target.
func (it *Iterator) Seek(internalKey, memtableKey []byte) {
	it.node = it.list.findGreaterOrEqual(internalKey, memtableKey, nil)
}

// SeekToFirst positions the cursor at the first entry.
func (it *Iterator) SeekToFirst() {
	it.node = it.list.next(it.list.head, 0).Load()
}

// SeekToLast positions the cursor at the last entry.
func (it *Iterator) SeekToLast() {
	it.node = it.list.findLast()
	if it.node == it.list.head {
		it.node = 0
	}
}
