package memrep

import (
	"bytes"
	"fmt"

	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/ikey"
)

// KeyHandle is the opaque token returned by Allocate and passed back to
// Insert. It is a global offset into the representation's arena.
type KeyHandle uint64

// KeyComparator provides the total order over encoded keys, which are
// internal keys concatenated with values. It is the sole authority on key
// equality; representations never decode beyond what it tells them.
type KeyComparator interface {
	// Compare orders two length-prefixed encoded keys. It returns a negative
	// value if a sorts before b, zero if they are equal, positive otherwise.
	Compare(a, b []byte) int

	// CompareKey orders a length-prefixed encoded key against a bare
	// internal key, used during lookups where only a search key and not a
	// full encoded entry exists.
	CompareKey(a, internalKey []byte) int
}

// MemTableRep is the collection backing a memtable.
//
// Implementations must not store duplicate items, must order items with the
// KeyComparator they were constructed with, must support any number of
// concurrent readers alongside a single inserting writer, and must never
// delete items. Liberal use of assertions to enforce uniqueness is
// encouraged; it is not a reported error.
type MemTableRep interface {
	// Allocate reserves n bytes for an encoded key from the owning arena.
	// The caller packs the internal key and value into the returned buffer
	// and then hands the handle to Insert. A representation may co-locate
	// its own bookkeeping with the key bytes. Allocation failure is fatal to
	// the write path and is returned, not recovered.
	Allocate(n int) (KeyHandle, []byte, error)

	// Insert adds the key written through handle to the collection.
	// REQUIRES: nothing that compares equal to the key is in the collection.
	Insert(handle KeyHandle)

	// Contains reports whether an entry comparing equal to key exists. key
	// is a length-prefixed encoded key.
	Contains(key []byte) bool

	// MarkReadOnly notifies the representation that no further Insert will
	// occur. Representations that defer work (sorting, filter construction)
	// perform it here.
	MarkReadOnly()

	// Get scans entries starting at the first one whose user key matches k's
	// and invokes visit with each encoded entry, stopping when visit returns
	// false or the user key no longer matches.
	Get(k LookupKey, visit func(entry []byte) bool)

	// ApproximateMemoryUsage reports memory consumed outside the arena, such
	// as bucket index arrays. The engine adds it to the arena's usage when
	// deciding whether the write buffer is full.
	ApproximateMemoryUsage() uint64

	// NewIterator returns a cursor over the whole collection.
	NewIterator() Iterator

	// NewUserKeyIterator returns a cursor over at least the entries carrying
	// the given user key. It may expose more.
	NewUserKeyIterator(userKey []byte) Iterator

	// NewDynamicPrefixIterator returns a cursor whose Seek may restrict the
	// visible entries to those sharing the target's prefix.
	NewDynamicPrefixIterator() Iterator

	// SupportsMerge reports whether the representation can back merge
	// operands, which require observing all versions of a key.
	SupportsMerge() bool

	// SupportsSnapshot reports whether the representation can serve reads at
	// a fixed sequence number. A representation keeping only the latest
	// version of each key returns false, and the engine must flush before
	// operations that need a snapshot.
	SupportsSnapshot() bool
}

// Iterator is a cursor over the contents of a representation.
//
// An iterator is either positioned at one entry (valid) or at no entry. Key,
// Next and Prev require a valid position.
type Iterator interface {
	// Valid reports whether the iterator is positioned at an entry.
	Valid() bool

	// Key returns the encoded key at the current position.
	Key() []byte

	// Next advances to the next entry in comparator order.
	Next()

	// Prev retreats to the previous entry in comparator order.
	Prev()

	// Seek positions the iterator at the first entry whose key is at or
	// after internalKey. When the caller already holds the length-prefixed
	// form it passes it as memtableKey to spare a re-encoding; memtableKey
	// may be nil.
	Seek(internalKey, memtableKey []byte)

	// SeekToFirst positions at the first entry. The iterator is valid
	// afterwards iff the collection is not empty.
	SeekToFirst()

	// SeekToLast positions at the last entry. The iterator is valid
	// afterwards iff the collection is not empty.
	SeekToLast()
}

// Base supplies the default behaviors shared by all representations: Allocate
// forwards to the arena, MarkReadOnly does nothing, and both capability flags
// are true. Variants embed it and override what differs.
type Base struct {
	Arena *arena.Arena
}

// NewBase wraps the arena a representation allocates from.
func NewBase(a *arena.Arena) Base {
	return Base{Arena: a}
}

// Allocate reserves n bytes from the arena.
func (b *Base) Allocate(n int) (KeyHandle, []byte, error) {
	off, buf, err := b.Arena.Alloc(n)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrAllocFailed, err)
	}
	return KeyHandle(off), buf, nil
}

// MarkReadOnly does nothing by default.
func (b *Base) MarkReadOnly() {}

// SupportsMerge reports true by default.
func (b *Base) SupportsMerge() bool { return true }

// SupportsSnapshot reports true by default.
func (b *Base) SupportsSnapshot() bool { return true }

// ScanGet is the default Get implementation: it seeks it to the lookup key
// and drives visit over successive entries until visit declines or the user
// key changes. Representations without a cheaper lookup path call it with
// their own iterator.
func ScanGet(it Iterator, k LookupKey, visit func(entry []byte) bool) {
	target := k.UserKey()
	for it.Seek(k.InternalKey(), k.MemtableKey()); it.Valid(); it.Next() {
		entry := it.Key()
		if !bytes.Equal(ikey.UserKey(entry), target) {
			return
		}
		if !visit(entry) {
			return
		}
	}
}
