package memrep

import (
	"encoding/binary"

	"github.com/simon-rock/memrep/internal/ikey"
)

// LookupKey bundles the three views of a point-lookup target: the
// length-prefixed memtable form, the bare internal key, and the user key.
// Building all three once up front keeps the per-representation lookup paths
// allocation free.
type LookupKey struct {
	mem  []byte
	koff int
}

// NewLookupKey builds a lookup key for userKey at the given read sequence.
// The trailer uses the largest tag so the key sorts at or before every entry
// for userKey visible at that sequence.
func NewLookupKey(userKey []byte, seq uint64) LookupKey {
	ikLen := len(userKey) + 8
	mem := make([]byte, 0, binary.MaxVarintLen32+ikLen)
	mem = binary.AppendUvarint(mem, uint64(ikLen))
	koff := len(mem)
	mem = append(mem, userKey...)
	mem = binary.LittleEndian.AppendUint64(mem, ikey.PackSeqAndTag(seq, ikey.TagForSeek))
	return LookupKey{mem: mem, koff: koff}
}

// MemtableKey returns the length-prefixed form, directly comparable against
// stored entries.
func (k LookupKey) MemtableKey() []byte { return k.mem }

// InternalKey returns the user key plus trailer.
func (k LookupKey) InternalKey() []byte { return k.mem[k.koff:] }

// UserKey returns the bare user key.
func (k LookupKey) UserKey() []byte { return k.mem[k.koff : len(k.mem)-8] }
