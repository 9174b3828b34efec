// Package ikey implements the encoded memtable entry layout shared by every
// representation and by the lookup path.
//
// An entry is a single arena allocation:
//
//	uvarint: internal key length (= user key length + 8)
//	user key bytes
//	8 bytes, little endian: sequence<<8 | tag
//	uvarint: value length
//	value bytes
//
// Representations treat the whole buffer as opaque; only the comparator and
// the helpers here decode it.
package ikey

import "encoding/binary"

// Operation tags stored in the low byte of the packed trailer.
const (
	TagDeletion byte = 0x0
	TagValue    byte = 0x1

	// TagForSeek is the largest tag; paired with a target sequence number it
	// forms the smallest possible internal key for that (user key, sequence)
	// under descending-sequence ordering, which is what Seek wants.
	TagForSeek byte = TagValue
)

// MaxSequence is the largest sequence number that fits beside a tag in the
// 8-byte trailer.
const MaxSequence = uint64(1)<<56 - 1

// PackSeqAndTag combines a sequence number and an operation tag into the
// 8-byte trailer value.
func PackSeqAndTag(seq uint64, tag byte) uint64 {
	return seq<<8 | uint64(tag)
}

// UnpackSeqAndTag splits a trailer value produced by PackSeqAndTag.
func UnpackSeqAndTag(packed uint64) (seq uint64, tag byte) {
	return packed >> 8, byte(packed)
}

// EntrySize returns the number of bytes EncodeEntry will write for the given
// user key and value.
func EntrySize(userKey, value []byte) int {
	ikLen := len(userKey) + 8
	return uvarintLen(uint64(ikLen)) + ikLen + uvarintLen(uint64(len(value))) + len(value)
}

// EncodeEntry writes a full entry into buf, which must be at least
// EntrySize(userKey, value) bytes. It returns the number of bytes written.
func EncodeEntry(buf, userKey []byte, seq uint64, tag byte, value []byte) int {
	n := binary.PutUvarint(buf, uint64(len(userKey)+8))
	n += copy(buf[n:], userKey)
	binary.LittleEndian.PutUint64(buf[n:], PackSeqAndTag(seq, tag))
	n += 8
	n += binary.PutUvarint(buf[n:], uint64(len(value)))
	n += copy(buf[n:], value)
	return n
}

// AppendEntry appends a full entry to dst and returns the extended slice.
func AppendEntry(dst, userKey []byte, seq uint64, tag byte, value []byte) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, EntrySize(userKey, value))...)
	EncodeEntry(dst[off:], userKey, seq, tag, value)
	return dst
}

// EntryLen returns the total encoded length of the entry starting at the
// beginning of b. Entries are self-delimiting, so b may extend past the entry.
func EntryLen(b []byte) int {
	l, n := binary.Uvarint(b)
	rest := b[n+int(l):]
	vl, vn := binary.Uvarint(rest)
	return n + int(l) + vn + int(vl)
}

// Entry trims b to exactly one encoded entry.
func Entry(b []byte) []byte {
	return b[:EntryLen(b)]
}

// InternalKey returns the internal key portion of an encoded entry.
func InternalKey(entry []byte) []byte {
	l, n := binary.Uvarint(entry)
	return entry[n : n+int(l)]
}

// UserKey returns the user key portion of an encoded entry.
func UserKey(entry []byte) []byte {
	ik := InternalKey(entry)
	return ik[:len(ik)-8]
}

// Trailer returns the packed sequence/tag trailer of an encoded entry.
func Trailer(entry []byte) uint64 {
	ik := InternalKey(entry)
	return binary.LittleEndian.Uint64(ik[len(ik)-8:])
}

// Value returns the value portion of an encoded entry.
func Value(entry []byte) []byte {
	l, n := binary.Uvarint(entry)
	rest := entry[n+int(l):]
	vl, vn := binary.Uvarint(rest)
	return rest[vn : vn+int(vl)]
}

// UserKeyOf returns the user key portion of a bare internal key.
func UserKeyOf(internalKey []byte) []byte {
	return internalKey[:len(internalKey)-8]
}

// TrailerOf returns the packed trailer of a bare internal key.
func TrailerOf(internalKey []byte) uint64 {
	return binary.LittleEndian.Uint64(internalKey[len(internalKey)-8:])
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
