package memrep

import (
	"bytes"

	"github.com/simon-rock/memrep/internal/ikey"
)

// bytewiseComparator orders internal keys by user key ascending, then by
// sequence number descending so the newest version of a key comes first.
type bytewiseComparator struct{}

// NewBytewiseComparator returns the comparator engines use when user keys are
// plain bytewise-ordered strings.
func NewBytewiseComparator() KeyComparator {
	return bytewiseComparator{}
}

func (bytewiseComparator) Compare(a, b []byte) int {
	return compareInternal(ikey.InternalKey(a), ikey.InternalKey(b))
}

func (bytewiseComparator) CompareKey(a, internalKey []byte) int {
	return compareInternal(ikey.InternalKey(a), internalKey)
}

func compareInternal(a, b []byte) int {
	if c := bytes.Compare(ikey.UserKeyOf(a), ikey.UserKeyOf(b)); c != 0 {
		return c
	}
	// Same user key: larger trailer (newer sequence) sorts first.
	at, bt := ikey.TrailerOf(a), ikey.TrailerOf(b)
	switch {
	case at > bt:
		return -1
	case at < bt:
		return 1
	default:
		return 0
	}
}
