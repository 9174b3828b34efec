package memrep

// PrefixExtractor derives the bucket-selecting prefix from a user key. The
// hashed representations group keys by prefix so that same-prefix range scans
// touch a single bucket.
type PrefixExtractor interface {
	// Transform returns the prefix of userKey. Only called when InDomain
	// reports true.
	Transform(userKey []byte) []byte

	// InDomain reports whether userKey has a prefix at all. Keys outside the
	// domain hash on the full user key.
	InDomain(userKey []byte) bool
}

type fixedPrefixExtractor struct {
	n int
}

// NewFixedPrefixExtractor returns an extractor taking the first n bytes of
// the user key as its prefix. Keys shorter than n are out of domain.
func NewFixedPrefixExtractor(n int) PrefixExtractor {
	return fixedPrefixExtractor{n: n}
}

func (e fixedPrefixExtractor) Transform(userKey []byte) []byte {
	return userKey[:e.n]
}

func (e fixedPrefixExtractor) InDomain(userKey []byte) bool {
	return len(userKey) >= e.n
}
