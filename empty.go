package memrep

type emptyIterator struct{}

// NewEmptyIterator returns a permanently invalid cursor, used by bucketed
// representations when the target bucket was never created.
func NewEmptyIterator() Iterator { return emptyIterator{} }

func (emptyIterator) Valid() bool      { return false }
func (emptyIterator) Key() []byte      { return nil }
func (emptyIterator) Next()            {}
func (emptyIterator) Prev()            {}
func (emptyIterator) Seek(_, _ []byte) {}
func (emptyIterator) SeekToFirst()     {}
func (emptyIterator) SeekToLast()      {}
