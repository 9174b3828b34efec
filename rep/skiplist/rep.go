package skiplist

import (
	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
)

// FactoryName is the registered name of the skip list factory.
const FactoryName = "SkipListFactory"

func init() {
	memrep.Register(FactoryName, func() memrep.Factory { return NewFactory() })
}

// Rep is the default memtable representation, backed by a List.
type Rep struct {
	memrep.Base
	list *List
}

// compile-time contract check
var _ memrep.MemTableRep = (*Rep)(nil)

// New creates a skip list representation over the given arena.
func New(cmp memrep.KeyComparator, a *arena.Arena) (*Rep, error) {
	list, err := NewList(cmp, a, DefaultMaxHeight, DefaultBranching)
	if err != nil {
		return nil, err
	}
	return &Rep{Base: memrep.NewBase(a), list: list}, nil
}

// Allocate co-locates the key buffer with its future node so that the tower
// links and the key share a cache neighborhood.
func (r *Rep) Allocate(n int) (memrep.KeyHandle, []byte, error) {
	node, buf, err := r.list.AllocateNode(n)
	if err != nil {
		return 0, nil, err
	}
	return memrep.KeyHandle(node), buf, nil
}

// Insert links the node behind handle into the list.
func (r *Rep) Insert(handle memrep.KeyHandle) {
	r.list.InsertNode(uint64(handle))
}

// Contains reports whether an entry comparing equal to key exists.
func (r *Rep) Contains(key []byte) bool {
	return r.list.Contains(key)
}

// Get scans entries for k's user key through the full-list iterator.
func (r *Rep) Get(k memrep.LookupKey, visit func(entry []byte) bool) {
	memrep.ScanGet(r.list.NewIterator(), k, visit)
}

// ApproximateMemoryUsage is zero: every byte lives in the arena.
func (r *Rep) ApproximateMemoryUsage() uint64 { return 0 }

// NewIterator returns a cursor over the whole list.
func (r *Rep) NewIterator() memrep.Iterator {
	return r.list.NewIterator()
}

// NewUserKeyIterator falls back to the full iterator; the skip list makes no
// assumption about key prefix structure.
func (r *Rep) NewUserKeyIterator(userKey []byte) memrep.Iterator {
	return r.NewIterator()
}

// NewDynamicPrefixIterator falls back to the full iterator.
func (r *Rep) NewDynamicPrefixIterator() memrep.Iterator {
	return r.NewIterator()
}

// Factory builds skip list representations. It has no parameters.
type Factory struct{}

// NewFactory returns the default skip list factory.
func NewFactory() *Factory { return &Factory{} }

// Create builds a representation. The prefix extractor is ignored.
func (f *Factory) Create(cmp memrep.KeyComparator, a *arena.Arena, _ memrep.PrefixExtractor) (memrep.MemTableRep, error) {
	return New(cmp, a)
}

// Name identifies the factory.
func (f *Factory) Name() string { return FactoryName }
