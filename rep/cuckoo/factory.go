package cuckoo

import (
	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
)

// Factory builds cuckoo representations.
type Factory struct {
	writeBufferSize int
	averageDataSize int
	hashCount       int
	logger          *memrep.Logger
}

// Option adjusts factory parameters.
type Option func(*Factory)

// WithAverageDataSize sets the assumed key+value size used to estimate the
// expected entry count.
func WithAverageDataSize(n int) Option {
	return func(f *Factory) { f.averageDataSize = n }
}

// WithHashFunctionCount sets the number of candidate slots per key.
func WithHashFunctionCount(n int) Option {
	return func(f *Factory) { f.hashCount = n }
}

// WithLogger sets the logger passed to created representations.
func WithLogger(l *memrep.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// NewFactory returns a cuckoo factory whose slot tables are sized for
// writeBufferSize bytes.
func NewFactory(writeBufferSize int, opts ...Option) *Factory {
	f := &Factory{
		writeBufferSize: writeBufferSize,
		averageDataSize: DefaultAverageDataSize,
		hashCount:       DefaultHashCount,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create builds a representation. The prefix extractor is ignored; cuckoo
// slots hash the full user key.
func (f *Factory) Create(cmp memrep.KeyComparator, a *arena.Arena, _ memrep.PrefixExtractor) (memrep.MemTableRep, error) {
	return New(cmp, a, f.writeBufferSize, f.averageDataSize, f.hashCount, f.logger), nil
}

// Name identifies the factory.
func (f *Factory) Name() string { return FactoryName }
