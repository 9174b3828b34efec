package cuckoo

import (
	"testing"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/ikey"
	"github.com/simon-rock/memrep/testutil"
)

func BenchmarkGet(b *testing.B) {
	a, err := arena.New(arena.DefaultChunkSize)
	if err != nil {
		b.Fatal(err)
	}
	defer a.Free()

	rep := New(memrep.NewBytewiseComparator(), a, 1<<20, DefaultAverageDataSize, DefaultHashCount, nil)

	const n = 10000
	keys := testutil.RandomKeys(n, 9)
	for i, k := range keys {
		if err := testutil.Insert(rep, k, uint64(i+1), "value"); err != nil {
			b.Fatal(err)
		}
	}
	targets := make([]memrep.LookupKey, n)
	for i, k := range keys {
		targets[i] = memrep.NewLookupKey([]byte(k), ikey.MaxSequence)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var hit bool
		rep.Get(targets[i%n], func([]byte) bool {
			hit = true
			return false
		})
		if !hit {
			b.Fatal("lookup missed an inserted key")
		}
	}
}
