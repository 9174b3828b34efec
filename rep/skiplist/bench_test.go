package skiplist_test

import (
	"fmt"
	"testing"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/ikey"
	"github.com/simon-rock/memrep/rep/skiplist"
	"github.com/simon-rock/memrep/testutil"
)

func BenchmarkInsert(b *testing.B) {
	a, err := arena.New(arena.DefaultChunkSize)
	if err != nil {
		b.Fatal(err)
	}
	defer a.Free()

	rep, err := skiplist.New(memrep.NewBytewiseComparator(), a)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := testutil.Insert(rep, fmt.Sprintf("key-%012d", i), uint64(i+1), "value"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSeek(b *testing.B) {
	for _, size := range []int{1000, 100000} {
		b.Run(fmt.Sprintf("n=%d", size), func(b *testing.B) {
			a, err := arena.New(arena.DefaultChunkSize)
			if err != nil {
				b.Fatal(err)
			}
			defer a.Free()

			rep, err := skiplist.New(memrep.NewBytewiseComparator(), a)
			if err != nil {
				b.Fatal(err)
			}
			keys := testutil.RandomKeys(size, 1)
			for i, k := range keys {
				if err := testutil.Insert(rep, k, uint64(i+1), ""); err != nil {
					b.Fatal(err)
				}
			}
			targets := make([]memrep.LookupKey, len(keys))
			for i, k := range keys {
				targets[i] = memrep.NewLookupKey([]byte(k), ikey.MaxSequence)
			}

			it := rep.NewIterator()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				lk := targets[i%len(targets)]
				it.Seek(lk.InternalKey(), lk.MemtableKey())
				if !it.Valid() {
					b.Fatal("seek missed an inserted key")
				}
			}
		})
	}
}
