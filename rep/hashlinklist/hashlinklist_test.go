package hashlinklist_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/ikey"
	"github.com/simon-rock/memrep/rep/hashlinklist"
	"github.com/simon-rock/memrep/testutil"
)

func newRep(t *testing.T, prefixLen int, opts ...hashlinklist.Option) memrep.MemTableRep {
	t.Helper()
	a, err := arena.New(arena.DefaultChunkSize)
	require.NoError(t, err)
	t.Cleanup(a.Free)

	opts = append([]hashlinklist.Option{hashlinklist.WithBucketCount(64)}, opts...)
	rep, err := hashlinklist.NewFactory(opts...).Create(
		memrep.NewBytewiseComparator(), a, memrep.NewFixedPrefixExtractor(prefixLen))
	require.NoError(t, err)
	return rep
}

func TestRepRequiresPrefixExtractor(t *testing.T) {
	a, err := arena.New(arena.DefaultChunkSize)
	require.NoError(t, err)
	defer a.Free()

	_, err = hashlinklist.NewFactory().Create(memrep.NewBytewiseComparator(), a, nil)
	require.Error(t, err)
}

func TestChainStaysSorted(t *testing.T) {
	rep := newRep(t, 4)

	keys := make([]string, 0, 50)
	for _, k := range testutil.RandomKeys(50, 11) {
		keys = append(keys, "pfx-"+k)
	}
	for i, k := range keys {
		require.NoError(t, testutil.Insert(rep, k, uint64(i+1), ""))
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	it := rep.NewDynamicPrefixIterator()
	lk := memrep.NewLookupKey([]byte("pfx-"), ikey.MaxSequence)
	it.Seek(lk.InternalKey(), lk.MemtableKey())
	assert.Equal(t, sorted, testutil.UserKeys(it))
}

func TestVersionOrderWithinChain(t *testing.T) {
	rep := newRep(t, 1)

	require.NoError(t, testutil.Insert(rep, "k1", 3, "v3"))
	require.NoError(t, testutil.Insert(rep, "k1", 9, "v9"))
	require.NoError(t, testutil.Insert(rep, "k1", 5, "v5"))

	it := rep.NewUserKeyIterator([]byte("k1"))
	it.SeekToFirst()
	assert.Equal(t, []string{"v9", "v5", "v3"}, testutil.Values(it))
}

func TestDynamicPrefixIterator(t *testing.T) {
	rep := newRep(t, 1)

	for i, k := range []string{"a1", "a2", "b1"} {
		require.NoError(t, testutil.Insert(rep, k, uint64(i+1), ""))
	}

	it := rep.NewDynamicPrefixIterator()
	lk := memrep.NewLookupKey([]byte("a0"), ikey.MaxSequence)
	it.Seek(lk.InternalKey(), lk.MemtableKey())
	assert.Equal(t, []string{"a1", "a2"}, testutil.UserKeys(it))
}

func TestChainIteratorPrev(t *testing.T) {
	rep := newRep(t, 4)

	for i, k := range []string{"pfx-a", "pfx-b", "pfx-c"} {
		require.NoError(t, testutil.Insert(rep, k, uint64(i+1), ""))
	}

	it := rep.NewUserKeyIterator([]byte("pfx-a"))
	it.SeekToLast()
	require.True(t, it.Valid())

	var keys []string
	for ; it.Valid(); it.Prev() {
		keys = append(keys, string(ikey.UserKey(it.Key())))
	}
	assert.Equal(t, []string{"pfx-c", "pfx-b", "pfx-a"}, keys)
}

func TestContainsBeforeAndAfterReadOnly(t *testing.T) {
	rep := newRep(t, 1)

	require.NoError(t, testutil.Insert(rep, "k1", 7, "v"))
	require.NoError(t, testutil.Insert(rep, "m2", 3, "v"))

	check := func(t *testing.T) {
		assert.True(t, rep.Contains(testutil.Entry("k1", 7, "")))
		assert.True(t, rep.Contains(testutil.Entry("m2", 3, "")))
		assert.False(t, rep.Contains(testutil.Entry("k1", 8, "")))
		assert.False(t, rep.Contains(testutil.Entry("zz", 1, "")))
	}
	t.Run("chain walk only", check)

	rep.MarkReadOnly()
	t.Run("with bloom filter", check)
}

func TestGetAfterReadOnly(t *testing.T) {
	rep := newRep(t, 1)

	require.NoError(t, testutil.Insert(rep, "k1", 2, "old"))
	require.NoError(t, testutil.Insert(rep, "k1", 8, "new"))
	rep.MarkReadOnly()

	var got []string
	rep.Get(memrep.NewLookupKey([]byte("k1"), ikey.MaxSequence), func(entry []byte) bool {
		got = append(got, string(ikey.Value(entry)))
		return true
	})
	assert.Equal(t, []string{"new", "old"}, got)

	rep.Get(memrep.NewLookupKey([]byte("q1"), ikey.MaxSequence), func([]byte) bool {
		t.Fatal("visited an entry for an absent user key")
		return false
	})
}

func TestMarkReadOnlyEmptyTable(t *testing.T) {
	rep := newRep(t, 1)
	rep.MarkReadOnly()
	assert.False(t, rep.Contains(testutil.Entry("a1", 1, "")))
}

func TestMemoryUsageGrowsWithFilter(t *testing.T) {
	rep := newRep(t, 1)
	for i, k := range []string{"a1", "b2", "c3"} {
		require.NoError(t, testutil.Insert(rep, k, uint64(i+1), ""))
	}

	before := rep.ApproximateMemoryUsage()
	rep.MarkReadOnly()
	assert.Greater(t, rep.ApproximateMemoryUsage(), before)
}

func TestFullIteration(t *testing.T) {
	rep := newRep(t, 1)

	keys := []string{"a1", "a2", "b1", "c1"}
	for i, k := range keys {
		require.NoError(t, testutil.Insert(rep, k, uint64(i+1), ""))
	}

	it := rep.NewIterator()
	it.SeekToFirst()
	got := testutil.UserKeys(it)
	assert.ElementsMatch(t, keys, got)

	it = rep.NewIterator()
	it.SeekToLast()
	var backward []string
	for ; it.Valid(); it.Prev() {
		backward = append(backward, string(ikey.UserKey(it.Key())))
	}
	require.Len(t, backward, len(got))
	for i := range got {
		assert.Equal(t, got[i], backward[len(backward)-1-i])
	}
}

func TestConcurrentChainReads(t *testing.T) {
	rep := newRep(t, 4)

	const total = 1500
	keys := testutil.RandomKeys(total, 21)

	g, ctx := errgroup.WithContext(context.Background())
	done := make(chan struct{})

	// Single writer splicing into one bucket's chain, per the insert
	// contract. A shared prefix routes every key to the same chain so the
	// readers exercise the splice publication path as hard as possible.
	g.Go(func() error {
		defer close(done)
		for i, k := range keys {
			if err := testutil.Insert(rep, "grp-"+k, uint64(i+1), "v"); err != nil {
				return err
			}
		}
		return nil
	})

	// Readers drain the chain while the writer runs. Every pass must observe
	// a strictly sorted sequence of fully formed entries; a node is either
	// published with both words set or not visible at all.
	lk := memrep.NewLookupKey([]byte("grp-"), ikey.MaxSequence)
	for r := 0; r < 4; r++ {
		g.Go(func() error {
			cmp := memrep.NewBytewiseComparator()
			for {
				select {
				case <-done:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				it := rep.NewDynamicPrefixIterator()
				var prev []byte
				for it.Seek(lk.InternalKey(), lk.MemtableKey()); it.Valid(); it.Next() {
					entry := ikey.Entry(it.Key())
					if prev != nil && cmp.Compare(prev, entry) >= 0 {
						return fmt.Errorf("chain out of order: %q after %q", ikey.UserKey(entry), ikey.UserKey(prev))
					}
					prev = append(prev[:0], entry...)
				}
			}
		})
	}
	require.NoError(t, g.Wait())

	it := rep.NewDynamicPrefixIterator()
	it.Seek(lk.InternalKey(), lk.MemtableKey())
	assert.Len(t, testutil.UserKeys(it), total)
}

func TestClose(t *testing.T) {
	t.Run("heap backed", func(t *testing.T) {
		rep := newRep(t, 1).(*hashlinklist.Rep)
		require.NoError(t, rep.Close())
	})

	t.Run("huge page backed", func(t *testing.T) {
		// Whether the huge-page request was granted or degraded, Close must
		// release whatever mapping exists and stay idempotent.
		rep := newRep(t, 1, hashlinklist.WithHugePageTLBSize(2<<20)).(*hashlinklist.Rep)
		require.NoError(t, testutil.Insert(rep, "a1", 1, "v"))

		require.NoError(t, rep.Close())
		require.NoError(t, rep.Close())
	})
}

func TestHugePageRequestDegradesGracefully(t *testing.T) {
	// 2 MiB huge pages are rarely reserved in test environments; creation
	// must succeed either way.
	rep := newRep(t, 1, hashlinklist.WithHugePageTLBSize(2<<20))

	require.NoError(t, testutil.Insert(rep, "a1", 1, "v"))
	assert.True(t, rep.Contains(testutil.Entry("a1", 1, "")))
}

func TestFactoryRegistration(t *testing.T) {
	f, err := memrep.NewFactory(hashlinklist.FactoryName)
	require.NoError(t, err)
	assert.Equal(t, hashlinklist.FactoryName, f.Name())
}
