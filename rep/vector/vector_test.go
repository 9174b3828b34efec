package vector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon-rock/memrep"
	"github.com/simon-rock/memrep/arena"
	"github.com/simon-rock/memrep/internal/ikey"
	"github.com/simon-rock/memrep/rep/vector"
	"github.com/simon-rock/memrep/testutil"
)

func newRep(t *testing.T, cmp memrep.KeyComparator) *vector.Rep {
	t.Helper()
	a, err := arena.New(arena.DefaultChunkSize)
	require.NoError(t, err)
	t.Cleanup(a.Free)
	return vector.New(cmp, a, 0)
}

func TestRepReadOnlyIteration(t *testing.T) {
	rep := newRep(t, memrep.NewBytewiseComparator())

	for i, k := range []string{"z", "x", "y"} {
		require.NoError(t, testutil.Insert(rep, k, uint64(i+1), "v"+k))
	}
	rep.MarkReadOnly()

	it := rep.NewIterator()
	it.SeekToFirst()
	assert.Equal(t, []string{"x", "y", "z"}, testutil.UserKeys(it))
}

func TestRepSortsOnce(t *testing.T) {
	cmp := &testutil.CountingComparator{Inner: memrep.NewBytewiseComparator()}
	rep := newRep(t, cmp)

	const n = 200
	for i, k := range testutil.RandomKeys(n, 7) {
		require.NoError(t, testutil.Insert(rep, k, uint64(i+1), ""))
	}
	rep.MarkReadOnly()

	first := rep.NewIterator()
	first.SeekToFirst()
	testutil.UserKeys(first)
	afterFirst := cmp.Calls()
	assert.Positive(t, afterFirst)

	// Later iterators reuse the sorted buffer; no further comparisons beyond
	// their own seeks.
	for i := 0; i < 10; i++ {
		it := rep.NewIterator()
		it.SeekToFirst()
		testutil.UserKeys(it)
	}
	assert.Equal(t, afterFirst, cmp.Calls())
}

func TestRepMutableIteration(t *testing.T) {
	rep := newRep(t, memrep.NewBytewiseComparator())

	require.NoError(t, testutil.Insert(rep, "b", 1, ""))
	require.NoError(t, testutil.Insert(rep, "a", 2, ""))

	// Before the read-only transition each iterator sorts its own snapshot
	// and later inserts stay invisible to it.
	it := rep.NewIterator()
	require.NoError(t, testutil.Insert(rep, "c", 3, ""))

	it.SeekToFirst()
	assert.Equal(t, []string{"a", "b"}, testutil.UserKeys(it))

	it = rep.NewIterator()
	it.SeekToFirst()
	assert.Equal(t, []string{"a", "b", "c"}, testutil.UserKeys(it))
}

func TestRepInsertAfterReadOnlyPanics(t *testing.T) {
	rep := newRep(t, memrep.NewBytewiseComparator())
	require.NoError(t, testutil.Insert(rep, "a", 1, ""))
	rep.MarkReadOnly()

	assert.Panics(t, func() {
		_ = testutil.Insert(rep, "b", 2, "")
	})
}

func TestRepContains(t *testing.T) {
	rep := newRep(t, memrep.NewBytewiseComparator())
	require.NoError(t, testutil.Insert(rep, "k", 4, "v"))

	t.Run("before sort", func(t *testing.T) {
		assert.True(t, rep.Contains(testutil.Entry("k", 4, "v")))
		assert.False(t, rep.Contains(testutil.Entry("q", 4, "v")))
	})

	rep.MarkReadOnly()
	it := rep.NewIterator() // triggers the sort
	_ = it

	t.Run("after sort", func(t *testing.T) {
		assert.True(t, rep.Contains(testutil.Entry("k", 4, "v")))
		assert.False(t, rep.Contains(testutil.Entry("q", 4, "v")))
	})
}

func TestRepGet(t *testing.T) {
	rep := newRep(t, memrep.NewBytewiseComparator())
	require.NoError(t, testutil.Insert(rep, "k", 1, "old"))
	require.NoError(t, testutil.Insert(rep, "k", 6, "new"))
	require.NoError(t, testutil.Insert(rep, "x", 3, "other"))

	var got []string
	rep.Get(memrep.NewLookupKey([]byte("k"), ikey.MaxSequence), func(entry []byte) bool {
		got = append(got, string(ikey.Value(entry)))
		return true
	})
	assert.Equal(t, []string{"new", "old"}, got)
}

func TestIteratorSeek(t *testing.T) {
	rep := newRep(t, memrep.NewBytewiseComparator())
	for i, k := range []string{"d", "b", "f"} {
		require.NoError(t, testutil.Insert(rep, k, uint64(i+1), ""))
	}
	rep.MarkReadOnly()

	it := rep.NewIterator()
	lk := memrep.NewLookupKey([]byte("c"), ikey.MaxSequence)
	it.Seek(lk.InternalKey(), lk.MemtableKey())
	require.True(t, it.Valid())
	assert.Equal(t, []byte("d"), ikey.UserKey(it.Key()))

	it.SeekToLast()
	require.True(t, it.Valid())
	assert.Equal(t, []byte("f"), ikey.UserKey(it.Key()))
	it.Prev()
	require.True(t, it.Valid())
	assert.Equal(t, []byte("d"), ikey.UserKey(it.Key()))
}

func TestFactory(t *testing.T) {
	f, err := memrep.NewFactory(vector.FactoryName)
	require.NoError(t, err)
	assert.Equal(t, vector.FactoryName, f.Name())

	a, err := arena.New(arena.DefaultChunkSize)
	require.NoError(t, err)
	defer a.Free()

	rep, err := f.Create(memrep.NewBytewiseComparator(), a, nil)
	require.NoError(t, err)
	assert.True(t, rep.SupportsMerge())
	assert.True(t, rep.SupportsSnapshot())
}

func TestApproximateMemoryUsage(t *testing.T) {
	a, err := arena.New(arena.DefaultChunkSize)
	require.NoError(t, err)
	defer a.Free()

	rep := vector.New(memrep.NewBytewiseComparator(), a, 100)
	assert.Equal(t, uint64(800), rep.ApproximateMemoryUsage())
}
