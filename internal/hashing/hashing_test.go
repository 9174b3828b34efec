package hashing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucket(t *testing.T) {
	key := []byte("prefix")

	assert.Equal(t, Bucket(key, 1024), Bucket(key, 1024), "deterministic")
	assert.Less(t, Bucket(key, 16), uint64(16))
	assert.Zero(t, Bucket(key, 1))
}

func TestBucketSpread(t *testing.T) {
	// Sequential keys must not pile into a handful of buckets.
	const buckets = 64
	counts := make([]int, buckets)
	for i := 0; i < 64*64; i++ {
		counts[Bucket([]byte(fmt.Sprintf("user-%d", i)), buckets)]++
	}
	for i, c := range counts {
		assert.NotZerof(t, c, "bucket %d never hit", i)
	}
}

func TestSeeded(t *testing.T) {
	key := []byte("k")
	assert.Equal(t, Seeded(key, 1), Seeded(key, 1))
	assert.NotEqual(t, Seeded(key, 1), Seeded(key, 2), "seeds give independent streams")
}
