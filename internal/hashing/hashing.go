// Package hashing wraps the murmur3 hash family used to pick buckets in the
// hashed representations and candidate slots in the cuckoo representation.
package hashing

import "github.com/twmb/murmur3"

// Bucket hashes a key prefix to a bucket index in [0, bucketCount).
func Bucket(prefix []byte, bucketCount uint64) uint64 {
	return murmur3.Sum64(prefix) % bucketCount
}

// Seeded hashes key with the given seed. Distinct seeds give the independent
// hash functions cuckoo hashing needs.
func Seeded(key []byte, seed uint64) uint64 {
	return murmur3.SeedSum64(seed, key)
}
