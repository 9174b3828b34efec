// Package memrep defines the contract between an LSM-tree write buffer and the
// data structure that backs it, together with a factory abstraction for
// selecting among interchangeable implementations.
//
// A memtable representation is an ordered set of encoded keys that must
// satisfy four properties:
//
//  1. It does not store duplicate items.
//  2. It uses a KeyComparator to compare items for iteration and equality.
//  3. It can be read by any number of goroutines while a single writer
//     inserts. It need not support multiple concurrent writers.
//  4. Items are never deleted.
//
// Concrete representations live under rep/: a probabilistic skip list (the
// default), a hash-bucketed skip list, a hash-bucketed sorted linked list, a
// lazily sorted vector, and a cuckoo hash table. Each registers its factory
// name in this package's registry, so an engine can select one from
// configuration alone.
//
// All key bytes are allocated from an arena.Arena owned by the representation.
// Memory is reclaimed in bulk when the representation and its arena are
// discarded after flush; nothing is freed individually.
package memrep
