// Package mmap provides anonymous memory mappings for arena chunks and bucket
// arrays.
//
// MapAnon returns ordinary anonymous pages. MapAnonHuge requests huge-page
// backing and degrades first to ordinary anonymous pages and then to heap
// memory; huge pages are a TLB optimization, never a correctness requirement.
package mmap

import "sync/atomic"

// Mapping is an owned span of mapped memory. It is responsible for unmapping
// the span exactly once.
type Mapping struct {
	data   []byte
	unmap  func([]byte) error
	closed atomic.Bool
}

// Bytes returns the mapped memory. The slice is valid until Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the length of the mapping in bytes.
func (m *Mapping) Size() int { return len(m.data) }

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// MapAnon creates a read-write anonymous mapping of the given size.
func MapAnon(size int) (*Mapping, error) {
	data, unmap, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// MapAnonHuge creates a read-write anonymous mapping backed by huge pages of
// the given size. When the platform or the configured huge-page pool cannot
// satisfy the request, it silently falls back to ordinary anonymous pages.
// The caller handles the final fallback to heap memory.
func MapAnonHuge(size, hugePageSize int) (*Mapping, error) {
	if data, unmap, err := osMapAnonHuge(size, hugePageSize); err == nil {
		return &Mapping{data: data, unmap: unmap}, nil
	}
	return MapAnon(size)
}
