//go:build !unix

package mmap

import "errors"

var errUnsupported = errors.New("mmap: anonymous mappings unsupported on this platform")

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	// Heap memory behaves identically apart from GC visibility.
	return make([]byte, size), nil, nil
}

func osMapAnonHuge(size, hugePageSize int) ([]byte, func([]byte) error, error) {
	return nil, nil, errUnsupported
}
