//go:build unix && !linux

package mmap

import "errors"

var errNoHugePages = errors.New("mmap: huge pages unsupported on this platform")

func osMapAnonHuge(size, hugePageSize int) ([]byte, func([]byte) error, error) {
	return nil, nil, errNoHugePages
}
