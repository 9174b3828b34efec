package mmap

import (
	"errors"
	"math/bits"

	"golang.org/x/sys/unix"
)

var errBadHugePageSize = errors.New("mmap: huge page size must be a power of two")

// osMapAnonHuge maps size bytes from the reserved huge-page pool
// (vm.nr_hugepages). size is rounded up to a multiple of hugePageSize, which
// the kernel requires for MAP_HUGETLB mappings.
func osMapAnonHuge(size, hugePageSize int) ([]byte, func([]byte) error, error) {
	if hugePageSize <= 0 || hugePageSize&(hugePageSize-1) != 0 {
		return nil, nil, errBadHugePageSize
	}
	size = (size + hugePageSize - 1) &^ (hugePageSize - 1)

	flags := unix.MAP_ANON | unix.MAP_PRIVATE | unix.MAP_HUGETLB
	flags |= (bits.Len(uint(hugePageSize)) - 1) << unix.MAP_HUGE_SHIFT

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}
