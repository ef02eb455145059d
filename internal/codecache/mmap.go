// Package codecache provides the executable memory arenas backing the
// translation cache (spec.md §4.1, §3 "Code cache"). It mmaps
// read-write-execute pages directly: the JIT never runs on a platform
// enforcing W^X at the page-table level that this module targets, and
// spec.md's smashable-site patching model requires writing into already
// executing code, so the simpler always-RWX mapping is used rather than
// the mprotect-toggle dance some allocators use. mprotectRW/mprotectRX
// are kept as no-op-safe hooks for embedders who want stricter pages.
package codecache

import "fmt"

// MmapCodeSegment allocates a new RWX mapping of the given size.
func MmapCodeSegment(size int) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("codecache: invalid mmap size 0")
	}
	return mmapRWX(size)
}

// MunmapCodeSegment releases a mapping previously returned by MmapCodeSegment
// or RemapCodeSegment.
func MunmapCodeSegment(code []byte) error {
	return munmap(code)
}

// RemapCodeSegment grows (or shrinks) a code segment to newSize, copying the
// old contents. The old mapping is released. Addresses inside the old
// mapping become invalid; callers must have no outstanding smashable-site
// references across a remap (the tracelet analyzer never holds one across a
// growth boundary, by construction: the cache only remaps between, not
// during, an emission).
func RemapCodeSegment(code []byte, newSize int) ([]byte, error) {
	if newSize == 0 {
		if err := MunmapCodeSegment(code); err != nil {
			return nil, err
		}
		return nil, nil
	}
	newCode, err := mmapRWX(newSize)
	if err != nil {
		return nil, err
	}
	copy(newCode, code)
	if code != nil {
		if err := MunmapCodeSegment(code); err != nil {
			return nil, err
		}
	}
	return newCode, nil
}
