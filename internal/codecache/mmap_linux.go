//go:build linux

package codecache

import "golang.org/x/sys/unix"

// mmapRWX allocates a read-write-execute anonymous mapping of the given
// size. The code cache arenas (trampolines/main/cold, spec.md §4.1) are
// carved out of mappings returned by this function so that emitted bytes
// are directly executable without a separate remap-to-exec step.
func mmapRWX(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}

func mprotectRW(b []byte) error {
	return unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE)
}

func mprotectRX(b []byte) error {
	return unix.Mprotect(b, unix.PROT_READ|unix.PROT_EXEC)
}
