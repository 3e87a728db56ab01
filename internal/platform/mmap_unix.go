//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || illumos

package platform

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// MmapCodeSegment allocates an anonymous, private page-aligned region large enough to
// hold size bytes of machine code.
//
// On amd64 the region comes back read-write-execute immediately. arm64 kernels enforce
// W^X at the mapping level, so there the region is mapped read-write only; the caller
// is expected to copy the generated code in and then call MprotectRX before ever
// entering it.
func MmapCodeSegment(size int) ([]byte, error) {
	if size == 0 {
		panic("BUG: MmapCodeSegment with zero length")
	}
	prot := unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
	if runtime.GOARCH == "arm64" {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	flags := unix.MAP_ANON | unix.MAP_PRIVATE
	return unix.Mmap(-1, 0, size, prot, flags)
}

// MunmapCodeSegment releases a region previously returned by MmapCodeSegment.
func MunmapCodeSegment(code []byte) error {
	if len(code) == 0 {
		panic("BUG: MunmapCodeSegment with zero length")
	}
	return unix.Munmap(code)
}

// MprotectRX drops write permission on a code segment, leaving it read-execute only.
func MprotectRX(code []byte) error {
	if len(code) == 0 {
		return nil
	}
	if err := unix.Mprotect(code, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("mprotect: %w", err)
	}
	return nil
}

// MmapMemory reserves size bytes of read-write memory, used for a linear memory's
// reserved virtual address space (the live Wasm pages plus the trailing guard region).
// The pages are not committed by the OS until first touched.
func MmapMemory(size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	return unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// MprotectRW grants read-write access over [offset, offset+length) of a region
// returned by MmapMemory, committing it for use as live Wasm memory pages.
func MprotectRW(mem []byte, offset, length int) error {
	if length == 0 {
		return nil
	}
	return unix.Mprotect(mem[offset:offset+length], unix.PROT_READ|unix.PROT_WRITE)
}

// MunmapMemory releases a region previously returned by MmapMemory.
func MunmapMemory(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}
