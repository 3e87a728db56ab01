//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MmapCodeSegment allocates a VirtualAlloc'd region large enough to hold size bytes
// of machine code and returns it mapped read-write-execute.
func MmapCodeSegment(size int) ([]byte, error) {
	if size == 0 {
		panic("BUG: MmapCodeSegment with zero length")
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("VirtualAlloc: %w", err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// MunmapCodeSegment releases a region previously returned by MmapCodeSegment.
func MunmapCodeSegment(code []byte) error {
	if len(code) == 0 {
		panic("BUG: MunmapCodeSegment with zero length")
	}
	return windows.VirtualFree(uintptr(unsafe.Pointer(&code[0])), 0, windows.MEM_RELEASE)
}

// MprotectRX is a no-op on Windows since MmapCodeSegment already returns an
// execute-capable mapping; there is no arm64 W^X split to contend with here.
func MprotectRX([]byte) error {
	return nil
}

// MmapMemory reserves size bytes of address space for a linear memory plus its guard region.
func MmapMemory(size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, fmt.Errorf("VirtualAlloc: %w", err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// MprotectRW commits and grants read-write access over [offset, offset+length) of a
// region returned by MmapMemory.
func MprotectRW(mem []byte, offset, length int) error {
	if length == 0 {
		return nil
	}
	base := uintptr(unsafe.Pointer(&mem[offset]))
	_, err := windows.VirtualAlloc(base, uintptr(length), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return fmt.Errorf("VirtualAlloc commit: %w", err)
	}
	return nil
}

// MunmapMemory releases a region previously returned by MmapMemory.
func MunmapMemory(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return windows.VirtualFree(uintptr(unsafe.Pointer(&mem[0])), 0, windows.MEM_RELEASE)
}
