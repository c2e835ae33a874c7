//go:build windows

package coalescer

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// platformAlloc reserves and commits an anonymous private region of size
// bytes via VirtualAlloc, the Windows analogue of an anonymous mmap.
func platformAlloc(size int) ([]byte, bool, error) {
	if size <= 0 {
		return nil, false, nil
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, false, err
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return buf, true, nil
}

func platformFree(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
