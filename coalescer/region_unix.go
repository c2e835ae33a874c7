//go:build !windows

package coalescer

import "golang.org/x/sys/unix"

// platformAlloc maps an anonymous, private region of size bytes outside the
// Go heap. The kernel zero-fills it, matching make([]byte, size).
func platformAlloc(size int) ([]byte, bool, error) {
	if size <= 0 {
		return nil, false, nil
	}
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

func platformFree(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return unix.Munmap(buf)
}
