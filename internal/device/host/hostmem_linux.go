//go:build linux

package host

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocPinned maps anonymous memory outside the Go heap and tries to lock it
// in RAM. A failed mlock (RLIMIT_MEMLOCK) leaves the mapping pageable.
func allocPinned(elems int) (*pinned, error) {
	if elems == 0 {
		return &pinned{data: []float32{}}, nil
	}
	size := elems * bytesPerElem
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	p := &pinned{
		data: unsafe.Slice((*float32)(unsafe.Pointer(&mem[0])), elems),
		mem:  mem,
	}
	if unix.Mlock(mem) == nil {
		p.locked = true
	}
	return p, nil
}

func freePinned(p *pinned) error {
	if p.mem == nil {
		return nil
	}
	if p.locked {
		if err := unix.Munlock(p.mem); err != nil {
			return fmt.Errorf("munlock: %w", err)
		}
	}
	mem := p.mem
	p.mem = nil
	p.data = nil
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
