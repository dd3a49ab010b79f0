package host

import (
	"sync/atomic"

	"github.com/samcharles93/vecstream/internal/device"
)

type buffer struct {
	dev   *Device
	data  []float32
	freed atomic.Bool
}

func (b *buffer) Len() int {
	return len(b.data)
}

func (b *buffer) Free() error {
	if !b.freed.CompareAndSwap(false, true) {
		return device.ErrReleased
	}
	b.dev.releaseBuffer(uint64(len(b.data)) * bytesPerElem)
	return nil
}

func (b *buffer) released() bool {
	return b.freed.Load()
}

// pinned is a host vector. data aliases mem when the allocation is backed by
// an anonymous mapping.
type pinned struct {
	data   []float32
	mem    []byte
	locked bool
	freed  atomic.Bool
}

func (p *pinned) Float32() []float32 {
	return p.data
}

func (p *pinned) Len() int {
	return len(p.data)
}

func (p *pinned) Free() error {
	if !p.freed.CompareAndSwap(false, true) {
		return device.ErrReleased
	}
	return freePinned(p)
}

func (p *pinned) released() bool {
	return p.freed.Load()
}
