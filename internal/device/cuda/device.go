//go:build cuda

// Package cuda implements device.Device on an NVIDIA GPU through the CUDA
// runtime, with the vector-add kernel loaded from PTX through the driver API.
package cuda

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/kernel"
)

const (
	Name = "cuda"

	bytesPerElem = int64(unsafe.Sizeof(float32(0)))
)

type Device struct {
	ordinal int
	mod     module

	mu      sync.Mutex
	streams map[int]*stream
	nextID  int
	closed  bool
}

var _ device.Device = (*Device)(nil)

// Available reports whether at least one CUDA device is visible.
func Available() bool {
	n, err := deviceCount()
	return err == nil && n > 0
}

func New(ordinal int) (*Device, error) {
	count, err := deviceCount()
	if err != nil {
		return nil, fmt.Errorf("cuda device query failed: %w", err)
	}
	if count < 1 {
		return nil, fmt.Errorf("no cuda devices detected")
	}
	if ordinal < 0 || ordinal >= count {
		return nil, fmt.Errorf("cuda device %d out of range (have %d)", ordinal, count)
	}
	if err := initDevice(ordinal); err != nil {
		return nil, fmt.Errorf("cuda init failed: %w", err)
	}
	mod, err := loadModule(kernel.PTX, kernel.PTXEntry)
	if err != nil {
		return nil, err
	}
	return &Device{
		ordinal: ordinal,
		mod:     mod,
		streams: make(map[int]*stream),
	}, nil
}

func (d *Device) Name() string {
	return Name
}

func (d *Device) Info() device.Info {
	info := device.Info{
		Name:    fmt.Sprintf("CUDA device %d", d.ordinal),
		Backend: Name,
	}
	if _, total, err := memInfo(); err == nil {
		info.TotalMemory = total
	}
	return info
}

func (d *Device) NewStream() (device.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.ErrReleased
	}
	ns, err := streamCreate()
	if err != nil {
		return nil, err
	}
	s := &stream{id: d.nextID, dev: d, native: ns}
	d.streams[s.id] = s
	d.nextID++
	return s, nil
}

func (d *Device) Alloc(elems int) (device.Buffer, error) {
	mem, err := malloc(int64(elems) * bytesPerElem)
	if err != nil {
		return nil, err
	}
	return &buffer{mem: mem, elems: elems}, nil
}

func (d *Device) AllocHost(elems int) (device.HostBuffer, error) {
	if elems < 0 {
		return nil, fmt.Errorf("host alloc size must be >= 0")
	}
	mem, err := mallocHost(int64(elems) * bytesPerElem)
	if err != nil {
		return nil, err
	}
	hb := &hostBuffer{mem: mem, data: []float32{}}
	if elems > 0 {
		hb.data = unsafe.Slice((*float32)(mem.ptr), elems)
	}
	return hb, nil
}

func (d *Device) MemcpyH2DAsync(dst device.Buffer, src device.HostBuffer, offset, elems int, s device.Stream) error {
	st, db, hb, err := d.copyArgs(s, dst, src)
	if err != nil {
		return err
	}
	if err := device.CheckRange(0, elems, db.elems); err != nil {
		return err
	}
	if err := device.CheckRange(offset, elems, len(hb.data)); err != nil {
		return err
	}
	if elems == 0 {
		return nil
	}
	return memcpyH2DAsync(db.mem.ptr, unsafe.Pointer(&hb.data[offset]), int64(elems)*bytesPerElem, st.native)
}

func (d *Device) MemcpyD2HAsync(dst device.HostBuffer, offset int, src device.Buffer, elems int, s device.Stream) error {
	st, db, hb, err := d.copyArgs(s, src, dst)
	if err != nil {
		return err
	}
	if err := device.CheckRange(0, elems, db.elems); err != nil {
		return err
	}
	if err := device.CheckRange(offset, elems, len(hb.data)); err != nil {
		return err
	}
	if elems == 0 {
		return nil
	}
	return memcpyD2HAsync(unsafe.Pointer(&hb.data[offset]), db.mem.ptr, int64(elems)*bytesPerElem, st.native)
}

func (d *Device) LaunchVecAdd(cfg kernel.LaunchConfig, in1, in2, out device.Buffer, n int, s device.Stream) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := d.stream(s)
	if err != nil {
		return err
	}
	var bufs [3]*buffer
	for i, b := range []device.Buffer{in1, in2, out} {
		db, err := asBuffer(b)
		if err != nil {
			return err
		}
		if err := device.CheckRange(0, n, db.elems); err != nil {
			return err
		}
		bufs[i] = db
	}
	return d.mod.launchVecAdd(cfg.Grid, cfg.Block, st.native, bufs[0].mem, bufs[1].mem, bufs[2].mem, n)
}

func (d *Device) Synchronize() error {
	return deviceSynchronize()
}

func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return device.ErrReleased
	}
	d.closed = true
	live := make([]*stream, 0, len(d.streams))
	for _, s := range d.streams {
		live = append(live, s)
	}
	d.mu.Unlock()

	var errs []error
	for _, s := range live {
		if err := s.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.mod.unload(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *Device) stream(s device.Stream) (*stream, error) {
	st, ok := s.(*stream)
	if !ok || st == nil || st.dev != d {
		return nil, fmt.Errorf("stream does not belong to this device")
	}
	if st.destroyed.Load() {
		return nil, device.ErrReleased
	}
	return st, nil
}

func (d *Device) copyArgs(s device.Stream, b device.Buffer, h device.HostBuffer) (*stream, *buffer, *hostBuffer, error) {
	st, err := d.stream(s)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := asBuffer(b)
	if err != nil {
		return nil, nil, nil, err
	}
	hb, ok := h.(*hostBuffer)
	if !ok || hb == nil {
		return nil, nil, nil, fmt.Errorf("host buffer was not allocated by the cuda device")
	}
	if hb.freed.Load() {
		return nil, nil, nil, device.ErrReleased
	}
	return st, db, hb, nil
}

func asBuffer(b device.Buffer) (*buffer, error) {
	db, ok := b.(*buffer)
	if !ok || db == nil {
		return nil, fmt.Errorf("buffer was not allocated by the cuda device")
	}
	if db.freed.Load() {
		return nil, device.ErrReleased
	}
	return db, nil
}

type stream struct {
	id        int
	dev       *Device
	native    nativeStream
	destroyed atomic.Bool
}

func (s *stream) ID() int {
	return s.id
}

func (s *stream) Synchronize() error {
	if s.destroyed.Load() {
		return device.ErrReleased
	}
	return s.native.synchronize()
}

func (s *stream) Destroy() error {
	if !s.destroyed.CompareAndSwap(false, true) {
		return device.ErrReleased
	}
	s.dev.mu.Lock()
	delete(s.dev.streams, s.id)
	s.dev.mu.Unlock()
	return s.native.destroy()
}

type buffer struct {
	mem   deviceMem
	elems int
	freed atomic.Bool
}

func (b *buffer) Len() int {
	return b.elems
}

func (b *buffer) Free() error {
	if !b.freed.CompareAndSwap(false, true) {
		return device.ErrReleased
	}
	return b.mem.free()
}

type hostBuffer struct {
	mem   hostMem
	data  []float32
	freed atomic.Bool
}

func (h *hostBuffer) Float32() []float32 {
	return h.data
}

func (h *hostBuffer) Len() int {
	return len(h.data)
}

func (h *hostBuffer) Free() error {
	if !h.freed.CompareAndSwap(false, true) {
		return device.ErrReleased
	}
	h.data = nil
	return h.mem.free()
}
