// Package host implements device.Device on the CPU. Each stream is a
// goroutine draining a FIFO task queue, device buffers are ordinary Go
// memory, and host vectors are page-locked anonymous mappings where the
// platform allows it.
package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pbnjay/memory"

	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/kernel"
)

const (
	Name = "host"

	// DefaultQueueDepth bounds how many operations a stream accepts before the
	// issuer blocks.
	DefaultQueueDepth = 64

	bytesPerElem = 4
)

var ErrOutOfMemory = errors.New("out of memory")

type Options struct {
	// QueueDepth is the per-stream operation queue capacity.
	QueueDepth int
	// MemoryLimit caps device allocations in bytes. Zero means the host's total memory.
	MemoryLimit uint64
}

type Device struct {
	opts Options

	mu        sync.Mutex
	streams   map[int]*stream
	nextID    int
	allocated uint64
	buffers   int
	closed    bool
}

var _ device.Device = (*Device)(nil)

func New(opts Options) *Device {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = DefaultQueueDepth
	}
	if opts.MemoryLimit == 0 {
		opts.MemoryLimit = memory.TotalMemory()
	}
	return &Device{
		opts:    opts,
		streams: make(map[int]*stream),
	}
}

func (d *Device) Name() string {
	return Name
}

func (d *Device) Info() device.Info {
	return device.Info{
		Name:        "CPU",
		Backend:     Name,
		TotalMemory: d.opts.MemoryLimit,
	}
}

// Live reports the number of device buffers and streams not yet released.
func (d *Device) Live() (buffers, streams int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers, len(d.streams)
}

func (d *Device) NewStream() (device.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.ErrReleased
	}
	s := newStream(d, d.nextID, d.opts.QueueDepth)
	d.streams[s.id] = s
	d.nextID++
	return s, nil
}

func (d *Device) Alloc(elems int) (device.Buffer, error) {
	if elems <= 0 {
		return nil, fmt.Errorf("device alloc size must be > 0")
	}
	size := uint64(elems) * bytesPerElem

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.ErrReleased
	}
	if d.allocated+size > d.opts.MemoryLimit {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrOutOfMemory, size, d.allocated, d.opts.MemoryLimit)
	}
	d.allocated += size
	d.buffers++
	return &buffer{dev: d, data: make([]float32, elems)}, nil
}

func (d *Device) AllocHost(elems int) (device.HostBuffer, error) {
	if elems < 0 {
		return nil, fmt.Errorf("host alloc size must be >= 0")
	}
	return allocPinned(elems)
}

func (d *Device) MemcpyH2DAsync(dst device.Buffer, src device.HostBuffer, offset, elems int, s device.Stream) error {
	st, err := d.stream(s)
	if err != nil {
		return err
	}
	db, err := d.buffer(dst)
	if err != nil {
		return err
	}
	hb, err := hostBuffer(src)
	if err != nil {
		return err
	}
	if err := device.CheckRange(0, elems, db.Len()); err != nil {
		return err
	}
	if err := device.CheckRange(offset, elems, hb.Len()); err != nil {
		return err
	}
	return st.enqueue(func() error {
		if db.released() || hb.released() {
			return device.ErrReleased
		}
		copy(db.data[:elems], hb.data[offset:offset+elems])
		return nil
	})
}

func (d *Device) MemcpyD2HAsync(dst device.HostBuffer, offset int, src device.Buffer, elems int, s device.Stream) error {
	st, err := d.stream(s)
	if err != nil {
		return err
	}
	hb, err := hostBuffer(dst)
	if err != nil {
		return err
	}
	db, err := d.buffer(src)
	if err != nil {
		return err
	}
	if err := device.CheckRange(0, elems, db.Len()); err != nil {
		return err
	}
	if err := device.CheckRange(offset, elems, hb.Len()); err != nil {
		return err
	}
	return st.enqueue(func() error {
		if db.released() || hb.released() {
			return device.ErrReleased
		}
		copy(hb.data[offset:offset+elems], db.data[:elems])
		return nil
	})
}

func (d *Device) LaunchVecAdd(cfg kernel.LaunchConfig, in1, in2, out device.Buffer, n int, s device.Stream) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := d.stream(s)
	if err != nil {
		return err
	}
	bufs := make([]*buffer, 0, 3)
	for _, b := range []device.Buffer{in1, in2, out} {
		db, err := d.buffer(b)
		if err != nil {
			return err
		}
		if err := device.CheckRange(0, n, db.Len()); err != nil {
			return err
		}
		bufs = append(bufs, db)
	}
	a, b, c := bufs[0], bufs[1], bufs[2]
	return st.enqueue(func() error {
		if a.released() || b.released() || c.released() {
			return device.ErrReleased
		}
		kernel.Execute(cfg, func(tid kernel.ThreadID) {
			kernel.VecAdd(tid, a.data, b.data, c.data, n)
		})
		return nil
	})
}

func (d *Device) Synchronize() error {
	var errs []error
	for _, s := range d.liveStreams() {
		if err := s.Synchronize(); err != nil {
			errs = append(errs, fmt.Errorf("stream %d: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}

// Close destroys any streams still alive. Buffers remain owned by their holders.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return device.ErrReleased
	}
	d.closed = true
	d.mu.Unlock()

	var errs []error
	for _, s := range d.liveStreams() {
		if err := s.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Device) liveStreams() []*stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*stream, 0, len(d.streams))
	for id := 0; id < d.nextID; id++ {
		if s, ok := d.streams[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (d *Device) stream(s device.Stream) (*stream, error) {
	st, ok := s.(*stream)
	if !ok || st == nil || st.dev != d {
		return nil, fmt.Errorf("stream %v does not belong to this device", s)
	}
	return st, nil
}

func (d *Device) buffer(b device.Buffer) (*buffer, error) {
	db, ok := b.(*buffer)
	if !ok || db == nil || db.dev != d {
		return nil, fmt.Errorf("buffer does not belong to this device")
	}
	if db.released() {
		return nil, device.ErrReleased
	}
	return db, nil
}

func (d *Device) releaseBuffer(size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocated -= size
	d.buffers--
}

func (d *Device) releaseStream(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.streams, id)
}

func hostBuffer(b device.HostBuffer) (*pinned, error) {
	hb, ok := b.(*pinned)
	if !ok || hb == nil {
		return nil, fmt.Errorf("host buffer was not allocated by this device")
	}
	if hb.released() {
		return nil, device.ErrReleased
	}
	return hb, nil
}
