package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/kernel"
)

type op struct {
	kind   string
	stream int
	offset int
	elems  int
}

// recorder wraps a device, logs every issued operation and can be told to
// fail the nth call of a given kind.
type recorder struct {
	device.Device

	mu       sync.Mutex
	ops      []op
	allocs   int
	streams  int
	failKind string
	failAt   int
	calls    map[string]int
}

var errInjected = errors.New("injected device failure")

func newRecorder(dev device.Device) *recorder {
	return &recorder{Device: dev, calls: make(map[string]int)}
}

func (r *recorder) failOn(kind string, nth int) {
	r.failKind, r.failAt = kind, nth
}

func (r *recorder) hit(kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[kind]++
	if kind == r.failKind && r.calls[kind] == r.failAt {
		return fmt.Errorf("%s #%d: %w", kind, r.failAt, errInjected)
	}
	return nil
}

func (r *recorder) record(o op) {
	r.mu.Lock()
	r.ops = append(r.ops, o)
	r.mu.Unlock()
}

func (r *recorder) NewStream() (device.Stream, error) {
	if err := r.hit("stream"); err != nil {
		return nil, err
	}
	r.streams++
	return r.Device.NewStream()
}

func (r *recorder) Alloc(elems int) (device.Buffer, error) {
	if err := r.hit("alloc"); err != nil {
		return nil, err
	}
	r.allocs++
	return r.Device.Alloc(elems)
}

func (r *recorder) MemcpyH2DAsync(dst device.Buffer, src device.HostBuffer, offset, elems int, s device.Stream) error {
	if err := r.hit("h2d"); err != nil {
		return err
	}
	r.record(op{"h2d", s.ID(), offset, elems})
	return r.Device.MemcpyH2DAsync(dst, src, offset, elems, s)
}

func (r *recorder) MemcpyD2HAsync(dst device.HostBuffer, offset int, src device.Buffer, elems int, s device.Stream) error {
	if err := r.hit("d2h"); err != nil {
		return err
	}
	r.record(op{"d2h", s.ID(), offset, elems})
	return r.Device.MemcpyD2HAsync(dst, offset, src, elems, s)
}

func (r *recorder) LaunchVecAdd(cfg kernel.LaunchConfig, in1, in2, out device.Buffer, n int, s device.Stream) error {
	if err := r.hit("launch"); err != nil {
		return err
	}
	r.record(op{"launch", s.ID(), -1, n})
	return r.Device.LaunchVecAdd(cfg, in1, in2, out, n, s)
}

func (r *recorder) Synchronize() error {
	if err := r.hit("sync"); err != nil {
		return err
	}
	r.record(op{kind: "sync", stream: -1})
	return r.Device.Synchronize()
}

func (r *recorder) byStream() map[int][]op {
	out := make(map[int][]op)
	for _, o := range r.ops {
		if o.stream >= 0 {
			out[o.stream] = append(out[o.stream], o)
		}
	}
	return out
}
