package pipeline

import (
	"errors"
	"fmt"

	"github.com/samcharles93/vecstream/internal/device"
)

// lane is the fixed resource set owned by one stream.
type lane struct {
	stream device.Stream
	in1    device.Buffer
	in2    device.Buffer
	out    device.Buffer
}

// Stats counts the pool's device resource operations.
type Stats struct {
	Streams     int
	Allocations int
	Releases    int
}

// Pool holds Streams lanes, each a stream plus three device buffers of
// exactly SegmentSize elements. Buffers are reused for every chunk.
type Pool struct {
	dev      device.Device
	cfg      Config
	lanes    []lane
	stats    Stats
	released bool
}

// NewPool creates all streams and then all buffers. The first failure is
// returned as a *device.OpError; anything acquired before it is released.
func NewPool(dev device.Device, cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		dev:   dev,
		cfg:   cfg,
		lanes: make([]lane, cfg.Streams),
	}

	for s := range p.lanes {
		st, err := dev.NewStream()
		if err := device.Check("cudaStreamCreate", err); err != nil {
			return nil, p.abort(err)
		}
		p.lanes[s].stream = st
		p.stats.Streams++
	}

	for s := range p.lanes {
		l := &p.lanes[s]
		for _, dst := range []*device.Buffer{&l.in1, &l.in2, &l.out} {
			buf, err := dev.Alloc(cfg.SegmentSize)
			if err := device.Check("cudaMalloc", err); err != nil {
				return nil, p.abort(err)
			}
			*dst = buf
			p.stats.Allocations++
		}
	}
	return p, nil
}

func (p *Pool) abort(cause error) error {
	if err := p.Release(); err != nil {
		return errors.Join(cause, fmt.Errorf("release after failed setup: %w", err))
	}
	return cause
}

func (p *Pool) Config() Config {
	return p.cfg
}

func (p *Pool) Stats() Stats {
	return p.stats
}

// Release frees every buffer and destroys every stream that was successfully
// created. It must be called once, after the last scheduled work.
func (p *Pool) Release() error {
	if p.released {
		return ErrPoolReleased
	}
	p.released = true

	var errs []error
	for s := range p.lanes {
		l := &p.lanes[s]
		for _, buf := range []*device.Buffer{&l.in1, &l.in2, &l.out} {
			if *buf == nil {
				continue
			}
			if err := device.Check("cudaFree", (*buf).Free()); err != nil {
				errs = append(errs, err)
			} else {
				p.stats.Releases++
			}
			*buf = nil
		}
	}
	for s := range p.lanes {
		l := &p.lanes[s]
		if l.stream == nil {
			continue
		}
		if err := device.Check("cudaStreamDestroy", l.stream.Destroy()); err != nil {
			errs = append(errs, err)
		}
		l.stream = nil
	}
	return errors.Join(errs...)
}
