package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/kernel"
	"github.com/samcharles93/vecstream/internal/logger"
)

// Scheduler issues the copy-in, compute and copy-out phases for every chunk
// of an input onto the pool's streams.
//
// All three operations for a segment go to the same stream in dependency
// order, and a stream's next copy-in is issued after its previous kernel and
// copy-out, so same-stream FIFO ordering is the only synchronisation needed
// between phases and between chunks.
type Scheduler struct {
	dev    device.Device
	pool   *Pool
	cfg    Config
	launch kernel.LaunchConfig
}

func NewScheduler(dev device.Device, pool *Pool) *Scheduler {
	cfg := pool.Config()
	return &Scheduler{
		dev:    dev,
		pool:   pool,
		cfg:    cfg,
		launch: cfg.Launch(),
	}
}

// Run computes out[i] = in1[i] + in2[i] for i < n. It returns only after
// every issued operation on every stream has completed, so out is fully
// populated when Run returns nil. The first failed device operation ends the
// run.
//
// A cancelled ctx stops further chunks from being issued; work already issued
// is still waited for before ctx.Err() is returned.
func (s *Scheduler) Run(ctx context.Context, in1, in2, out device.HostBuffer, n int) error {
	if s.pool.released {
		return ErrPoolReleased
	}
	if n < 0 || in1.Len() < n || in2.Len() < n || out.Len() < n {
		return fmt.Errorf("%w: n=%d in1=%d in2=%d out=%d",
			ErrLengthMismatch, n, in1.Len(), in2.Len(), out.Len())
	}

	log := logger.FromContext(ctx)
	trace := log.Enabled(slog.LevelDebug)
	if trace {
		log.Debug("pipeline start", "length", n, "streams", s.cfg.Streams,
			"segment_size", s.cfg.SegmentSize, "grid", s.launch.Grid, "block", s.launch.Block)
	}

	for _, c := range Plan(n, s.cfg) {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, s.synchronize())
		}
		if trace {
			log.Debug("chunk", "index", c.Index, "i", c.Base)
			for _, seg := range c.Segments {
				log.Debug("segment", "stream", seg.Stream, "offset", seg.Offset, "copy_size", seg.CopySize)
			}
		}
		if err := s.issue(c, in1, in2, out); err != nil {
			return err
		}
	}

	return s.synchronize()
}

func (s *Scheduler) issue(c Chunk, in1, in2, out device.HostBuffer) error {
	lanes := s.pool.lanes

	for _, seg := range c.Segments {
		if seg.Empty() {
			continue
		}
		l := lanes[seg.Stream]
		err := s.dev.MemcpyH2DAsync(l.in1, in1, seg.Offset, seg.CopySize, l.stream)
		if err := device.Check("cudaMemcpyAsync(in1, host-to-device)", err); err != nil {
			return err
		}
		err = s.dev.MemcpyH2DAsync(l.in2, in2, seg.Offset, seg.CopySize, l.stream)
		if err := device.Check("cudaMemcpyAsync(in2, host-to-device)", err); err != nil {
			return err
		}
	}

	for _, seg := range c.Segments {
		if seg.Empty() {
			continue
		}
		l := lanes[seg.Stream]
		err := s.dev.LaunchVecAdd(s.launch, l.in1, l.in2, l.out, seg.CopySize, l.stream)
		if err := device.Check("vecAdd launch", err); err != nil {
			return err
		}
	}

	for _, seg := range c.Segments {
		if seg.Empty() {
			continue
		}
		l := lanes[seg.Stream]
		err := s.dev.MemcpyD2HAsync(out, seg.Offset, l.out, seg.CopySize, l.stream)
		if err := device.Check("cudaMemcpyAsync(out, device-to-host)", err); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) synchronize() error {
	return device.Check("cudaDeviceSynchronize", s.dev.Synchronize())
}
