package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/logger"
)

// Add runs the full pipeline for two Go slices: it stages them in host
// memory from dev, builds a fresh pool, schedules the addition and copies the
// result back out. Every resource it creates is released before it returns.
func Add(ctx context.Context, dev device.Device, cfg Config, in1, in2 []float32) (_ []float32, err error) {
	if len(in1) != len(in2) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(in1), len(in2))
	}
	n := len(in1)
	log := logger.FromContext(ctx)

	var host []device.HostBuffer
	defer func() {
		for _, h := range host {
			if ferr := device.Check("cudaFreeHost", h.Free()); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}
	}()
	for range 3 {
		h, aerr := dev.AllocHost(n)
		if aerr := device.Check("cudaMallocHost", aerr); aerr != nil {
			return nil, aerr
		}
		host = append(host, h)
	}
	hIn1, hIn2, hOut := host[0], host[1], host[2]
	copy(hIn1.Float32(), in1)
	copy(hIn2.Float32(), in2)

	stop := logger.Time(log, "Allocating device streams and buffers", "streams", cfg.Streams)
	pool, err := NewPool(dev, cfg)
	stop()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := pool.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	stop = logger.Time(log, "Performing pipelined computation", "length", n)
	err = NewScheduler(dev, pool).Run(ctx, hIn1, hIn2, hOut, n)
	stop()
	if err != nil {
		return nil, err
	}

	out := make([]float32, n)
	copy(out, hOut.Float32())
	return out, nil
}
