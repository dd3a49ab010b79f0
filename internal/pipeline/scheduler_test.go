package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/device/host"
	"github.com/samcharles93/vecstream/internal/logger"
)

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.Discard())
}

func newHost(t testing.TB) *host.Device {
	t.Helper()
	d := host.New(host.Options{})
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func randomVectors(n int, seed int64) ([]float32, []float32) {
	r := rand.New(rand.NewSource(seed))
	a := make([]float32, n)
	b := make([]float32, n)
	for i := range a {
		a[i] = r.Float32()*200 - 100
		b[i] = r.Float32()*200 - 100
	}
	return a, b
}

func TestAddMatchesElementwiseSum(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 1, 127, 128, 129, 511, 512, 513, 1000, 4097, 65536 + 3} {
		in1, in2 := randomVectors(n, int64(n))
		out, err := Add(testContext(), newHost(t), DefaultConfig(), in1, in2)
		require.NoError(t, err, "n=%d", n)
		require.Len(t, out, n)
		for i := range out {
			if out[i] != in1[i]+in2[i] {
				t.Fatalf("n=%d: out[%d] = %v, want %v", n, i, out[i], in1[i]+in2[i])
			}
		}
	}
}

func TestAddLengthMismatch(t *testing.T) {
	t.Parallel()
	_, err := Add(testContext(), newHost(t), DefaultConfig(), make([]float32, 3), make([]float32, 4))
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestAddIsIdempotent(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	in1, in2 := randomVectors(3000, 7)
	first, err := Add(testContext(), dev, DefaultConfig(), in1, in2)
	require.NoError(t, err)
	second, err := Add(testContext(), dev, DefaultConfig(), in1, in2)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// runRecorded runs the scheduler for n elements against a recording host device.
func runRecorded(t *testing.T, n int, cfg Config) (*recorder, []float32, []float32, []float32) {
	t.Helper()
	dev := newHost(t)
	rec := newRecorder(dev)

	in1, in2 := randomVectors(n, 42)
	bufs := make([]device.HostBuffer, 3)
	for i := range bufs {
		h, err := dev.AllocHost(n)
		require.NoError(t, err)
		t.Cleanup(func() { _ = h.Free() })
		bufs[i] = h
	}
	copy(bufs[0].Float32(), in1)
	copy(bufs[1].Float32(), in2)

	pool, err := NewPool(rec, cfg)
	require.NoError(t, err)
	require.NoError(t, NewScheduler(rec, pool).Run(testContext(), bufs[0], bufs[1], bufs[2], n))
	require.NoError(t, pool.Release())

	out := append([]float32(nil), bufs[2].Float32()...)
	return rec, in1, in2, out
}

func TestRunExactChunkUsesEveryStreamOnce(t *testing.T) {
	t.Parallel()
	rec, in1, in2, out := runRecorded(t, SegmentSize*NumStreams, DefaultConfig())

	per := rec.byStream()
	require.Len(t, per, NumStreams)
	for s := 0; s < NumStreams; s++ {
		ops := per[s]
		require.Len(t, ops, 4, "stream %d", s)
		require.Equal(t, []string{"h2d", "h2d", "launch", "d2h"}, kinds(ops))
		for _, o := range ops {
			require.Equal(t, SegmentSize, o.elems)
		}
		require.Equal(t, s*SegmentSize, ops[0].offset)
		require.Equal(t, s*SegmentSize, ops[3].offset)
	}
	require.Equal(t, "sync", rec.ops[len(rec.ops)-1].kind)
	for i := range out {
		require.Equal(t, in1[i]+in2[i], out[i])
	}
}

func TestRunSkipsEmptyTailSegments(t *testing.T) {
	t.Parallel()
	rec, in1, in2, out := runRecorded(t, SegmentSize*NumStreams+1, DefaultConfig())

	per := rec.byStream()
	require.Len(t, per[0], 8, "stream 0 handles both chunks")
	tail := per[0][4:]
	require.Equal(t, []string{"h2d", "h2d", "launch", "d2h"}, kinds(tail))
	for _, o := range tail {
		require.Equal(t, 1, o.elems)
	}
	require.Equal(t, SegmentSize*NumStreams, tail[0].offset)
	for s := 1; s < NumStreams; s++ {
		require.Len(t, per[s], 4, "stream %d should only see the first chunk", s)
	}
	for _, o := range rec.ops {
		if o.kind != "sync" {
			require.NotZero(t, o.elems, "zero-length %s issued on stream %d", o.kind, o.stream)
		}
	}
	require.Equal(t, in1[len(in1)-1]+in2[len(in2)-1], out[len(out)-1])
}

func TestRunKeepsSegmentPhasesOnOneStream(t *testing.T) {
	t.Parallel()
	cfg := Config{Streams: 3, SegmentSize: 10, BlockSize: 4}
	rec, _, _, _ := runRecorded(t, 95, cfg)

	for s, ops := range rec.byStream() {
		require.Zero(t, len(ops)%4, "stream %d", s)
		for i := 0; i < len(ops); i += 4 {
			seg := ops[i : i+4]
			require.Equal(t, []string{"h2d", "h2d", "launch", "d2h"}, kinds(seg), "stream %d", s)
			require.Equal(t, seg[0].offset, seg[1].offset)
			require.Equal(t, seg[0].offset, seg[3].offset)
			require.Equal(t, seg[0].elems, seg[2].elems)
		}
	}
}

func TestRunEmptyInputOnlySynchronizes(t *testing.T) {
	t.Parallel()
	rec, _, _, out := runRecorded(t, 0, DefaultConfig())
	require.Empty(t, out)
	require.Len(t, rec.ops, 1)
	require.Equal(t, "sync", rec.ops[0].kind)
}

func TestRunTracesSegments(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.Text(&buf, slog.LevelDebug))

	_, err := Add(ctx, dev, DefaultConfig(), make([]float32, 513), make([]float32, 513))
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "msg=chunk index=1 i=512")
	require.Contains(t, out, "stream=0 offset=512 copy_size=1")
	require.Contains(t, out, "stream=3 offset=896 copy_size=0")
}

func TestPoolResourceAccounting(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	rec := newRecorder(dev)

	pool, err := NewPool(rec, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 3*NumStreams, rec.allocs)
	require.Equal(t, NumStreams, rec.streams)

	bufs, streams := dev.Live()
	require.Equal(t, 3*NumStreams, bufs)
	require.Equal(t, NumStreams, streams)

	require.NoError(t, pool.Release())
	stats := pool.Stats()
	require.Equal(t, 3*NumStreams, stats.Allocations)
	require.Equal(t, stats.Allocations, stats.Releases)
	require.Equal(t, NumStreams, stats.Streams)

	bufs, streams = dev.Live()
	require.Zero(t, bufs)
	require.Zero(t, streams)

	require.ErrorIs(t, pool.Release(), ErrPoolReleased)
}

func TestPoolBuffersSizedBySegment(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	pool, err := NewPool(dev, DefaultConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, pool.Release()) }()
	for _, l := range pool.lanes {
		for _, b := range []device.Buffer{l.in1, l.in2, l.out} {
			require.Equal(t, SegmentSize, b.Len())
		}
	}
}

func TestPoolSetupFailureReportsOperation(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	rec := newRecorder(dev)
	rec.failOn("alloc", 5)

	_, err := NewPool(rec, DefaultConfig())
	require.ErrorIs(t, err, errInjected)

	var opErr *device.OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "cudaMalloc", opErr.Op)
	require.Equal(t, "pool.go", opErr.File)
	require.NotZero(t, opErr.Line)

	bufs, streams := dev.Live()
	require.Zero(t, bufs, "buffers leaked after failed setup")
	require.Zero(t, streams, "streams leaked after failed setup")
}

func TestPoolStreamFailure(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	rec := newRecorder(dev)
	rec.failOn("stream", 3)

	_, err := NewPool(rec, DefaultConfig())
	var opErr *device.OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "cudaStreamCreate", opErr.Op)
	require.Zero(t, rec.allocs)
	_, streams := dev.Live()
	require.Zero(t, streams)
}

func TestPoolOutOfDeviceMemory(t *testing.T) {
	t.Parallel()
	dev := host.New(host.Options{MemoryLimit: 4 * SegmentSize * 5})
	defer func() { _ = dev.Close() }()

	_, err := NewPool(dev, DefaultConfig())
	require.ErrorIs(t, err, host.ErrOutOfMemory)
	require.Contains(t, err.Error(), "cudaMalloc failed at pool.go:")
}

func TestRunFailsFastOnDeviceError(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	rec := newRecorder(dev)
	rec.failOn("launch", 6)

	const n = 4 * SegmentSize * NumStreams
	h := make([]device.HostBuffer, 3)
	for i := range h {
		buf, err := dev.AllocHost(n)
		require.NoError(t, err)
		defer func() { _ = buf.Free() }()
		h[i] = buf
	}
	pool, err := NewPool(rec, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = pool.Release() }()

	err = NewScheduler(rec, pool).Run(testContext(), h[0], h[1], h[2], n)
	require.ErrorIs(t, err, errInjected)
	var opErr *device.OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "vecAdd launch", opErr.Op)
	require.Equal(t, "scheduler.go", opErr.File)

	// The second chunk stops in its compute phase: nothing after the
	// failing launch is issued.
	last := rec.ops[len(rec.ops)-1]
	require.Equal(t, "launch", last.kind)
	require.Zero(t, rec.calls["sync"], "no synchronisation after a failed launch")
}

func TestRunRejectsShortVectors(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	pool, err := NewPool(dev, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = pool.Release() }()

	a, _ := dev.AllocHost(10)
	b, _ := dev.AllocHost(9)
	c, _ := dev.AllocHost(10)
	err = NewScheduler(dev, pool).Run(testContext(), a, b, c, 10)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestRunAfterReleaseFails(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	pool, err := NewPool(dev, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, pool.Release())

	h, _ := dev.AllocHost(1)
	err = NewScheduler(dev, pool).Run(testContext(), h, h, h, 1)
	require.ErrorIs(t, err, ErrPoolReleased)
}

func TestRunStopsIssuingWhenCancelled(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	rec := newRecorder(dev)
	pool, err := NewPool(rec, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = pool.Release() }()

	h, _ := dev.AllocHost(2048)
	ctx, cancel := context.WithCancel(testContext())
	cancel()

	err = NewScheduler(rec, pool).Run(ctx, h, h, h, 2048)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, rec.ops, 1)
	require.Equal(t, "sync", rec.ops[0].kind)
}

func TestOpErrorMessageNamesLocation(t *testing.T) {
	t.Parallel()
	dev := newHost(t)
	rec := newRecorder(dev)
	rec.failOn("h2d", 1)

	_, err := Add(testContext(), rec, DefaultConfig(), make([]float32, 10), make([]float32, 10))
	require.Error(t, err)
	msg := err.Error()
	require.True(t, strings.HasPrefix(msg, "cudaMemcpyAsync(in1, host-to-device) failed at scheduler.go:"), msg)
	require.Contains(t, msg, errInjected.Error())
}

func kinds(ops []op) []string {
	out := make([]string, len(ops))
	for i, o := range ops {
		out[i] = o.kind
	}
	return out
}
