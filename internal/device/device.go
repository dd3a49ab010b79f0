// Package device describes the accelerator surface the pipeline drives:
// ordered execution streams, fixed-capacity device buffers, page-locked host
// vectors, asynchronous copies and the vector-add kernel launch.
package device

import "github.com/samcharles93/vecstream/internal/kernel"

// Device is one accelerator. Operations bound to the same Stream execute in
// issuance order; operations on different streams have no relative order.
type Device interface {
	Name() string

	NewStream() (Stream, error)

	// Alloc reserves device memory for elems float32 values.
	Alloc(elems int) (Buffer, error)

	// AllocHost reserves page-locked host memory for elems float32 values.
	AllocHost(elems int) (HostBuffer, error)

	// MemcpyH2DAsync enqueues a copy of src[offset:offset+elems] into dst[0:elems].
	MemcpyH2DAsync(dst Buffer, src HostBuffer, offset, elems int, s Stream) error

	// MemcpyD2HAsync enqueues a copy of src[0:elems] into dst[offset:offset+elems].
	MemcpyD2HAsync(dst HostBuffer, offset int, src Buffer, elems int, s Stream) error

	// LaunchVecAdd enqueues out[i] = in1[i] + in2[i] for i < n using cfg's geometry.
	LaunchVecAdd(cfg kernel.LaunchConfig, in1, in2, out Buffer, n int, s Stream) error

	// Synchronize blocks until all work issued on every stream has completed.
	Synchronize() error

	Close() error
}

type Stream interface {
	ID() int
	Synchronize() error
	Destroy() error
}

type Buffer interface {
	Len() int
	Free() error
}

type HostBuffer interface {
	Float32() []float32
	Len() int
	Free() error
}

// Info summarises a device for display.
type Info struct {
	Name        string
	Backend     string
	TotalMemory uint64
}
