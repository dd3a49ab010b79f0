// Package kernel holds the elementwise vector-add kernel and the launch
// geometry shared by every device backend.
package kernel

import (
	"fmt"
	"runtime"
	"sync"
)

// LaunchConfig is a one-dimensional grid of Grid blocks, each Block threads wide.
type LaunchConfig struct {
	Grid  int
	Block int
}

// Threads returns the number of thread slots the launch covers.
func (c LaunchConfig) Threads() int {
	return c.Grid * c.Block
}

func (c LaunchConfig) Validate() error {
	if c.Grid < 1 {
		return fmt.Errorf("grid size must be > 0 (got %d)", c.Grid)
	}
	if c.Block < 1 {
		return fmt.Errorf("block size must be > 0 (got %d)", c.Block)
	}
	return nil
}

// LaunchFor sizes a launch to cover exactly segmentSize slots. The geometry
// never depends on how many elements are valid in a given segment, so kernels
// must bounds-check against their length argument.
func LaunchFor(segmentSize, blockSize int) LaunchConfig {
	return LaunchConfig{
		Grid:  (segmentSize-1)/blockSize + 1,
		Block: blockSize,
	}
}

// ThreadID identifies one thread of a launch.
type ThreadID struct {
	BlockIdx  int
	BlockDim  int
	ThreadIdx int
}

// Global returns the thread's index across the whole grid.
func (t ThreadID) Global() int {
	return t.BlockIdx*t.BlockDim + t.ThreadIdx
}

// VecAdd writes in1[idx]+in2[idx] to out[idx] when idx < n and does nothing otherwise.
func VecAdd(tid ThreadID, in1, in2, out []float32, n int) {
	i := tid.Global()
	if i < n {
		out[i] = in1[i] + in2[i]
	}
}

// Execute runs fn once per thread of cfg on the host. Blocks are spread over
// up to GOMAXPROCS goroutines; threads within a block run sequentially.
// Execute returns when every thread has finished.
func Execute(cfg LaunchConfig, fn func(ThreadID)) {
	workers := runtime.GOMAXPROCS(0)
	if cfg.Grid < workers {
		workers = cfg.Grid
	}
	if workers <= 1 {
		runBlocks(cfg, 0, cfg.Grid, fn)
		return
	}

	perWorker := (cfg.Grid + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < cfg.Grid; start += perWorker {
		end := min(start+perWorker, cfg.Grid)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runBlocks(cfg, start, end, fn)
		}()
	}
	wg.Wait()
}

func runBlocks(cfg LaunchConfig, start, end int, fn func(ThreadID)) {
	for b := start; b < end; b++ {
		for t := 0; t < cfg.Block; t++ {
			fn(ThreadID{BlockIdx: b, BlockDim: cfg.Block, ThreadIdx: t})
		}
	}
}
