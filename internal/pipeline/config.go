// Package pipeline splits a vector addition into fixed-size segments and
// pipelines copy-in, compute and copy-out for those segments across a fixed
// pool of device streams.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/samcharles93/vecstream/internal/kernel"
)

const (
	// NumStreams is the number of concurrent device streams.
	NumStreams = 4
	// SegmentSize is the number of elements each stream handles per chunk.
	SegmentSize = 128
	// BlockSize is the kernel thread-block width.
	BlockSize = 128
)

var (
	ErrPoolReleased   = errors.New("pool already released")
	ErrLengthMismatch = errors.New("vector length mismatch")
)

type Config struct {
	Streams     int
	SegmentSize int
	BlockSize   int
}

func DefaultConfig() Config {
	return Config{
		Streams:     NumStreams,
		SegmentSize: SegmentSize,
		BlockSize:   BlockSize,
	}
}

func (c Config) Validate() error {
	if c.Streams < 1 {
		return fmt.Errorf("streams must be > 0 (got %d)", c.Streams)
	}
	if c.SegmentSize < 1 {
		return fmt.Errorf("segment size must be > 0 (got %d)", c.SegmentSize)
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("block size must be > 0 (got %d)", c.BlockSize)
	}
	return nil
}

// ChunkSize is the number of elements covered by one pass over all streams.
func (c Config) ChunkSize() int {
	return c.SegmentSize * c.Streams
}

// Launch is the fixed kernel geometry used for every segment.
func (c Config) Launch() kernel.LaunchConfig {
	return kernel.LaunchFor(c.SegmentSize, c.BlockSize)
}
