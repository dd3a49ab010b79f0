package pipeline

// Segment is the slice [Offset, Offset+CopySize) of the vectors handled by
// one stream during one chunk. CopySize is zero for streams that fall past
// the end of the input; Offset is still reported for those.
type Segment struct {
	Chunk    int
	Stream   int
	Offset   int
	CopySize int
}

func (s Segment) Empty() bool {
	return s.CopySize == 0
}

func (s Segment) End() int {
	return s.Offset + s.CopySize
}

// Chunk is one pass of the scheduler: one segment per stream starting at Base.
type Chunk struct {
	Index    int
	Base     int
	Segments []Segment
}

// Plan derives the chunks for an input of n elements. Chunks start at
// multiples of cfg.ChunkSize() strictly below n, so n == 0 yields none.
func Plan(n int, cfg Config) []Chunk {
	if n <= 0 {
		return nil
	}
	step := cfg.ChunkSize()
	chunks := make([]Chunk, 0, (n+step-1)/step)
	for base, idx := 0, 0; base < n; base, idx = base+step, idx+1 {
		chunks = append(chunks, planChunk(idx, base, n, cfg))
	}
	return chunks
}

func planChunk(idx, base, n int, cfg Config) Chunk {
	c := Chunk{
		Index:    idx,
		Base:     base,
		Segments: make([]Segment, cfg.Streams),
	}
	for s := range c.Segments {
		offset := base + s*cfg.SegmentSize
		c.Segments[s] = Segment{
			Chunk:    idx,
			Stream:   s,
			Offset:   offset,
			CopySize: copySize(n, offset, cfg.SegmentSize),
		}
	}
	return c
}

func copySize(n, offset, segmentSize int) int {
	return max(min(segmentSize, n-offset), 0)
}
