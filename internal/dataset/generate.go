package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

const (
	Input0File = "input0.raw"
	Input1File = "input1.raw"
	OutputFile = "output.raw"
)

// Paths lists the files Generate writes into dir.
type Paths struct {
	Input0 string
	Input1 string
	Output string
}

func PathsIn(dir string) Paths {
	return Paths{
		Input0: filepath.Join(dir, Input0File),
		Input1: filepath.Join(dir, Input1File),
		Output: filepath.Join(dir, OutputFile),
	}
}

// Generate writes two random input vectors of length n and their sum into dir.
func Generate(dir string, n int, seed int64) (Paths, error) {
	if n < 0 {
		return Paths{}, fmt.Errorf("length must be >= 0 (got %d)", n)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, err
	}
	r := rand.New(rand.NewSource(seed))
	in1 := make([]float32, n)
	in2 := make([]float32, n)
	for i := range in1 {
		in1[i] = r.Float32() * 100
		in2[i] = r.Float32() * 100
	}
	out, err := Reference(in1, in2)
	if err != nil {
		return Paths{}, err
	}

	p := PathsIn(dir)
	for _, f := range []struct {
		path string
		data []float32
	}{
		{p.Input0, in1},
		{p.Input1, in2},
		{p.Output, out},
	} {
		if err := Export(f.path, f.data); err != nil {
			return Paths{}, fmt.Errorf("write %s: %w", f.path, err)
		}
	}
	return p, nil
}
