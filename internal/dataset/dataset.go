// Package dataset reads and writes vector datasets in the wb text format
// (an element count followed by that many values) or as JSON arrays, and
// checks computed results against an expected solution.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var ErrMalformed = errors.New("malformed dataset")

// Import reads a vector from path. Files ending in .json hold a JSON array;
// anything else is read as wb text.
func Import(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := DecodeJSON(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return data, nil
	}
	data, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Decode parses wb text. The leading count must match the number of values.
func Decode(r io.Reader) ([]float32, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: missing element count", ErrMalformed)
	}
	n, err := strconv.Atoi(sc.Text())
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad element count %q", ErrMalformed, sc.Text())
	}

	data := make([]float32, 0, min(n, 1<<20))
	for sc.Scan() {
		if len(data) == n {
			return nil, fmt.Errorf("%w: more than %d values", ErrMalformed, n)
		}
		v, err := strconv.ParseFloat(sc.Text(), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", ErrMalformed, len(data), err)
		}
		data = append(data, float32(v))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: header says %d values, found %d", ErrMalformed, n, len(data))
	}
	return data, nil
}

func DecodeJSON(r io.Reader) ([]float32, error) {
	var data []float32
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if data == nil {
		data = []float32{}
	}
	return data, nil
}

// Export writes data to path in the format implied by its extension.
func Export(path string, data []float32) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return EncodeJSON(f, data)
	}
	return Encode(f, data)
}

// Encode writes wb text with values formatted to round-trip exactly.
func Encode(w io.Writer, data []float32) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	buf = strconv.AppendInt(buf, int64(len(data)), 10)
	buf = append(buf, '\n')
	if _, err := bw.Write(buf); err != nil {
		return err
	}
	for _, v := range data {
		buf = strconv.AppendFloat(buf[:0], float64(v), 'g', -1, 32)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func EncodeJSON(w io.Writer, data []float32) error {
	if data == nil {
		data = []float32{}
	}
	return json.NewEncoder(w).Encode(data)
}
