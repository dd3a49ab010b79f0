package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/vecstream/internal/dataset"
)

const envVecstreamDataDir = "VECSTREAM_DATA_DIR"

// resolveInputs splits the -i flag into two input paths. A single directory
// expands to the generated input0/input1 pair; when neither is given the
// VECSTREAM_DATA_DIR directory is used.
func resolveInputs(inputs []string) (string, string, error) {
	var parts []string
	for _, in := range inputs {
		for p := range strings.SplitSeq(in, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, filepath.Clean(p))
			}
		}
	}

	if len(parts) == 0 {
		dir := strings.TrimSpace(os.Getenv(envVecstreamDataDir))
		if dir == "" {
			return "", "", fmt.Errorf("-i is required unless %s is set", envVecstreamDataDir)
		}
		parts = []string{dir}
	}

	if len(parts) == 1 {
		st, err := os.Stat(parts[0])
		if err != nil {
			return "", "", err
		}
		if !st.IsDir() {
			return "", "", errors.New("-i needs two input files or one dataset directory")
		}
		paths := dataset.PathsIn(parts[0])
		return paths.Input0, paths.Input1, nil
	}
	if len(parts) != 2 {
		return "", "", fmt.Errorf("-i takes exactly two input files (got %d)", len(parts))
	}
	return parts[0], parts[1], nil
}

// resolveExpected returns the expected-output path: the explicit flag, or
// output.raw next to the inputs when it exists.
func resolveExpected(flag, input0 string) string {
	if flag = strings.TrimSpace(flag); flag != "" {
		return filepath.Clean(flag)
	}
	candidate := filepath.Join(filepath.Dir(input0), dataset.OutputFile)
	if filepath.Base(input0) != dataset.Input0File {
		return ""
	}
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}
