//go:build cuda

package backend

import "github.com/samcharles93/vecstream/internal/device/cuda"

func Has(name string) bool {
	switch name {
	case CUDA:
		return cuda.Available()
	default:
		return name == Host
	}
}
