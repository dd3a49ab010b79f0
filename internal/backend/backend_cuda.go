//go:build cuda

package backend

import (
	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/device/cuda"
)

const cudaEnabled = true

func newCUDA() (device.Device, error) {
	return cuda.New(0)
}
