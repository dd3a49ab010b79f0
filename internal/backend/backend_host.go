//go:build !cuda

package backend

import "github.com/samcharles93/vecstream/internal/device"

const cudaEnabled = false

func newCUDA() (device.Device, error) {
	return nil, ErrCUDAUnavailable
}
