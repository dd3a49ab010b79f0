package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/device/host"
)

const (
	Host = "host"
	CUDA = "cuda"
	Auto = "auto"
)

var ErrCUDAUnavailable = errors.New("cuda backend not available in this build")

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case "cpu":
		return Host, nil
	case Host, CUDA, Auto:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, host, or cuda)", backend)
	}
}

// Open returns a device for the named backend. Auto prefers CUDA when a
// device is present and falls back to the host device.
func Open(name string) (device.Device, error) {
	backend, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	switch backend {
	case Host:
		return newHost(), nil
	case CUDA:
		return newCUDA()
	default:
		if Has(CUDA) {
			if dev, err := newCUDA(); err == nil {
				return dev, nil
			}
		}
		return newHost(), nil
	}
}

// Describe returns display information for dev when the backend provides it.
func Describe(dev device.Device) device.Info {
	if d, ok := dev.(interface{ Info() device.Info }); ok {
		return d.Info()
	}
	return device.Info{Name: dev.Name(), Backend: dev.Name()}
}

func newHost() device.Device {
	return host.New(host.Options{})
}
