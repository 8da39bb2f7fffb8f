package sensors

import (
	"context"
	"sync"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const milliWattsToWatts = 1000

// nvmlMeter sums the board power draw of every NVIDIA GPU.
type nvmlMeter struct {
	mu      sync.Mutex
	devices []nvml.Device
	closed  bool
}

func newNVMLMeter() (*nvmlMeter, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, errFactory.Wrap(ErrNVMLInitFailed, newNVMLError(ret))
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return nil, errFactory.Wrap(ErrNVMLDeviceFailed, newNVMLError(ret))
	}
	if count == 0 {
		nvml.Shutdown()
		return nil, errFactory.New(ErrNVMLNoDevice)
	}

	devices := make([]nvml.Device, 0, count)
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			nvml.Shutdown()
			return nil, errFactory.WithData(ErrNVMLDeviceFailed, struct {
				Index int
				Error string
			}{
				Index: i,
				Error: nvml.ErrorString(ret),
			})
		}
		devices = append(devices, device)
	}

	return &nvmlMeter{devices: devices}, nil
}

func (*nvmlMeter) Name() string { return PowerNVML }

func (m *nvmlMeter) Power(_ context.Context, _ monitor.Reading) (*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil
	}

	var total float64
	for _, device := range m.devices {
		usage, ret := device.GetPowerUsage()
		if ret != nvml.SUCCESS {
			return nil, errors.New().Wrap(ErrPowerReadFailed, newNVMLError(ret))
		}
		total += float64(usage) / milliWattsToWatts
	}

	return &total, nil
}

// Peek is Power; board power is instantaneous.
func (m *nvmlMeter) Peek(ctx context.Context, partial monitor.Reading) (*float64, error) {
	return m.Power(ctx, partial)
}

func (m *nvmlMeter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return errors.New().Wrap(errors.ErrShutdownFailed, newNVMLError(ret))
	}

	return nil
}
