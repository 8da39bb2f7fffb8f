package sensors

import (
	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	ErrCPUReadFailed         = errors.ErrorCode("sensors_cpu_read_failed")
	ErrMemoryReadFailed      = errors.ErrorCode("sensors_memory_read_failed")
	ErrTemperatureReadFailed = errors.ErrorCode("sensors_temperature_read_failed")
	ErrPowerReadFailed       = errors.ErrorCode("sensors_power_read_failed")
	ErrPowerSourceMissing    = errors.ErrorCode("sensors_power_source_unavailable")
	ErrUnknownPowerSource    = errors.ErrorCode("sensors_unknown_power_source")
	ErrReadTimeout           = errors.ErrTimeout

	ErrNVMLInitFailed   = errors.ErrorCode("sensors_nvml_init_failed")
	ErrNVMLNoDevice     = errors.ErrorCode("sensors_nvml_no_device")
	ErrNVMLDeviceFailed = errors.ErrorCode("sensors_nvml_device_failed")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}
