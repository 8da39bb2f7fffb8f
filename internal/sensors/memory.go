package sensors

import (
	"context"
	"math"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerMB = 1024 * 1024

type memoryFunc func(ctx context.Context) (*mem.VirtualMemoryStat, error)

func readMemory(ctx context.Context, read memoryFunc) (monitor.Memory, error) {
	vm, err := read(ctx)
	if err != nil {
		return monitor.Memory{}, errors.New().Wrap(ErrMemoryReadFailed, err)
	}
	if vm == nil || vm.Total == 0 {
		return monitor.Memory{}, errors.New().WithMessage(ErrMemoryReadFailed, "total memory is zero")
	}

	used := vm.Total - vm.Available
	if vm.Available > vm.Total {
		used = 0
	}

	return monitor.Memory{
		Percent: int(math.Round(float64(used) / float64(vm.Total) * 100)),
		UsedMB:  int(math.Round(float64(used) / bytesPerMB)),
		TotalMB: int(math.Round(float64(vm.Total) / bytesPerMB)),
	}, nil
}
