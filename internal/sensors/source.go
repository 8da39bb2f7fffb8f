package sensors

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Source produces a point-in-time reading of the host. Read is the
// periodic sample: rates are measured since the previous Read. Snapshot
// measures over the same window without moving it, so ad hoc queries do
// not shorten the next periodic interval.
type Source interface {
	Read(ctx context.Context) (monitor.Reading, error)
	Snapshot(ctx context.Context) (monitor.Reading, error)
}

type Options struct {
	ThermalZone string
	RAPLPath    string
	PowerSource string
}

// HostSource reads the local machine. Reads are serialised because the CPU
// sampler and the energy counter both keep the previous sample.
type HostSource struct {
	mu     sync.Mutex
	temp   TemperatureProbe
	cpu    *cpuSampler
	memory memoryFunc
	power  PowerMeter
	now    func() time.Time
}

// Probe inspects the host once and wires the readers it supports.
func Probe(ctx context.Context, opts Options) (*HostSource, error) {
	power, err := ProbePower(opts.PowerSource, opts.RAPLPath)
	if err != nil {
		return nil, err
	}

	source := &HostSource{
		temp:   probeTemperature(ctx, opts.ThermalZone, host.SensorsTemperaturesWithContext),
		cpu:    newCPUSampler(aggregateCPUTimes),
		memory: mem.VirtualMemoryWithContext,
		power:  power,
		now:    time.Now,
	}

	logger.Info().Str("power_source", power.Name()).Msg("Host sensors probed")

	return source, nil
}

func (s *HostSource) PowerSource() string {
	return s.power.Name()
}

// Read samples every metric. CPU and memory are mandatory; temperature and
// power are reported as absent when they cannot be read.
func (s *HostSource) Read(ctx context.Context) (monitor.Reading, error) {
	return s.read(ctx, true)
}

// Snapshot reads like Read but leaves the CPU and energy baselines alone.
func (s *HostSource) Snapshot(ctx context.Context) (monitor.Reading, error) {
	return s.read(ctx, false)
}

func (s *HostSource) read(ctx context.Context, commit bool) (monitor.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return monitor.Reading{}, errFactory.Wrap(ErrReadTimeout, err)
	}

	reading := monitor.Reading{Timestamp: s.now()}

	temp, err := s.temp.Temperature(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Temperature unavailable")
	}
	reading.TemperatureC = temp

	cpuPercent, power := s.cpu.Percent, s.power.Power
	if !commit {
		cpuPercent, power = s.cpu.Peek, s.power.Peek
	}

	if reading.CPUPercent, err = cpuPercent(ctx); err != nil {
		return monitor.Reading{}, err
	}

	if reading.Memory, err = readMemory(ctx, s.memory); err != nil {
		return monitor.Reading{}, err
	}

	watts, err := power(ctx, reading)
	if err != nil {
		logger.Warn().Err(err).Str("power_source", s.power.Name()).Msg("Power unavailable")
	}
	reading.PowerWatts = watts

	if err := ctx.Err(); err != nil {
		return monitor.Reading{}, errFactory.Wrap(ErrReadTimeout, err)
	}

	return reading, nil
}

func (s *HostSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.power.Close()
}
