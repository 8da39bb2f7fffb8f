package sensors

import (
	"context"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/shirou/gopsutil/v3/cpu"
)

// tickCategory is one of the kernel's CPU time buckets.
type tickCategory int

const (
	tickUser tickCategory = iota
	tickNice
	tickSystem
	tickIdle
	tickIOWait
	tickIRQ
	tickSoftIRQ
	tickSteal
)

// Guest time is already accounted in user and nice.
var tickCategories = [...]tickCategory{
	tickUser, tickNice, tickSystem, tickIdle, tickIOWait, tickIRQ, tickSoftIRQ, tickSteal,
}

func (c tickCategory) seconds(t cpu.TimesStat) float64 {
	switch c {
	case tickUser:
		return t.User
	case tickNice:
		return t.Nice
	case tickSystem:
		return t.System
	case tickIdle:
		return t.Idle
	case tickIOWait:
		return t.Iowait
	case tickIRQ:
		return t.Irq
	case tickSoftIRQ:
		return t.Softirq
	case tickSteal:
		return t.Steal
	default:
		return 0
	}
}

func (c tickCategory) idle() bool {
	return c == tickIdle || c == tickIOWait
}

type cpuCounters struct {
	busy float64
	idle float64
}

func (c cpuCounters) total() float64 {
	return c.busy + c.idle
}

func accumulate(t cpu.TimesStat) cpuCounters {
	var counters cpuCounters
	for _, category := range tickCategories {
		if category.idle() {
			counters.idle += category.seconds(t)
		} else {
			counters.busy += category.seconds(t)
		}
	}

	return counters
}

type cpuTimesFunc func(ctx context.Context) (cpu.TimesStat, error)

func aggregateCPUTimes(ctx context.Context) (cpu.TimesStat, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	if len(times) == 0 {
		return cpu.TimesStat{}, errors.New().WithMessage(ErrCPUReadFailed, "no aggregate cpu times")
	}

	return times[0], nil
}

// cpuSampler reports utilisation over the interval since its previous
// committed sample. The very first call has no previous sample and reports
// the average since boot.
type cpuSampler struct {
	times       cpuTimesFunc
	last        cpuCounters
	lastPercent int
}

func newCPUSampler(times cpuTimesFunc) *cpuSampler {
	return &cpuSampler{times: times}
}

// Percent samples and makes the sample the base of the next interval.
func (s *cpuSampler) Percent(ctx context.Context) (int, error) {
	return s.sample(ctx, true)
}

// Peek reports utilisation since the last committed sample and leaves the
// sampler untouched.
func (s *cpuSampler) Peek(ctx context.Context) (int, error) {
	return s.sample(ctx, false)
}

func (s *cpuSampler) sample(ctx context.Context, commit bool) (int, error) {
	t, err := s.times(ctx)
	if err != nil {
		return 0, errors.New().Wrap(ErrCPUReadFailed, err)
	}

	current := accumulate(t)
	total := current.total() - s.last.total()
	idle := current.idle - s.last.idle

	percent := s.lastPercent
	if total > 0 {
		percent = clamp(100-int(100*idle/total), 0, 100)
	}

	if commit {
		s.last = current
		s.lastPercent = percent
	}

	return percent, nil
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
