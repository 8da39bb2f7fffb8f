package sensors

import (
	"context"
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(samples ...cpu.TimesStat) cpuTimesFunc {
	i := 0
	return func(context.Context) (cpu.TimesStat, error) {
		s := samples[i]
		if i < len(samples)-1 {
			i++
		}
		return s, nil
	}
}

func TestAccumulateCoversEveryCategory(t *testing.T) {
	counters := accumulate(cpu.TimesStat{
		User: 1, Nice: 2, System: 3, Idle: 4, Iowait: 5, Irq: 6, Softirq: 7, Steal: 8, Guest: 100,
	})

	assert.Equal(t, 27.0, counters.busy)
	assert.Equal(t, 9.0, counters.idle)
}

func TestFirstSampleUsesSinceBoot(t *testing.T) {
	sampler := newCPUSampler(sequence(cpu.TimesStat{User: 25, Idle: 75}))

	pct, err := sampler.Percent(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 25, pct)
}

func TestPercentIsDeltaBetweenSamples(t *testing.T) {
	sampler := newCPUSampler(sequence(
		cpu.TimesStat{User: 100, Idle: 900},
		cpu.TimesStat{User: 190, Idle: 910},
	))

	_, err := sampler.Percent(context.Background())
	require.NoError(t, err)
	pct, err := sampler.Percent(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 90, pct)
}

func TestNoElapsedTicksRepeatsLastPercent(t *testing.T) {
	sampler := newCPUSampler(sequence(
		cpu.TimesStat{User: 40, Idle: 60},
		cpu.TimesStat{User: 40, Idle: 60},
	))

	first, _ := sampler.Percent(context.Background())
	second, err := sampler.Percent(context.Background())

	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCPUReadFailure(t *testing.T) {
	sampler := newCPUSampler(func(context.Context) (cpu.TimesStat, error) {
		return cpu.TimesStat{}, stderrors.New("no procfs")
	})

	_, err := sampler.Percent(context.Background())

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrCPUReadFailed))
}

func TestPeekLeavesIntervalAlone(t *testing.T) {
	sampler := newCPUSampler(sequence(
		cpu.TimesStat{User: 1000, Idle: 9000},
		cpu.TimesStat{User: 1059.99, Idle: 9240},
		cpu.TimesStat{User: 1060, Idle: 9240},
	))
	ctx := context.Background()

	_, err := sampler.Percent(ctx)
	require.NoError(t, err)

	peeked, err := sampler.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, peeked)

	pct, err := sampler.Percent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, pct, "interval still starts at the previous Percent")
}
