package sensors

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func writeCounter(t *testing.T, path, value string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(value+"\n"), 0o600))
}

func TestRAPLMeterDerivesWatts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy_uj")
	clock := &fakeClock{t: time.Unix(1000, 0)}
	meter := newRAPLMeter(path)
	meter.now = clock.now

	writeCounter(t, path, "1000000000")
	watts, err := meter.Power(context.Background(), monitor.Reading{})
	require.NoError(t, err)
	assert.Nil(t, watts, "first sample has no interval")

	clock.t = clock.t.Add(30 * time.Second)
	writeCounter(t, path, "2200000000")
	watts, err = meter.Power(context.Background(), monitor.Reading{})
	require.NoError(t, err)
	require.NotNil(t, watts)
	assert.Equal(t, 40.0, *watts)
}

func TestRAPLMeterCounterWrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy_uj")
	clock := &fakeClock{t: time.Unix(1000, 0)}
	meter := newRAPLMeter(path)
	meter.now = clock.now

	writeCounter(t, path, "5000000")
	_, _ = meter.Power(context.Background(), monitor.Reading{})

	clock.t = clock.t.Add(time.Second)
	writeCounter(t, path, "100")
	watts, err := meter.Power(context.Background(), monitor.Reading{})
	require.NoError(t, err)
	assert.Nil(t, watts)

	clock.t = clock.t.Add(time.Second)
	writeCounter(t, path, "10000100")
	watts, err = meter.Power(context.Background(), monitor.Reading{})
	require.NoError(t, err)
	require.NotNil(t, watts)
	assert.Equal(t, 10.0, *watts)
}

func TestRAPLMeterReadError(t *testing.T) {
	meter := newRAPLMeter(filepath.Join(t.TempDir(), "missing"))

	_, err := meter.Power(context.Background(), monitor.Reading{})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrPowerReadFailed))
}

func TestEstimateMeter(t *testing.T) {
	watts, err := estimateMeter{}.Power(context.Background(), monitor.Reading{
		CPUPercent: 50,
		Memory:     monitor.Memory{Percent: 40},
	})

	require.NoError(t, err)
	require.NotNil(t, watts)
	assert.Equal(t, 69.0, *watts)
}

func TestProbePower(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "energy_uj")
	writeCounter(t, counter, "1")

	meter, err := ProbePower(PowerAuto, counter)
	require.NoError(t, err)
	assert.Equal(t, PowerRAPL, meter.Name())

	meter, err = ProbePower(PowerEstimate, counter)
	require.NoError(t, err)
	assert.Equal(t, PowerEstimate, meter.Name())

	meter, err = ProbePower(PowerNone, "")
	require.NoError(t, err)
	assert.Equal(t, PowerNone, meter.Name())

	_, err = ProbePower(PowerRAPL, filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.HasCode(err, ErrPowerSourceMissing))

	_, err = ProbePower("solar", "")
	assert.True(t, errors.HasCode(err, ErrUnknownPowerSource))
}

func TestValidPowerSource(t *testing.T) {
	for _, name := range []string{PowerAuto, PowerRAPL, PowerNVML, PowerEstimate, PowerNone} {
		assert.True(t, ValidPowerSource(name), name)
	}
	assert.False(t, ValidPowerSource("battery"))
}

func TestRAPLMeterPeekLeavesIntervalAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy_uj")
	clock := &fakeClock{t: time.Unix(1000, 0)}
	meter := newRAPLMeter(path)
	meter.now = clock.now
	ctx := context.Background()

	writeCounter(t, path, "1000000000")
	watts, err := meter.Peek(ctx, monitor.Reading{})
	require.NoError(t, err)
	assert.Nil(t, watts, "no committed sample yet")

	_, err = meter.Power(ctx, monitor.Reading{})
	require.NoError(t, err)

	clock.t = clock.t.Add(29 * time.Second)
	writeCounter(t, path, "3900000000")
	watts, err = meter.Peek(ctx, monitor.Reading{})
	require.NoError(t, err)
	require.NotNil(t, watts)
	assert.Equal(t, 100.0, *watts)

	clock.t = clock.t.Add(time.Second)
	writeCounter(t, path, "3940000000")
	watts, err = meter.Power(ctx, monitor.Reading{})
	require.NoError(t, err)
	require.NotNil(t, watts)
	assert.Equal(t, 98.0, *watts)
}
