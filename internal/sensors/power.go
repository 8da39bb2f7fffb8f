package sensors

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/monitor"
)

const (
	PowerAuto     = "auto"
	PowerRAPL     = "rapl"
	PowerNVML     = "nvml"
	PowerEstimate = "estimate"
	PowerNone     = "none"

	microJoulesPerJoule = 1_000_000
)

// PowerMeter produces the host power draw in watts. The partial reading
// carries CPU and memory figures already sampled on the same tick.
// Peek measures like Power but must not move any interval a meter keeps.
type PowerMeter interface {
	Name() string
	Power(ctx context.Context, partial monitor.Reading) (*float64, error)
	Peek(ctx context.Context, partial monitor.Reading) (*float64, error)
	Close() error
}

// ValidPowerSource reports whether name is a recognised power source.
func ValidPowerSource(name string) bool {
	switch name {
	case PowerAuto, PowerRAPL, PowerNVML, PowerEstimate, PowerNone:
		return true
	default:
		return false
	}
}

// raplMeter derives watts from the RAPL package energy counter.
type raplMeter struct {
	path       string
	now        func() time.Time
	mu         sync.Mutex
	lastEnergy uint64
	lastTime   time.Time
	hasSample  bool
}

func newRAPLMeter(path string) *raplMeter {
	return &raplMeter{path: path, now: time.Now}
}

func (*raplMeter) Name() string { return PowerRAPL }

func (*raplMeter) Close() error { return nil }

func (m *raplMeter) readEnergy() (uint64, error) {
	data, err := os.ReadFile(filepath.Clean(m.path))
	if err != nil {
		return 0, errors.New().Wrap(ErrPowerReadFailed, err)
	}

	energy, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.New().Wrap(ErrPowerReadFailed, err)
	}

	return energy, nil
}

// Power returns nil until two counter samples are available, and again
// after the counter wraps.
func (m *raplMeter) Power(_ context.Context, _ monitor.Reading) (*float64, error) {
	return m.sample(true)
}

// Peek reports watts since the last committed sample.
func (m *raplMeter) Peek(_ context.Context, _ monitor.Reading) (*float64, error) {
	return m.sample(false)
}

func (m *raplMeter) sample(commit bool) (*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	energy, err := m.readEnergy()
	if err != nil {
		return nil, err
	}
	now := m.now()

	prevEnergy, prevTime, had := m.lastEnergy, m.lastTime, m.hasSample
	if commit {
		m.lastEnergy, m.lastTime, m.hasSample = energy, now, true
	}

	if !had || energy < prevEnergy {
		return nil, nil
	}

	elapsed := now.Sub(prevTime)
	if elapsed <= 0 {
		return nil, nil
	}

	watts := float64(energy-prevEnergy) / microJoulesPerJoule / elapsed.Seconds()
	watts = math.Round(watts*10) / 10

	return &watts, nil
}

// estimateMeter is a coarse fallback for hosts without an energy counter.
type estimateMeter struct{}

func (estimateMeter) Name() string { return PowerEstimate }

func (estimateMeter) Close() error { return nil }

func (estimateMeter) Power(_ context.Context, partial monitor.Reading) (*float64, error) {
	watts := math.Round((float64(partial.CPUPercent)*0.6 + float64(partial.Memory.Percent)*0.4) * 1.5)

	return &watts, nil
}

func (m estimateMeter) Peek(ctx context.Context, partial monitor.Reading) (*float64, error) {
	return m.Power(ctx, partial)
}

type noPower struct{}

func (noPower) Name() string { return PowerNone }

func (noPower) Close() error { return nil }

func (noPower) Power(context.Context, monitor.Reading) (*float64, error) {
	return nil, nil
}

func (noPower) Peek(context.Context, monitor.Reading) (*float64, error) {
	return nil, nil
}

// ProbePower selects the power meter for source. "auto" prefers the RAPL
// counter, then NVIDIA board power, then the estimate.
func ProbePower(source, raplPath string) (PowerMeter, error) {
	errFactory := errors.New()

	switch source {
	case PowerNone:
		return noPower{}, nil
	case PowerEstimate:
		return estimateMeter{}, nil
	case PowerRAPL:
		if !readable(raplPath) {
			return nil, errFactory.WithData(ErrPowerSourceMissing, raplPath)
		}
		return newRAPLMeter(raplPath), nil
	case PowerNVML:
		return newNVMLMeter()
	case PowerAuto:
		if readable(raplPath) {
			logger.Info().Str("path", raplPath).Msg("Using RAPL energy counter for power")
			return newRAPLMeter(raplPath), nil
		}
		meter, err := newNVMLMeter()
		if err == nil {
			logger.Info().Int("devices", len(meter.devices)).Msg("Using NVIDIA board power")
			return meter, nil
		}
		logger.Debug().Err(err).Msg("NVML power unavailable")
		logger.Warn().Msg("No power counter found, falling back to estimated power draw")
		return estimateMeter{}, nil
	default:
		return nil, errFactory.WithData(ErrUnknownPowerSource, source)
	}
}

func readable(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return false
	}
	f.Close()

	return true
}
