package sensors

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"github.com/shirou/gopsutil/v3/host"
)

// TemperatureProbe returns the CPU temperature in °C, or nil when the host
// exposes no usable sensor.
type TemperatureProbe interface {
	Temperature(ctx context.Context) (*float64, error)
}

type thermalZone struct {
	path string
}

func (z thermalZone) Temperature(_ context.Context) (*float64, error) {
	data, err := os.ReadFile(filepath.Clean(z.path))
	if err != nil {
		return nil, errors.New().Wrap(ErrTemperatureReadFailed, err)
	}

	milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return nil, errors.New().Wrap(ErrTemperatureReadFailed, err)
	}

	celsius := math.Round(milli/100) / 10

	return &celsius, nil
}

type sensorsFunc func(ctx context.Context) ([]host.TemperatureStat, error)

// hwmonSensors picks the hottest CPU package or core sensor.
type hwmonSensors struct {
	read sensorsFunc
}

var cpuSensorKeys = []string{"coretemp", "k10temp", "zenpower", "cpu", "package", "tctl", "tdie"}

func (h hwmonSensors) Temperature(ctx context.Context) (*float64, error) {
	temps, err := h.read(ctx)
	// gopsutil returns partial results alongside warnings
	if len(temps) == 0 {
		if err != nil {
			return nil, errors.New().Wrap(ErrTemperatureReadFailed, err)
		}
		return nil, nil
	}

	var hottest *float64
	for _, t := range temps {
		if !isCPUSensor(t.SensorKey) || t.Temperature <= 0 {
			continue
		}
		if hottest == nil || t.Temperature > *hottest {
			v := math.Round(t.Temperature*10) / 10
			hottest = &v
		}
	}

	return hottest, nil
}

func isCPUSensor(key string) bool {
	key = strings.ToLower(key)
	for _, k := range cpuSensorKeys {
		if strings.Contains(key, k) {
			return true
		}
	}

	return false
}

type noTemperature struct{}

func (noTemperature) Temperature(context.Context) (*float64, error) {
	return nil, nil
}

func probeTemperature(ctx context.Context, zonePath string, sensors sensorsFunc) TemperatureProbe {
	if zonePath != "" {
		if _, err := os.Stat(zonePath); err == nil {
			logger.Info().Str("path", zonePath).Msg("Using thermal zone for CPU temperature")
			return thermalZone{path: zonePath}
		}
	}

	probe := hwmonSensors{read: sensors}
	if temp, _ := probe.Temperature(ctx); temp != nil {
		logger.Info().Msg("Using hardware monitor sensors for CPU temperature")
		return probe
	}

	logger.Warn().Msg("No CPU temperature sensor found, temperature will be reported as unavailable")

	return noTemperature{}
}
