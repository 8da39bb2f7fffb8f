package monitor

import "time"

// Reading is one tick's snapshot of the host. Nil pointers mark metrics
// that could not be read this tick.
type Reading struct {
	Timestamp    time.Time
	TemperatureC *float64
	CPUPercent   int
	Memory       Memory
	PowerWatts   *float64
}

type Memory struct {
	Percent int
	UsedMB  int
	TotalMB int
}

// MonitorState is the durable record of which conditions are currently
// alerted and the learned power baseline.
type MonitorState struct {
	TempHigh      bool     `json:"temp_high"`
	CPUHigh       bool     `json:"cpu_high"`
	PowerHigh     bool     `json:"power_high"`
	BaselinePower *float64 `json:"baseline_power"`
}

// Equal compares two states, including the baseline value.
func (s MonitorState) Equal(o MonitorState) bool {
	if s.TempHigh != o.TempHigh || s.CPUHigh != o.CPUHigh || s.PowerHigh != o.PowerHigh {
		return false
	}
	if s.BaselinePower == nil || o.BaselinePower == nil {
		return s.BaselinePower == nil && o.BaselinePower == nil
	}

	return *s.BaselinePower == *o.BaselinePower
}

type Thresholds struct {
	TemperatureC         float64
	CPUPercent           int
	PowerIncreasePercent float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureC:         85,
		CPUPercent:           80,
		PowerIncreasePercent: 30,
	}
}

type Condition int

const (
	ConditionTemperature Condition = iota
	ConditionCPU
	ConditionPower
)

func (c Condition) String() string {
	switch c {
	case ConditionTemperature:
		return "temperature"
	case ConditionCPU:
		return "cpu"
	case ConditionPower:
		return "power"
	default:
		return "unknown"
	}
}

type Transition int

const (
	Entered Transition = iota
	Cleared
)

func (t Transition) String() string {
	if t == Entered {
		return "entered"
	}

	return "cleared"
}

// Notification describes one edge of a condition.
// For power, Threshold is the relative limit in percent, Baseline the
// reference draw and Increase the measured increase over it.
type Notification struct {
	Condition  Condition
	Transition Transition
	Value      float64
	Threshold  float64
	Baseline   float64
	Increase   float64
}

// Float returns a pointer to v, for building readings.
func Float(v float64) *float64 {
	return &v
}
