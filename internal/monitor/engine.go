package monitor

import "codeberg.org/mutker/hostwatch/internal/logger"

// Engine decides, for each reading, which condition edges have been crossed.
type Engine struct {
	thresholds Thresholds
}

func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate applies the reading to state and returns the next state together
// with the notifications to emit, ordered temperature, CPU, power.
// The input state is never modified.
func (e *Engine) Evaluate(r Reading, state MonitorState) (MonitorState, []Notification) {
	next := state
	var out []Notification

	if r.TemperatureC != nil {
		temp := *r.TemperatureC
		limit := e.thresholds.TemperatureC
		if n, ok := edge(&next.TempHigh, temp > limit); ok {
			n.Condition = ConditionTemperature
			n.Value = temp
			n.Threshold = limit
			out = append(out, n)
		}
	}

	cpu := r.CPUPercent
	if n, ok := edge(&next.CPUHigh, cpu > e.thresholds.CPUPercent); ok {
		n.Condition = ConditionCPU
		n.Value = float64(cpu)
		n.Threshold = float64(e.thresholds.CPUPercent)
		out = append(out, n)
	}

	power := r.PowerWatts
	if power != nil && *power <= 0 {
		power = nil
	}

	// A non-positive baseline (e.g. from a hand-edited state file) is unset.
	if next.BaselinePower != nil && *next.BaselinePower <= 0 {
		next.BaselinePower = nil
	}

	// The first usable reading becomes the baseline and is never revised.
	if next.BaselinePower == nil && power != nil {
		next.BaselinePower = Float(*power)
		logger.Info().Float64("baseline_watts", *power).Msg("Power baseline established")
	}

	if power != nil && next.BaselinePower != nil {
		baseline := *next.BaselinePower
		increase := (*power - baseline) / baseline * 100
		limit := e.thresholds.PowerIncreasePercent
		if n, ok := edge(&next.PowerHigh, increase > limit); ok {
			n.Condition = ConditionPower
			n.Value = *power
			n.Threshold = limit
			n.Baseline = baseline
			n.Increase = increase
			out = append(out, n)
		}
	}

	return next, out
}

// edge flips flag when above disagrees with it and reports the transition.
func edge(flag *bool, above bool) (Notification, bool) {
	switch {
	case !*flag && above:
		*flag = true
		return Notification{Transition: Entered}, true
	case *flag && !above:
		*flag = false
		return Notification{Transition: Cleared}, true
	default:
		return Notification{}, false
	}
}
