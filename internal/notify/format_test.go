package notify_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/hostwatch/internal/monitor"
	"codeberg.org/mutker/hostwatch/internal/notify"
	"github.com/stretchr/testify/assert"
)

var at = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestFormatTemperatureAlerts(t *testing.T) {
	entered := notify.FormatAlert(monitor.Notification{
		Condition:  monitor.ConditionTemperature,
		Transition: monitor.Entered,
		Value:      90,
		Threshold:  85,
	}, "pve", at)

	assert.Equal(t, "🚨 ALERT pve - HIGH TEMPERATURE", entered.Title)
	assert.Contains(t, entered.Body, "90°C")
	assert.Contains(t, entered.Body, "85°C")
	assert.Equal(t, notify.ColorTemperature, entered.Color)
	assert.Equal(t, at, entered.Timestamp)

	cleared := notify.FormatAlert(monitor.Notification{
		Condition:  monitor.ConditionTemperature,
		Transition: monitor.Cleared,
		Value:      80,
		Threshold:  85,
	}, "pve", at)

	assert.Contains(t, cleared.Title, "TEMPERATURE NORMAL")
	assert.Contains(t, cleared.Body, "80°C")
	assert.Equal(t, notify.ColorNormal, cleared.Color)
}

func TestFormatCPUAlert(t *testing.T) {
	alert := notify.FormatAlert(monitor.Notification{
		Condition:  monitor.ConditionCPU,
		Transition: monitor.Entered,
		Value:      93,
		Threshold:  80,
	}, "pve", at)

	assert.Contains(t, alert.Title, "HIGH CPU")
	assert.Contains(t, alert.Body, "93%")
	assert.Contains(t, alert.Body, "80%")
	assert.Equal(t, notify.ColorCPU, alert.Color)
}

func TestFormatPowerAlerts(t *testing.T) {
	entered := notify.FormatAlert(monitor.Notification{
		Condition:  monitor.ConditionPower,
		Transition: monitor.Entered,
		Value:      53,
		Threshold:  30,
		Baseline:   40,
		Increase:   32.5,
	}, "pve", at)

	assert.Contains(t, entered.Body, "53W")
	assert.Contains(t, entered.Body, "+33%")
	assert.Contains(t, entered.Body, "baseline 40W")
	assert.Equal(t, notify.ColorPower, entered.Color)

	cleared := notify.FormatAlert(monitor.Notification{
		Condition:  monitor.ConditionPower,
		Transition: monitor.Cleared,
		Value:      50,
		Baseline:   40,
	}, "pve", at)

	assert.Contains(t, cleared.Title, "POWER DRAW NORMAL")
	assert.Contains(t, cleared.Body, "50W")
}

func TestStatusFields(t *testing.T) {
	fields := notify.StatusFields(monitor.Reading{
		TemperatureC: monitor.Float(47.25),
		CPUPercent:   12,
		Memory:       monitor.Memory{Percent: 63, UsedMB: 5120, TotalMB: 8192},
		PowerWatts:   monitor.Float(38),
	})

	assert.Equal(t, []string{"47.3°C", "12%", "63% (5120/8192 MB)", "38W"}, values(fields))
}

func TestStatusFieldsUnavailable(t *testing.T) {
	fields := notify.StatusFields(monitor.Reading{CPUPercent: 3})

	assert.Equal(t, "N/A", fields[0].Value)
	assert.Equal(t, "N/A", fields[3].Value)
}

func values(fields []notify.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Value)
	}
	return out
}
