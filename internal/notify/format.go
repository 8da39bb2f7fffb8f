package notify

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"codeberg.org/mutker/hostwatch/internal/monitor"
)

const notAvailable = "N/A"

// Field is one labelled line of a status report.
type Field struct {
	Name  string
	Value string
}

// FormatAlert renders a condition edge for the recipient.
func FormatAlert(n monitor.Notification, host string, at time.Time) Alert {
	alert := Alert{Timestamp: at, Color: ColorNormal}

	switch n.Condition {
	case monitor.ConditionTemperature:
		if n.Transition == monitor.Entered {
			alert.Title = "HIGH TEMPERATURE"
			alert.Body = fmt.Sprintf("⚠️ CPU temperature: **%s°C** (threshold: %s°C)", number(n.Value), number(n.Threshold))
			alert.Color = ColorTemperature
		} else {
			alert.Title = "TEMPERATURE NORMAL"
			alert.Body = fmt.Sprintf("✅ CPU temperature back to normal: %s°C", number(n.Value))
		}
	case monitor.ConditionCPU:
		if n.Transition == monitor.Entered {
			alert.Title = "HIGH CPU"
			alert.Body = fmt.Sprintf("⚠️ CPU usage: **%s%%** (threshold: %s%%)", number(n.Value), number(n.Threshold))
			alert.Color = ColorCPU
		} else {
			alert.Title = "CPU NORMAL"
			alert.Body = fmt.Sprintf("✅ CPU usage back to normal: %s%%", number(n.Value))
		}
	case monitor.ConditionPower:
		if n.Transition == monitor.Entered {
			alert.Title = "HIGH POWER DRAW"
			alert.Body = fmt.Sprintf("⚠️ Power draw: **%sW** (+%d%% over baseline %sW, threshold: +%s%%)",
				number(n.Value), int(math.Round(n.Increase)), number(n.Baseline), number(n.Threshold))
			alert.Color = ColorPower
		} else {
			alert.Title = "POWER DRAW NORMAL"
			alert.Body = fmt.Sprintf("✅ Power draw back to normal: %sW (baseline %sW)", number(n.Value), number(n.Baseline))
		}
	}

	alert.Title = fmt.Sprintf("🚨 ALERT %s - %s", host, alert.Title)

	return alert
}

// StatusFields renders the four labelled status values.
func StatusFields(r monitor.Reading) []Field {
	temp := notAvailable
	if r.TemperatureC != nil {
		temp = number(*r.TemperatureC) + "°C"
	}

	power := notAvailable
	if r.PowerWatts != nil {
		power = number(*r.PowerWatts) + "W"
	}

	return []Field{
		{Name: "🌡️ CPU temperature", Value: temp},
		{Name: "⚙️ CPU usage", Value: fmt.Sprintf("%d%%", r.CPUPercent)},
		{Name: "💾 Memory", Value: fmt.Sprintf("%d%% (%d/%d MB)", r.Memory.Percent, r.Memory.UsedMB, r.Memory.TotalMB)},
		{Name: "⚡ Power draw", Value: power},
	}
}

// number prints v with at most one decimal and no trailing zeros.
func number(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
