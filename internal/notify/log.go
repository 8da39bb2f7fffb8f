package notify

import (
	"context"

	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/monitor"
)

// LogNotifier writes every message to the log instead of delivering it.
type LogNotifier struct{}

func (LogNotifier) SendAlert(_ context.Context, alert Alert) error {
	logger.Warn().
		Str("title", alert.Title).
		Str("body", alert.Body).
		Msg("Alert")
	return nil
}

func (LogNotifier) SendStatusReport(_ context.Context, reading monitor.Reading) error {
	event := logger.Info()
	for _, f := range StatusFields(reading) {
		event.Str(f.Name, f.Value)
	}
	event.Msg("Status report")
	return nil
}
