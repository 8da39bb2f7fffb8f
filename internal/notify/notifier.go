package notify

import (
	"context"
	"time"

	"codeberg.org/mutker/hostwatch/internal/monitor"
)

// Severity colours used for embeds.
const (
	ColorTemperature = 0xff6b6b
	ColorCPU         = 0xffa94d
	ColorPower       = 0xff922b
	ColorNormal      = 0x51cf66
)

// Alert is a formatted, transport-neutral alert message.
type Alert struct {
	Title     string
	Body      string
	Color     int
	Timestamp time.Time
}

// Notifier delivers messages to the single configured recipient.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
	SendStatusReport(ctx context.Context, reading monitor.Reading) error
}

// Command is an inbound request from the recipient.
type Command struct {
	Name       string
	ReceivedAt time.Time
}

const CommandStatus = "status"
