package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/hostwatch/internal/monitor"
)

// Recorder appends emitted transitions to the journal. Recent returns up
// to limit entries, newest first.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Entry is one emitted condition edge.
type Entry struct {
	Timestamp  time.Time
	Condition  string
	Transition string
	Value      float64
	Threshold  float64
	Baseline   float64
}

func EntryFrom(n monitor.Notification, at time.Time) Entry {
	return Entry{
		Timestamp:  at,
		Condition:  n.Condition.String(),
		Transition: n.Transition.String(),
		Value:      n.Value,
		Threshold:  n.Threshold,
		Baseline:   n.Baseline,
	}
}
