package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/journal"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"codeberg.org/mutker/hostwatch/internal/notify"
	"codeberg.org/mutker/hostwatch/internal/sensors"
	"codeberg.org/mutker/hostwatch/internal/state"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultReadTimeout = 5 * time.Second
)

type Config struct {
	Interval    time.Duration
	ReadTimeout time.Duration
	Host        string
}

// Deps are the collaborators a Scheduler drives. Journal may be nil.
type Deps struct {
	Engine   *monitor.Engine
	Source   sensors.Source
	Notifier notify.Notifier
	Store    state.Store
	Journal  journal.Recorder
}

// Scheduler owns the single mutable MonitorState. Ticks are serialised;
// status queries never touch the state.
type Scheduler struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	mu    sync.Mutex
	state monitor.MonitorState
}

func New(cfg Config, deps Deps, initial monitor.MonitorState) (*Scheduler, error) {
	errFactory := errors.New()

	if cfg.Interval <= 0 {
		return nil, errFactory.WithData(ErrInvalidInterval, struct {
			Interval time.Duration
		}{
			Interval: cfg.Interval,
		})
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	if deps.Engine == nil || deps.Source == nil || deps.Notifier == nil || deps.Store == nil {
		return nil, errFactory.New(ErrMissingDepend)
	}

	return &Scheduler{
		cfg:   cfg,
		deps:  deps,
		now:   time.Now,
		state: initial,
	}, nil
}

// State returns a copy of the in-memory state.
func (s *Scheduler) State() monitor.MonitorState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	if st.BaselinePower != nil {
		st.BaselinePower = monitor.Float(*st.BaselinePower)
	}
	return st
}

// Run ticks once immediately and then every interval until ctx is done.
// A slow tick delays the next one; ticks never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info().
		Dur("interval", s.cfg.Interval).
		Str("host", s.cfg.Host).
		Msg("Scheduler started")

	s.runTick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	if err := s.Tick(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("Tick aborted")
			return
		}
		logger.Error().Err(err).Msg("Tick aborted")
	}
}

// Tick runs one read/evaluate/notify/persist cycle. Only a failed read or a
// panic aborts it; delivery, journal and save failures are logged.
func (s *Scheduler) Tick(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errFactory := errors.New()

	defer func() {
		if r := recover(); r != nil {
			err = errFactory.WithData(ErrTickFailed, struct {
				Panic string
			}{
				Panic: fmt.Sprint(r),
			})
		}
	}()

	reading, err := s.read(ctx, s.deps.Source.Read)
	if err != nil {
		return errFactory.Wrap(ErrReadMetrics, err)
	}

	next, notifications := s.deps.Engine.Evaluate(reading, s.state)
	s.state = next

	for _, n := range notifications {
		s.dispatch(ctx, n, reading.Timestamp)
	}

	if err := s.deps.Store.Save(next); err != nil {
		warn(err).Msg("Failed to persist monitor state")
	}

	logReading(reading)

	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, n monitor.Notification, at time.Time) {
	alert := notify.FormatAlert(n, s.cfg.Host, at)

	logger.Info().
		Str("condition", n.Condition.String()).
		Str("transition", n.Transition.String()).
		Float64("value", n.Value).
		Msg(alert.Title)

	if err := s.deps.Notifier.SendAlert(ctx, alert); err != nil {
		warn(err).
			Str("condition", n.Condition.String()).
			Msg("Failed to deliver alert")
	}

	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.Record(ctx, journal.EntryFrom(n, at)); err != nil {
		warn(err).Msg("Failed to journal transition")
	}
}

// Status answers an on-demand query with a fresh snapshot. It bypasses the
// engine, leaves the monitor state alone and does not move the sampling
// window the next tick measures over.
func (s *Scheduler) Status(ctx context.Context) error {
	errFactory := errors.New()

	reading, err := s.read(ctx, s.deps.Source.Snapshot)
	if err != nil {
		return errFactory.Wrap(ErrStatusQuery, err)
	}

	if err := s.deps.Notifier.SendStatusReport(ctx, reading); err != nil {
		return errFactory.Wrap(ErrStatusQuery, err)
	}

	logger.Debug().Msg("Status report sent")

	return nil
}

type readResult struct {
	reading monitor.Reading
	err     error
}

// read bounds a source call by the read timeout even when the source
// ignores its context. A panicking source surfaces as an error.
func (s *Scheduler) read(ctx context.Context, sample func(context.Context) (monitor.Reading, error)) (monitor.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	result := make(chan readResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- readResult{err: errors.New().WithData(ErrTickFailed, struct {
					Panic string
				}{
					Panic: fmt.Sprint(r),
				})}
			}
		}()

		r, err := sample(ctx)
		result <- readResult{reading: r, err: err}
	}()

	select {
	case res := <-result:
		if res.err != nil {
			return monitor.Reading{}, res.err
		}
		if res.reading.Timestamp.IsZero() {
			res.reading.Timestamp = s.now()
		}
		return res.reading, nil
	case <-ctx.Done():
		return monitor.Reading{}, errors.New().WithData(ErrReadTimeout, struct {
			Timeout time.Duration
		}{
			Timeout: s.cfg.ReadTimeout,
		})
	}
}

// warn logs a failure the tick survives, with its code when it has one.
func warn(err error) *logger.LogEvent {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		return logger.WarnWithCode(appErr)
	}
	return &logger.LogEvent{Event: logger.Warn().Err(err)}
}

func logReading(r monitor.Reading) {
	logger.Info().
		Str("temperature", optional(r.TemperatureC)).
		Int("cpu", r.CPUPercent).
		Str("memory", fmt.Sprintf("%d%% (%d/%d MB)", r.Memory.Percent, r.Memory.UsedMB, r.Memory.TotalMB)).
		Str("power", optional(r.PowerWatts)).
		Msg("Reading")
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
