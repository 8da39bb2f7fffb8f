package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
)

type service struct {
	repo *sqliteRepository
}

type noopRecorder struct{}

// New returns the SQLite-backed recorder, or a no-op when disabled.
func New(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Journal disabled, using no-op recorder")
		return noopRecorder{}, nil
	}

	repo, err := newRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, entry Entry) error {
	errFactory := errors.New()

	if entry.Condition == "" || entry.Transition == "" {
		return errFactory.New(ErrInvalidEntry)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	if err := s.repo.Record(ctx, entry); err != nil {
		return errFactory.Wrap(errors.ErrRecordJournal, err)
	}

	return nil
}

func (s *service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.repo.Recent(ctx, limit)
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (noopRecorder) Record(context.Context, Entry) error {
	return nil
}

func (noopRecorder) Recent(context.Context, int) ([]Entry, error) {
	return nil, nil
}

func (noopRecorder) Close() error {
	return nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
