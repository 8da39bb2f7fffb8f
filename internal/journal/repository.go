package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepository struct {
	db     *sql.DB
	logger logger.Logger
	mu     sync.Mutex
}

func newRepository(cfg Config, log logger.Logger) (*sqliteRepository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}
	db.SetMaxOpenConns(1)

	if err := ValidateAndUpdateSchema(db, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Journal repository initialized")

	return &sqliteRepository{db: db, logger: log}, nil
}

func (r *sqliteRepository) Record(ctx context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var baseline interface{}
	if entry.Condition == "power" {
		baseline = entry.Baseline
	}

	_, err := r.db.ExecContext(ctx, insertTransitionSQL,
		entry.Timestamp.Unix(),
		entry.Condition,
		entry.Transition,
		entry.Value,
		entry.Threshold,
		baseline,
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, recentTransitionsSQL, limit)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			ts       int64
			e        Entry
			baseline sql.NullFloat64
		)
		if err := rows.Scan(&ts, &e.Condition, &e.Transition, &e.Value, &e.Threshold, &baseline); err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		e.Timestamp = unixTime(ts)
		e.Baseline = baseline.Float64
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return entries, nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.logger.Debug().Err(err).Msg("Failed to checkpoint journal WAL")
	}

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	r.logger.Info().Msg("Journal closed")

	return nil
}
