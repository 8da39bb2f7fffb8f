package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*service, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	rec, err := New(Config{Enabled: true, DBPath: path}, logger.Default())
	require.NoError(t, err)

	svc, ok := rec.(*service)
	require.True(t, ok)
	t.Cleanup(func() { _ = svc.Close() })

	return svc, path
}

func TestDisabledJournalIsNoop(t *testing.T) {
	rec, err := New(DefaultConfig(), logger.Default())
	require.NoError(t, err)

	assert.IsType(t, noopRecorder{}, rec)
	assert.NoError(t, rec.Record(context.Background(), Entry{}))
	entries, err := rec.Recent(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, rec.Close())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.NoError(t, cfg.Validate())
}

func TestEnabledJournalRequiresPath(t *testing.T) {
	_, err := New(Config{Enabled: true}, logger.Default())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))
}

func TestRecordAndRecent(t *testing.T) {
	svc, _ := openTestJournal(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Record(ctx, EntryFrom(monitor.Notification{
		Condition:  monitor.ConditionTemperature,
		Transition: monitor.Entered,
		Value:      90,
		Threshold:  85,
	}, at)))
	require.NoError(t, svc.Record(ctx, EntryFrom(monitor.Notification{
		Condition:  monitor.ConditionPower,
		Transition: monitor.Entered,
		Value:      140,
		Threshold:  30,
		Baseline:   100,
		Increase:   40,
	}, at.Add(time.Minute))))

	entries, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "power", entries[0].Condition)
	assert.Equal(t, "entered", entries[0].Transition)
	assert.Equal(t, 100.0, entries[0].Baseline)
	assert.True(t, at.Add(time.Minute).Equal(entries[0].Timestamp))

	assert.Equal(t, "temperature", entries[1].Condition)
	assert.Equal(t, 90.0, entries[1].Value)
	assert.Equal(t, 0.0, entries[1].Baseline)
}

func TestRecordRejectsIncompleteEntry(t *testing.T) {
	svc, _ := openTestJournal(t)

	err := svc.Record(context.Background(), Entry{Timestamp: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidEntry))
}

func TestRecordHonoursCancelledContext(t *testing.T) {
	svc, _ := openTestJournal(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Record(ctx, Entry{Condition: "cpu", Transition: "cleared"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestSchemaVersionMismatchRecreates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
        CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
        INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));
        CREATE TABLE transitions (id INTEGER PRIMARY KEY, legacy TEXT);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rec, err := New(Config{Enabled: true, DBPath: path}, logger.Default())
	require.NoError(t, err)
	svc := rec.(*service)
	defer svc.Close()

	version, err := GetSchemaVersion(svc.repo.db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	require.NoError(t, svc.Record(context.Background(), Entry{
		Timestamp:  time.Now(),
		Condition:  "cpu",
		Transition: "entered",
		Value:      95,
		Threshold:  80,
	}))
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	cfg := Config{Enabled: true, DBPath: path}

	rec, err := New(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, rec.Record(context.Background(), Entry{
		Timestamp:  time.Now(),
		Condition:  "cpu",
		Transition: "entered",
		Value:      91,
		Threshold:  80,
	}))
	require.NoError(t, rec.Close())

	rec, err = New(cfg, logger.Default())
	require.NoError(t, err)
	defer rec.Close()

	entries, err := rec.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
