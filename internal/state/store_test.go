package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/monitor"
	"codeberg.org/mutker/hostwatch/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *state.FileStore {
	t.Helper()
	store, err := state.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return store
}

func TestRoundTrip(t *testing.T) {
	store := newStore(t)
	saved := monitor.MonitorState{TempHigh: true, PowerHigh: true, BaselinePower: monitor.Float(42.5)}

	require.NoError(t, store.Save(saved))
	loaded := store.Load()

	assert.True(t, saved.Equal(loaded), "got %+v", loaded)
}

func TestBaselineSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	engine := monitor.NewEngine(monitor.DefaultThresholds())

	store, err := state.NewFileStore(path)
	require.NoError(t, err)
	st, _ := engine.Evaluate(monitor.Reading{CPUPercent: 10, PowerWatts: monitor.Float(40)}, store.Load())
	require.NoError(t, store.Save(st))

	restarted, err := state.NewFileStore(path)
	require.NoError(t, err)
	st, notes := engine.Evaluate(monitor.Reading{CPUPercent: 10, PowerWatts: monitor.Float(400)}, restarted.Load())

	require.NotNil(t, st.BaselinePower)
	assert.Equal(t, 40.0, *st.BaselinePower)
	require.Len(t, notes, 1)
	assert.Equal(t, monitor.ConditionPower, notes[0].Condition)
	assert.Equal(t, 40.0, notes[0].Baseline)

	require.NoError(t, restarted.Save(st))
	assert.Equal(t, 40.0, *restarted.Load().BaselinePower)
}

func TestRoundTripWithoutBaseline(t *testing.T) {
	store := newStore(t)
	saved := monitor.MonitorState{CPUHigh: true}

	require.NoError(t, store.Save(saved))

	assert.True(t, saved.Equal(store.Load()))
}

func TestLoadMissingReturnsZero(t *testing.T) {
	store := newStore(t)

	assert.True(t, store.Load().Equal(monitor.MonitorState{}))
}

func TestLoadCorruptReturnsZero(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	assert.True(t, store.Load().Equal(monitor.MonitorState{}))
}

func TestLoadLegacyRecord(t *testing.T) {
	store := newStore(t)
	record := `{"cpu_high": false, "temp_high": true, "power_high": false, "baseline_power": 38}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(record), 0o600))

	loaded := store.Load()

	assert.True(t, loaded.TempHigh)
	require.NotNil(t, loaded.BaselinePower)
	assert.Equal(t, 38.0, *loaded.BaselinePower)
}

func TestSaveOverwritesAndLeavesNoTempFiles(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Save(monitor.MonitorState{CPUHigh: true}))
	require.NoError(t, store.Save(monitor.MonitorState{TempHigh: true}))

	loaded := store.Load()
	assert.False(t, loaded.CPUHigh)
	assert.True(t, loaded.TempHigh)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveFailureIsReported(t *testing.T) {
	// A directory at the target path makes the rename fail.
	blocked, err := state.NewFileStore(filepath.Join(t.TempDir(), "sub"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(blocked.Path(), "child"), 0o750))

	err = blocked.Save(monitor.MonitorState{TempHigh: true})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, state.ErrWriteFailed))

	entries, err := os.ReadDir(filepath.Dir(blocked.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestNewFileStoreRejectsEmptyPath(t *testing.T) {
	_, err := state.NewFileStore("")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, state.ErrInvalidPath))
}
