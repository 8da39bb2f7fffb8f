package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
	"codeberg.org/mutker/hostwatch/internal/monitor"
)

const (
	defaultDirPerm  = 0o750
	defaultFilePerm = 0o600
)

// Store persists the monitor state between runs.
type Store interface {
	Load() monitor.MonitorState
	Save(state monitor.MonitorState) error
}

// FileStore keeps the state as a JSON document. Writes go to a temporary
// file in the same directory which is then renamed over the target, so a
// crash leaves either the old or the new record on disk.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New().New(ErrInvalidPath)
	}

	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns the persisted state. A missing or unreadable record yields
// the zero state; it is treated as a first run.
func (s *FileStore) Load() monitor.MonitorState {
	state, err := s.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info().Str("path", s.path).Msg("No saved state, starting fresh")
		} else {
			logger.Warn().Err(err).Str("path", s.path).Msg("Discarding unreadable state")
		}
		return monitor.MonitorState{}
	}

	logger.Debug().
		Str("path", s.path).
		Bool("temp_high", state.TempHigh).
		Bool("cpu_high", state.CPUHigh).
		Bool("power_high", state.PowerHigh).
		Msg("State loaded")

	return state
}

func (s *FileStore) read() (monitor.MonitorState, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		return monitor.MonitorState{}, errFactory.Wrap(ErrReadFailed, err)
	}

	var state monitor.MonitorState
	if err := json.Unmarshal(data, &state); err != nil {
		return monitor.MonitorState{}, errFactory.Wrap(ErrDecodeFailed, err)
	}

	return state, nil
}

// Save overwrites the record with state.
func (s *FileStore) Save(state monitor.MonitorState) error {
	errFactory := errors.New()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errFactory.Wrap(ErrEncodeFailed, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return errFactory.WithData(ErrWriteFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  dir,
			Error: err.Error(),
		})
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				logger.Debug().Err(err).Str("path", tmpPath).Msg("Failed to remove temp state file")
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := os.Chmod(tmpPath, defaultFilePerm); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errFactory.WithData(ErrWriteFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "rename",
			Path:  s.path,
			Error: err.Error(),
		})
	}
	committed = true

	return nil
}
