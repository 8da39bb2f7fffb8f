package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/hostwatch/internal/errors"
)

const fileName = "hostwatch.pid"

// File is a held PID file.
type File struct {
	path string
}

// PathFor returns the PID file guarding the given state file, so two
// instances never share one state file.
func PathFor(stateFile string) string {
	return filepath.Join(filepath.Dir(stateFile), fileName)
}

// Write writes the current process ID to path. A file naming a live
// process other than this one is reported as ErrAlreadyRunning; a stale
// file is replaced.
func Write(path string) (*File, error) {
	errFactory := errors.New()

	if running, owner, err := alive(path); err != nil {
		return nil, err
	} else if running {
		return nil, errFactory.WithData(errors.ErrAlreadyRunning, struct {
			Path string
			PID  int
		}{
			Path: path,
			PID:  owner,
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	return &File{path: path}, nil
}

func (f *File) Path() string {
	return f.path
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(path string) (bool, int, error) {
	errFactory := errors.New()

	bytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, errFactory.Wrap(errors.ErrInternal, err)
	}

	owner, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
	if err != nil || owner <= 0 {
		// unreadable content is treated as stale
		return false, 0, nil
	}
	if owner == os.Getpid() {
		return false, owner, nil
	}

	process, err := os.FindProcess(owner)
	if err != nil {
		return false, owner, nil
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, owner, nil
	}

	return true, owner, nil
}
