package journal

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	DefaultDBPath  = "/var/lib/hostwatch/journal.db"
	defaultDirPerm = 0o750
)

type Config struct {
	DBPath  string
	Enabled bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:  DefaultDBPath,
		Enabled: false,
	}
}

func (c Config) Validate() error {
	if c.Enabled && c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}
	return nil
}
