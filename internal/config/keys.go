package config

// Configuration keys, shared by the config file, HOSTWATCH_* environment
// variables and (with '-' for '_') command-line flags.
const (
	KeyTemperature   = "temperature"
	KeyCPU           = "cpu"
	KeyPowerIncrease = "power_increase"
	KeyIntervalMS    = "interval_ms"
	KeyReadTimeoutMS = "read_timeout_ms"
	KeyStateFile     = "state_file"
	KeyRecipient     = "recipient"
	KeyToken         = "token"
	KeyCommandPrefix = "command_prefix"
	KeyHostLabel     = "host_label"
	KeyPowerSource   = "power_source"
	KeyThermalZone   = "thermal_zone"
	KeyRAPLPath      = "rapl_path"
	KeyJournal       = "journal"
	KeyJournalDB     = "journal_db"
	KeyLogLevel      = "log_level"
	KeyDryRun        = "dry_run"
)

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

func (l LogLevel) String() string {
	return string(l)
}
