package errors

// Common error codes
const (
	// System errors
	ErrInternal       ErrorCode = "internal_error"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig    ErrorCode = "invalid_configuration"
	ErrMissingConfig    ErrorCode = "missing_configuration"
	ErrBindFlags        ErrorCode = "bind_flags_failed"
	ErrReadConfig       ErrorCode = "read_config_failed"
	ErrInvalidInterval  ErrorCode = "invalid_interval"
	ErrInvalidThreshold ErrorCode = "invalid_threshold"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Lifecycle errors
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Application errors
	ErrTickFailed  ErrorCode = "tick_failed"
	ErrReadMetrics ErrorCode = "read_metrics_failed"
	ErrStatusQuery ErrorCode = "status_query_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"

	// Journal errors
	ErrInitJournal   ErrorCode = "init_journal_failed"
	ErrRecordJournal ErrorCode = "record_journal_failed"
	ErrCloseJournal  ErrorCode = "close_journal_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrAlreadyRunning:   "Another instance is already running",
	ErrInvalidConfig:    "Invalid configuration",
	ErrMissingConfig:    "Missing configuration",
	ErrBindFlags:        "Failed to bind flags",
	ErrReadConfig:       "Failed to read config file",
	ErrInvalidInterval:  "Invalid interval value",
	ErrInvalidThreshold: "Invalid threshold value",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrShutdownFailed:   "Shutdown failed",
	ErrTickFailed:       "Monitoring tick failed",
	ErrReadMetrics:      "Failed to read host metrics",
	ErrStatusQuery:      "Failed to answer status query",
	ErrOperationFailed:  "Operation failed",
	ErrTimeout:          "Operation timed out",
	ErrInitJournal:      "Failed to initialize journal",
	ErrRecordJournal:    "Failed to record journal entry",
	ErrCloseJournal:     "Failed to close journal",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
