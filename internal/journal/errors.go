package journal

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("journal_invalid_db_path")

	ErrSchemaInitFailed       = errors.ErrorCode("journal_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("journal_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("journal_schema_migration_failed")

	ErrStorageAccess = errors.ErrorCode("journal_storage_access_failed")
	ErrStorageInit   = errors.ErrInitJournal
	ErrStorageClose  = errors.ErrCloseJournal

	ErrInvalidEntry     = errors.ErrorCode("journal_invalid_entry")
	ErrOperationTimeout = errors.ErrTimeout
)
