package state

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	ErrInvalidPath  = errors.ErrorCode("state_invalid_path")
	ErrReadFailed   = errors.ErrorCode("state_read_failed")
	ErrDecodeFailed = errors.ErrorCode("state_decode_failed")
	ErrEncodeFailed = errors.ErrorCode("state_encode_failed")
	ErrWriteFailed  = errors.ErrorCode("state_write_failed")
)
