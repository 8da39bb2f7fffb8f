package notify

import "codeberg.org/mutker/hostwatch/internal/errors"

const (
	ErrMissingCredentials = errors.ErrorCode("notify_missing_credentials")
	ErrSessionInit        = errors.ErrorCode("notify_session_init_failed")
	ErrSessionOpen        = errors.ErrorCode("notify_session_open_failed")
	ErrChannelFailed      = errors.ErrorCode("notify_dm_channel_failed")
	ErrSendFailed         = errors.ErrorCode("notify_send_failed")
	ErrClosed             = errors.ErrorCode("notify_closed")
)
