package service

import "errors"

var (
	ErrInvalidScheduleTime = errors.New("scheduled time must be in the future")
	ErrInvalidPlatform     = errors.New("unsupported platform")
	ErrEmptyContent        = errors.New("content cannot be empty")
	ErrContentTooLong      = errors.New("content exceeds platform limit")
	ErrAccountNotConnected = errors.New("account not connected")
	ErrTokenExpired        = errors.New("access token expired")
	ErrConfiguration       = errors.New("configuration error")
	ErrPostNotFound        = errors.New("post not found")
	ErrForbidden           = errors.New("post belongs to another user")
	ErrInvalidState        = errors.New("only failed posts can be retried")
	ErrNotDraft            = errors.New("only drafts can be scheduled")
	ErrAlreadyPosted       = errors.New("published posts cannot be changed")
	ErrQueuePublish        = errors.New("failed to queue post")
	ErrBatchTooLarge       = errors.New("too many posts in batch")
	ErrEmptyBatch          = errors.New("no posts provided")
	ErrInvalidBulkAction   = errors.New("invalid bulk action")
	ErrNoPostIDs           = errors.New("no post ids provided")
	ErrInvalidPayload      = errors.New("invalid execution payload")
	ErrUnknownStatus       = errors.New("unknown post status")
	ErrRetryable           = errors.New("transient failure; redelivery requested")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
	ErrAdaptation          = errors.New("content adaptation failed")
)

// IsValidationError reports errors caused by the request itself.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidScheduleTime) ||
		errors.Is(err, ErrInvalidPlatform) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrContentTooLong) ||
		errors.Is(err, ErrBatchTooLarge) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrInvalidBulkAction) ||
		errors.Is(err, ErrNoPostIDs) ||
		errors.Is(err, ErrUnknownStatus) ||
		errors.Is(err, ErrUnsupportedMedia)
}
