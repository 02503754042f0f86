package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired    = sterrors.New("sqsreporter: configuration is required")
	ErrLoggerRequired    = sterrors.New("sqsreporter: logger is required")
	ErrQueueURLRequired  = sterrors.New("sqsreporter: queue URL is required")
	ErrMalformedTags     = sterrors.New("sqsreporter: tags must be a JSON list of {key, value} objects")
	ErrSenderRequired    = sterrors.New("sqsreporter: queue sender is required")
	ErrCounterRequired   = sterrors.New("sqsreporter: outstanding counter is required")
	ErrBodyTooLarge      = sterrors.New("sqsreporter: message body exceeds the queue size limit")
	ErrDrainTimeout      = sterrors.New("sqsreporter: timed out waiting for in-flight messages")
	ErrSubscriberMissing = sterrors.New("sqsreporter: event bus subscriber is required")
	ErrPublisherRequired = sterrors.New("sqsreporter: event bus publisher is required")
)

// ConfigValidationError marks an error produced while validating or
// resolving the reporter configuration. Such errors are fatal at startup.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("sqsreporter: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
