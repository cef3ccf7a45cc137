package errors

import (
	"errors"
	"fmt"
)

// UserError represents an error with both technical and user-friendly messages
type UserError struct {
	Err       error
	UserMsg   string
	Retryable bool
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Predefined errors
var (
	ErrDecodeFailed = &UserError{
		Err:       errors.New("decode image"),
		UserMsg:   "This image could not be read. Please choose a different file.",
		Retryable: false,
	}

	ErrEncodeFailed = &UserError{
		Err:       errors.New("encode jpeg"),
		UserMsg:   "Compression failed. Try another quality setting or a different file.",
		Retryable: true,
	}

	ErrInvalidQuality = &UserError{
		Err:       errors.New("quality out of range"),
		UserMsg:   "Quality must be a whole number between 1 and 100.",
		Retryable: false,
	}

	ErrSessionNotFound = &UserError{
		Err:       errors.New("session not found"),
		UserMsg:   "Your session has expired. Please start over.",
		Retryable: false,
	}

	ErrUploadTooLarge = &UserError{
		Err:       errors.New("upload too large"),
		UserMsg:   "That file is too large to compress here.",
		Retryable: false,
	}

	ErrImageTooLarge = &UserError{
		Err:       errors.New("image dimensions too large"),
		UserMsg:   "That image has too many pixels to compress here.",
		Retryable: false,
	}

	ErrUnauthorized = &UserError{
		Err:       errors.New("unauthorized user"),
		UserMsg:   "Sorry, you are not authorized to use this bot.",
		Retryable: false,
	}

	ErrNothingToDownload = &UserError{
		Err:       errors.New("no compressed image"),
		UserMsg:   "Send an image first, then wait for the compressed preview.",
		Retryable: true,
	}
)

// Wrap wraps a technical error with a user message
func Wrap(err error, userMsg string, retryable bool) *UserError {
	return &UserError{
		Err:       err,
		UserMsg:   userMsg,
		Retryable: retryable,
	}
}

// WithCause attaches a technical cause to a predefined error while keeping
// its user message, so errors.Is still matches the predefined value.
func WithCause(base *UserError, cause error) *UserError {
	return &UserError{
		Err:       fmt.Errorf("%w: %w", base.Err, cause),
		UserMsg:   base.UserMsg,
		Retryable: base.Retryable,
	}
}

// Is lets errors.Is match a wrapped UserError against a predefined one.
func (e *UserError) Is(target error) bool {
	t, ok := target.(*UserError)
	if !ok {
		return false
	}
	return e == t || (e.UserMsg == t.UserMsg && errors.Is(e.Err, t.Err))
}

// GetUserMessage extracts user-friendly message from error
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMsg
	}
	// Default message for unexpected errors
	return "An unexpected error occurred. Please try again later."
}

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Retryable
	}
	return false
}
