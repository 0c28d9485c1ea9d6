package errors

import (
	"errors"
	"fmt"
)

// New returns an error with the given message. It's a thin wrapper around the
// standard library so that callers only need to import this package.
func New(msg string) error {
	return errors.New(msg)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// withContext wraps an error with a short description of what was being
// attempted when the error occurred.
type withContext struct {
	context string
	err     error
}

// WithContext returns an error that prefixes `err` with `context`. It returns
// nil if `err` is nil, so it's safe to use in return statements.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return withContext{context: context, err: err}
}

func (err withContext) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err withContext) Unwrap() error {
	return err.err
}

// RootCause returns the innermost error that was wrapped with WithContext.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(withContext)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// FriendlyError is an error whose message is meant to be shown directly to
// the user, without the context chain.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError with a formatted message.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{msg: fmt.Sprintf(format, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message that should be shown to the user.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

type friendlyMessager interface {
	FriendlyMessage() string
}

// GetPrintableMessage returns the message to show to the user for `err`.
// Friendly errors anywhere in the chain take precedence over the raw error
// string.
func GetPrintableMessage(err error) string {
	for curr := err; curr != nil; curr = errors.Unwrap(curr) {
		if friendly, ok := curr.(friendlyMessager); ok {
			return friendly.FriendlyMessage()
		}
	}
	return err.Error()
}
