package core

import "github.com/pkg/errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoSession        = errors.New("no active session")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports malformed input. It is always returned before any state is mutated.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// RemoteError reports a failed call to the remote data service (persist, fetch or subscribe).
type RemoteError struct {
	Op  string
	Err error
}

func NewRemoteError(op string, err error) error {
	return &RemoteError{Op: op, Err: err}
}

func (err *RemoteError) Error() string {
	if err.Err == nil {
		return err.Op + ": remote failure"
	}
	return err.Op + ": " + err.Err.Error()
}

func (err *RemoteError) Unwrap() error { return err.Err }

// IsRemoteFailure reports whether err (or anything it wraps) is a *RemoteError.
func IsRemoteFailure(err error) bool {
	var rerr *RemoteError
	return errors.As(err, &rerr)
}
