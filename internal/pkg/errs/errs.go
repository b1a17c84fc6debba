package errs

import (
	"errors"
	"fmt"
)

// Sentinel classes for pipeline failures. Callers classify with errors.Is;
// detail text travels in the wrapping error.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrExternalService = errors.New("external service error")
	ErrSchema          = errors.New("schema error")
	ErrNotFound        = errors.New("not found")
	ErrInvalid         = errors.New("invalid request")
)

func Configurationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func ExternalServicef(service, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrExternalService, service, fmt.Sprintf(format, args...))
}

func Schemaf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func NotFoundf(resource, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, resource, id)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Transient marks an external failure as retryable (rate limit, timeout,
// 5xx-class). Configuration and schema errors must never be marked.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
