package reading

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrDuplicateReading = errors.New("reading already exists")
	ErrNoSuchReading    = errors.New("reading not found")
	ErrNotInContext     = errors.New("reading store session is not active")

	ErrIDType           = errors.New("reading id must be a UUID, string or integer")
	ErrIDValue          = errors.New("invalid reading id")
	ErrInvalidUnit      = errors.New("unit must be one of mmol/L, mg/dL")
	ErrInvalidValue     = errors.New("value must be a decimal number")
	ErrNaiveTimestamp   = errors.New("recorded_at must carry a timezone")
	ErrInvalidTimestamp = errors.New("recorded_at must be an RFC 3339 timestamp")
)

// ValidationError collects every field-level problem found on a reading.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// IsInvalidInput reports whether err is a rejected-input condition rather
// than a domain or backend failure.
func IsInvalidInput(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	for _, target := range []error{ErrIDType, ErrIDValue, ErrInvalidUnit, ErrInvalidValue, ErrNaiveTimestamp, ErrInvalidTimestamp} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorKind buckets err for metrics labels and log levels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateReading):
		return "duplicate"
	case errors.Is(err, ErrNoSuchReading):
		return "not_found"
	case errors.Is(err, ErrNotInContext):
		return "not_in_context"
	case IsInvalidInput(err):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}
