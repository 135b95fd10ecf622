package uplink

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable means the inference endpoint could not be reached.
	ErrTransportUnavailable = errors.New("uplink unavailable")

	// ErrSignalCorrupted covers extraction and JSON decode failures.
	ErrSignalCorrupted = errors.New("signal corrupted")

	// ErrExtractionFailure means no brace-delimited fragment exists in the model text.
	ErrExtractionFailure = fmt.Errorf("%w: no json object in model output", ErrSignalCorrupted)

	// ErrInvalidPayload means the JSON decoded but does not have the expected shape.
	ErrInvalidPayload = errors.New("invalid payload")

	ErrEmptyInput = errors.New("input is empty")
)

// StatusError is returned when the endpoint answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("uplink http status %d: %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("uplink http status %d: %s: %s", e.StatusCode, e.Status, e.Body)
}

func invalidPayload(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}
