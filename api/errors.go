package api

import (
	"errors"
	"fmt"
)

// ErrRequest is matched by every RequestError.
var ErrRequest = errors.New("request failed")

// ErrNetwork is matched by every NetworkError.
var ErrNetwork = errors.New("network error")

// RequestError is returned when the server answered with a non-2xx status.
type RequestError struct {
	Status     int
	StatusText string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d Error: %s", e.Status, e.StatusText)
}

func (e *RequestError) Is(target error) bool { return target == ErrRequest }

// NetworkError is returned when the server could not be reached.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}
