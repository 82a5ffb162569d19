package apiclient

import (
	"errors"
	"fmt"
)

// ErrNetworkFailure marks errors returned after the transient-retry budget is
// exhausted. Use errors.Is to detect it.
var ErrNetworkFailure = errors.New("network failure")

// NetworkFailure is returned by Call when every physical attempt failed in
// transport. It wraps the last attempt's error.
type NetworkFailure struct {
	Method   string
	Path     string
	Attempts int

	// Status is the last HTTP status when the attempts reached the server
	// (exhausted 5xx), or zero for pure connectivity failures.
	Status int

	Err error
}

func (e *NetworkFailure) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Method, e.Path, e.Attempts, e.Err)
}

func (e *NetworkFailure) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNetworkFailure) match without the caller needing
// the concrete type.
func (e *NetworkFailure) Is(target error) bool {
	return target == ErrNetworkFailure
}
