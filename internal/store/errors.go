package store

import (
	"context"
	"errors"
	"net"
)

// ErrNotFound is returned by conditional operations when no record with the
// given id exists. Handlers recover it into a 404; every other storage
// fault surfaces as a generic server error.
var ErrNotFound = errors.New("record not found")

// ErrUnavailable is returned when the backend cannot be reached. It is
// fatal to the request; no inline retries are attempted.
var ErrUnavailable = errors.New("storage unavailable")

// classify maps transport-level failures to ErrUnavailable and passes
// everything else through untouched.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable
	}
	return err
}
