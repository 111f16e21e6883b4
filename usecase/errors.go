package usecase

import "errors"

// ErrNoTransport is returned by join/leave requests before a channel
// namespace connection has been attached.
var ErrNoTransport = errors.New("registry: no transport attached")
