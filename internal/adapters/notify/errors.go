package notify

import "errors"

var (
	// ErrClosed is returned when publishing on a closed publisher.
	ErrClosed = errors.New("publisher closed")
	// ErrServerStart is returned when the embedded server does not become ready.
	ErrServerStart = errors.New("embedded nats server did not start")
)
