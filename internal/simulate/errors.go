package simulate

import "errors"

// Sentinel errors returned by the simulator.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrBusy             = errors.New("service busy")
	ErrInconsistent     = errors.New("inconsistent standings")
)
