package pairing

import "errors"

var (
	// ErrNoByeCandidate is the panic value raised when an odd player count
	// leaves no one to receive the bye. It means the caller passed a
	// malformed pool.
	ErrNoByeCandidate = errors.New("no bye candidate")
	// ErrUnknownTieBreak is returned for an unrecognised tie-break name.
	ErrUnknownTieBreak = errors.New("unknown tie-break")
)
