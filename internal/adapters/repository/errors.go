package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already exists")
	ErrInvalidRound = errors.New("invalid round")
	ErrClosed       = errors.New("store closed")
)
