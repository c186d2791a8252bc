package model

import "errors"

// Sentinel kinds for model decoding errors.
var (
	ErrUnknownResult = errors.New("unknown result code")
)
