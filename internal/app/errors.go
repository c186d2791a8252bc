package service

import "errors"

// Sentinel errors returned by Service. Store errors (not found, duplicate)
// pass through wrapped and can be matched with errors.Is as well.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrInvalidTournament  = errors.New("invalid tournament")
	ErrRegistrationClosed = errors.New("registration closed")
	ErrTournamentFull     = errors.New("tournament full")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrRoundInProgress    = errors.New("round in progress")
	ErrTournamentComplete = errors.New("tournament complete")
	ErrInvalidReport      = errors.New("invalid report")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrBackpressure       = errors.New("report queue full")
)
