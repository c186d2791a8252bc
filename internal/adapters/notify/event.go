// Package notify publishes tournament events to interested listeners.
package notify

import (
	"context"
	"time"
)

// Event types.
const (
	EventStandingsUpdated    = "standings.updated"
	EventRoundPaired         = "round.paired"
	EventTournamentCompleted = "tournament.completed"
	EventPlayerRegistered    = "player.registered"
	EventPlayerDropped       = "player.dropped"
)

// Event is a single notification. Payload must be JSON encodable.
type Event struct {
	Type         string    `json:"type"`
	TournamentID string    `json:"tournament_id"`
	Round        int       `json:"round"`
	At           time.Time `json:"at"`
	Payload      any       `json:"payload,omitempty"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
