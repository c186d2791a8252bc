package pairing

import "math/rand"

// TieBreak selects how players with equal points and OMW% are ordered
// inside a bucket.
type TieBreak int

const (
	// TieBreakRandom shuffles equal players with the engine's random source.
	TieBreakRandom TieBreak = iota
	// TieBreakByID orders equal players by user id ascending.
	TieBreakByID
)

// ParseTieBreak maps a config value to a TieBreak.
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "", "random":
		return TieBreakRandom, nil
	case "id":
		return TieBreakByID, nil
	default:
		return TieBreakRandom, ErrUnknownTieBreak
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRand sets the random source used for the bucket shuffle.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithSeed seeds a private random source so pairings are reproducible.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // pairing order is not security sensitive
	}
}

// WithTieBreak sets the in-bucket tie-break strategy.
func WithTieBreak(tb TieBreak) Option {
	return func(e *Engine) {
		e.tieBreak = tb
	}
}
