package model

import (
	"encoding/json"
	"fmt"
)

// ResultCode is the outcome of a single match slot.
type ResultCode int

// Result codes. The zero value is Unreported so a freshly paired match
// carries no outcome until one is submitted.
const (
	Unreported ResultCode = iota
	PlayerAWin
	PlayerBWin
	Draw
	IntentionalDraw
	DoubleLoss
	PlayerADisqualified
	PlayerBDisqualified
)

var resultNames = [...]string{
	Unreported:          "unreported",
	PlayerAWin:          "player_a_win",
	PlayerBWin:          "player_b_win",
	Draw:                "draw",
	IntentionalDraw:     "intentional_draw",
	DoubleLoss:          "double_loss",
	PlayerADisqualified: "player_a_disqualified",
	PlayerBDisqualified: "player_b_disqualified",
}

// String returns the wire name of the result code.
func (r ResultCode) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return fmt.Sprintf("result(%d)", int(r))
	}
	return resultNames[r]
}

// Valid reports whether r is one of the declared codes.
func (r ResultCode) Valid() bool {
	return r >= Unreported && r <= PlayerBDisqualified
}

// ParseResultCode converts a wire name into a ResultCode.
func ParseResultCode(s string) (ResultCode, error) {
	for i, name := range resultNames {
		if name == s {
			return ResultCode(i), nil
		}
	}
	return Unreported, fmt.Errorf("%w: %q", ErrUnknownResult, s)
}

// MarshalJSON encodes the code by name.
func (r ResultCode) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownResult, int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a code from its name.
func (r *ResultCode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("result code must be a string: %w", err)
	}
	code, err := ParseResultCode(s)
	if err != nil {
		return err
	}
	*r = code
	return nil
}
