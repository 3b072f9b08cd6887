package affection

import (
	"log"
	"math"
)

const (
	// DefaultBaseChange scales the emotion multiplier table into score points.
	DefaultBaseChange = 5.0
	// DefaultHandHoldingBonus multiplies every resolved delta while holding hands.
	DefaultHandHoldingBonus = 1.5

	// Bounds of an AI-reported affection change.
	MinAIDelta = -5.0
	MaxAIDelta = 20.0
)

// Engine turns one emotional signal into a score change.
type Engine struct {
	BaseChange       float64
	HandHoldingBonus float64
}

func NewEngine(baseChange, handHoldingBonus float64) *Engine {
	if baseChange == 0 {
		baseChange = DefaultBaseChange
	}
	if handHoldingBonus == 0 {
		handHoldingBonus = DefaultHandHoldingBonus
	}
	return &Engine{
		BaseChange:       baseChange,
		HandHoldingBonus: handHoldingBonus,
	}
}

// ResolveDelta picks the base delta (AI-reported change first, otherwise the
// character's multiplier times BaseChange) and applies the hand-holding
// bonus. The result is pre-clamp.
func (e *Engine) ResolveDelta(s *Session, emotion Emotion, aiDelta *float64) float64 {
	var delta float64
	if aiDelta != nil {
		delta = *aiDelta
	} else {
		// Unmapped tags contribute nothing.
		delta = s.Character.Profile().Multipliers[emotion] * e.BaseChange
	}

	if s.HoldingHands {
		delta *= e.HandHoldingBonus
	}
	return delta
}

// ApplyTurnResult applies one turn's delta to the session and returns the new
// score. Every call is a real transition; retrying double-applies. The part of
// a fractional delta lost to rounding is carried to the next call, so
// repeated half-point changes sum exactly instead of always rounding one way.
func (e *Engine) ApplyTurnResult(s *Session, emotion Emotion, aiDelta *float64) int {
	delta := e.ResolveDelta(s, emotion, aiDelta)
	if delta == 0 {
		return s.Affection
	}

	old := s.Affection
	exact := float64(old) + s.remainder + delta
	rounded := int(math.Round(exact))
	s.Affection = Clamp(rounded)
	if s.Affection == rounded {
		s.remainder = exact - float64(rounded)
	} else {
		s.remainder = 0
	}

	log.Printf("Affection change for session %s: %d -> %d (emotion=%s, delta=%+.1f, hands=%v)",
		s.ID, old, s.Affection, emotion, delta, s.HoldingHands)

	return s.Affection
}

// ClampAIDelta bounds a collaborator-supplied change to [MinAIDelta, MaxAIDelta].
func ClampAIDelta(v float64) float64 {
	return math.Max(MinAIDelta, math.Min(MaxAIDelta, v))
}
