package affection

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MinAffection = 0
	MaxAffection = 100

	DefaultInitialAffection     = 40
	DefaultCafeDateThreshold    = 50
	DefaultHandHoldingThreshold = 75
)

var (
	ErrCafeLocked  = errors.New("cafe date is locked")
	ErrHandsLocked = errors.New("hand holding is locked")
)

// Session is the relationship state of one active chat. It lives only as
// long as the view that owns it.
type Session struct {
	ID                      string
	Character               Character
	Affection               int
	HoldingHands            bool
	ConsecutiveAutoMessages int
	CafeDateActive          bool

	shownMilestones map[int]bool

	// Fraction of a point lost to rounding, carried into the next change.
	remainder float64

	cafeThreshold  int
	handsThreshold int
}

// NewSession starts a session at the given score with the default unlock
// thresholds. Milestones at or below the starting score count as already
// reached and never fire.
func NewSession(c Character, initial int) *Session {
	s := &Session{
		ID:              uuid.NewString(),
		Character:       c,
		Affection:       Clamp(initial),
		shownMilestones: make(map[int]bool),
		cafeThreshold:   DefaultCafeDateThreshold,
		handsThreshold:  DefaultHandHoldingThreshold,
	}
	for _, m := range Milestones {
		if s.Affection >= m.Threshold {
			s.markMilestone(m.Threshold)
		}
	}
	return s
}

// WithThresholds overrides the café-date and hand-holding unlock scores.
func (s *Session) WithThresholds(cafe, hands int) *Session {
	s.cafeThreshold = cafe
	s.handsThreshold = hands
	return s
}

// Clamp bounds a score to [MinAffection, MaxAffection].
func Clamp(v int) int {
	if v < MinAffection {
		return MinAffection
	}
	if v > MaxAffection {
		return MaxAffection
	}
	return v
}

func (s *Session) CafeDateUnlocked() bool {
	return s.Affection >= s.cafeThreshold
}

func (s *Session) HandHoldingOfferable() bool {
	return s.Affection >= s.handsThreshold
}

// SetCafeDate enters or leaves the café date. Entering needs the unlock
// score; leaving an active date is always allowed.
func (s *Session) SetCafeDate(active bool) error {
	if active && !s.CafeDateActive && !s.CafeDateUnlocked() {
		return ErrCafeLocked
	}
	s.CafeDateActive = active
	return nil
}

// SetHoldingHands toggles the hand-holding modifier. Letting go is always
// allowed.
func (s *Session) SetHoldingHands(holding bool) error {
	if holding && !s.HandHoldingOfferable() {
		return ErrHandsLocked
	}
	s.HoldingHands = holding
	return nil
}

// RecordUserTurn resets the unbroken auto-message run.
func (s *Session) RecordUserTurn() {
	s.ConsecutiveAutoMessages = 0
}

func (s *Session) RecordAutoTurn() {
	s.ConsecutiveAutoMessages++
}

// MilestoneShown reports whether the threshold already fired.
func (s *Session) MilestoneShown(threshold int) bool {
	return s.shownMilestones[threshold]
}

// ShownMilestones returns the fired thresholds in ascending order.
func (s *Session) ShownMilestones() []int {
	var out []int
	for _, m := range Milestones {
		if s.shownMilestones[m.Threshold] {
			out = append(out, m.Threshold)
		}
	}
	return out
}

func (s *Session) markMilestone(threshold int) {
	s.shownMilestones[threshold] = true
}
