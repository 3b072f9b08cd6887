package affection

import (
	"math/rand"
	"time"
)

// Reconciler smooths the raw emotion against the relationship tier before it
// reaches the avatar. It never touches the score.
//
// Not safe for concurrent use; each conversation owns one.
type Reconciler struct {
	rng *rand.Rand
}

// NewReconciler uses src for every probabilistic branch. Pass nil for a
// time-seeded source.
func NewReconciler(src rand.Source) *Reconciler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Reconciler{rng: rand.New(src)}
}

func (r *Reconciler) chance(p float64) bool {
	return r.rng.Float64() < p
}

// Reconcile returns the emotion to display for raw at the given score.
func (r *Reconciler) Reconcile(c Character, raw Emotion, affection int) Emotion {
	if !c.Supports(raw) {
		raw = Normal
	}

	switch {
	case affection < 15:
		switch raw {
		case Smile, Blushing, Nervous, Surprised:
			if r.chance(0.6) {
				return Angry
			}
			return Sad
		case Normal:
			if r.chance(0.4) {
				return Sad
			}
		}
	case affection < 30:
		switch raw {
		case Smile, Blushing, Nervous:
			return Normal
		}
	case affection < 50:
		switch raw {
		case Blushing, Nervous:
			return Normal
		}
	case affection < 70:
		// pass through
	case affection < 85:
		if raw == Normal && r.chance(0.4) {
			return Smile
		}
	default:
		switch raw {
		case Normal:
			if r.chance(0.6) {
				return Smile
			}
		case Smile:
			if c.Supports(Blushing) && r.chance(0.35) {
				return Blushing
			}
		}
	}
	return raw
}
