package emotion

import (
	"strings"
)

// Classifier maps free text onto one of the given labels.
type Classifier interface {
	Classify(text string, labels []string) (string, float64, error)
}

type weightedKeyword struct {
	keyword string
	weight  float64
}

// Keyword scores text against per-emotion keyword lists. It never fails and
// needs no network, so it is the last link of every classifier chain.
type Keyword struct {
	patterns map[string][]weightedKeyword
	fallback string
}

// NewKeyword returns a keyword classifier that answers fallback when nothing
// scores above the threshold.
func NewKeyword(fallback string) *Keyword {
	return &Keyword{
		patterns: defaultPatterns(),
		fallback: fallback,
	}
}

func defaultPatterns() map[string][]weightedKeyword {
	return map[string][]weightedKeyword{
		"angry": {
			{keyword: "hate", weight: 0.5}, {keyword: "shut up", weight: 0.5},
			{keyword: "stupid", weight: 0.5}, {keyword: "annoying", weight: 0.4},
			{keyword: "how dare", weight: 0.5}, {keyword: "ugh", weight: 0.3},
			{keyword: "idiot", weight: 0.5}, {keyword: "mad", weight: 0.3},
		},
		"sad": {
			{keyword: "sorry", weight: 0.3}, {keyword: "miss you", weight: 0.4},
			{keyword: "lonely", weight: 0.4}, {keyword: "sad", weight: 0.4},
			{keyword: "cry", weight: 0.4}, {keyword: "sigh", weight: 0.3},
			{keyword: "disappointed", weight: 0.4}, {keyword: "hurt", weight: 0.4},
		},
		"smile": {
			{keyword: "haha", weight: 0.3}, {keyword: "glad", weight: 0.3},
			{keyword: "happy", weight: 0.4}, {keyword: "thank", weight: 0.3},
			{keyword: "fun", weight: 0.3}, {keyword: "love", weight: 0.3},
			{keyword: "great", weight: 0.3}, {keyword: ":)", weight: 0.3},
		},
		"surprised": {
			{keyword: "wow", weight: 0.4}, {keyword: "really?", weight: 0.4},
			{keyword: "no way", weight: 0.5}, {keyword: "what?!", weight: 0.5},
			{keyword: "whoa", weight: 0.4}, {keyword: "unexpected", weight: 0.3},
		},
		"blushing": {
			{keyword: "cute", weight: 0.4}, {keyword: "pretty", weight: 0.4},
			{keyword: "beautiful", weight: 0.4}, {keyword: "kiss", weight: 0.5},
			{keyword: "embarrass", weight: 0.4}, {keyword: "blush", weight: 0.5},
		},
		"nervous": {
			{keyword: "um", weight: 0.3}, {keyword: "uh", weight: 0.3},
			{keyword: "nervous", weight: 0.5}, {keyword: "anxious", weight: 0.4},
			{keyword: "i mean", weight: 0.3}, {keyword: "...", weight: 0.3},
		},
	}
}

// Classify returns the best-scoring label among labels. Labels without a
// keyword list never win. Confidence is clamped to 1.
func (k *Keyword) Classify(text string, labels []string) (string, float64, error) {
	lower := strings.ToLower(text)

	best := ""
	bestScore := 0.0
	for _, label := range labels {
		score := 0.0
		for _, kw := range k.patterns[strings.ToLower(label)] {
			if strings.Contains(lower, kw.keyword) {
				score += kw.weight
			}
		}
		if score > bestScore {
			best = label
			bestScore = score
		}
	}

	// Exclamations push the leader further, capped at +0.2.
	if best != "" {
		if n := strings.Count(text, "!"); n >= 2 {
			bestScore += min(float64(n)*0.1, 0.2)
		}
	}

	if bestScore < 0.3 {
		return k.fallback, 0, nil
	}
	return best, min(bestScore, 1.0), nil
}
