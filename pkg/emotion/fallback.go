package emotion

import (
	"log"
	"strings"
)

// Fallback tries each classifier in order and returns the first answer that
// names one of the requested labels. Errors and out-of-vocabulary answers
// move on to the next link.
type Fallback struct {
	chain []Classifier
}

func NewFallback(chain ...Classifier) *Fallback {
	var live []Classifier
	for _, c := range chain {
		if c != nil {
			live = append(live, c)
		}
	}
	return &Fallback{chain: live}
}

func (f *Fallback) Classify(text string, labels []string) (string, float64, error) {
	var lastErr error
	for i, c := range f.chain {
		label, score, err := c.Classify(text, labels)
		if err != nil {
			log.Printf("Emotion classifier %d failed: %v", i, err)
			lastErr = err
			continue
		}
		if match, ok := matchLabel(label, labels); ok {
			return match, score, nil
		}
		log.Printf("Emotion classifier %d answered %q, not in %v", i, label, labels)
	}
	if lastErr != nil {
		return "", 0, lastErr
	}
	return "", 0, nil
}

func matchLabel(label string, labels []string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, l := range labels {
		if strings.EqualFold(l, label) {
			return l, true
		}
	}
	return "", false
}
