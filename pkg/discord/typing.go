package discord

import (
	"math/rand"
	"time"

	"companion/pkg/affection"
)

// TypingConfig controls typing simulation behavior
type TypingConfig struct {
	// Base characters per second for "typing"
	BaseCharsPerSecond float64
	MinDuration        time.Duration
	MaxDuration        time.Duration
	// Random variation factor (0.0 - 1.0)
	Variation float64
}

var DefaultTypingConfig = TypingConfig{
	BaseCharsPerSecond: 25.0,
	MinDuration:        800 * time.Millisecond,
	MaxDuration:        4 * time.Second,
	Variation:          0.3,
}

// CalculateTypingDuration determines how long to "type" based on message
// length and the expression the reply is shown with.
func CalculateTypingDuration(messageLength int, emotion affection.Emotion, config TypingConfig) time.Duration {
	if config.BaseCharsPerSecond <= 0 || config.MaxDuration <= 0 {
		return 0
	}

	baseDuration := time.Duration(float64(messageLength) / config.BaseCharsPerSecond * float64(time.Second))

	multiplier := 1.0
	switch emotion {
	case affection.Angry:
		multiplier = 0.7 // snaps back
	case affection.Surprised:
		multiplier = 0.8
	case affection.Sad:
		multiplier = 1.3
	case affection.Blushing:
		multiplier = 1.2
	case affection.Nervous:
		multiplier = 1.4 // types, deletes, retypes
	}

	adjusted := time.Duration(float64(baseDuration) * multiplier)

	variation := 1.0 + (rand.Float64()*2-1)*config.Variation
	adjusted = time.Duration(float64(adjusted) * variation)

	if adjusted < config.MinDuration {
		adjusted = config.MinDuration
	}
	if adjusted > config.MaxDuration {
		adjusted = config.MaxDuration
	}
	return adjusted
}

// simulateTyping shows the typing indicator for the calculated duration.
func simulateTyping(s Session, channelID string, duration time.Duration) {
	if duration <= 0 {
		return
	}

	s.ChannelTyping(channelID)

	// Discord's indicator lasts ~10 seconds.
	refreshInterval := 8 * time.Second
	elapsed := time.Duration(0)
	for elapsed < duration {
		sleepTime := duration - elapsed
		if sleepTime > refreshInterval {
			sleepTime = refreshInterval
		}
		time.Sleep(sleepTime)
		elapsed += sleepTime

		if elapsed < duration {
			s.ChannelTyping(channelID)
		}
	}
}
