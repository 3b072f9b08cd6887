// Package voice caches synthesized speech so repeated lines (greetings,
// fallback messages) do not spend TTS quota twice.
package voice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"companion/pkg/cache"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, string, error)
}

// Hash fields of a cached clip.
const (
	fieldType  = "type"
	fieldAudio = "audio"
)

type CachedSynthesizer struct {
	next  Synthesizer
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedSynthesizer returns next unchanged when there is no cache.
func NewCachedSynthesizer(next Synthesizer, c *cache.Cache, ttl time.Duration) Synthesizer {
	if c == nil {
		return next
	}
	if ttl <= 0 {
		ttl = cache.SpeechTTL
	}
	return &CachedSynthesizer{next: next, cache: c, ttl: ttl}
}

func (s *CachedSynthesizer) key(text, voiceID string) string {
	sum := sha256.Sum256([]byte(voiceID + "\x00" + text))
	return s.cache.Key("tts", hex.EncodeToString(sum[:]))
}

// Synthesize serves from the cache when possible. Cache failures are logged
// and fall through to the wrapped synthesizer.
func (s *CachedSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, string, error) {
	key := s.key(text, voiceID)

	hit, err := s.cache.Fetch(ctx, key, fieldType, fieldAudio)
	switch {
	case err == nil:
		return hit[fieldAudio], string(hit[fieldType]), nil
	case !errors.Is(err, cache.ErrMiss):
		log.Printf("Speech cache read failed: %v", err)
	}

	audio, contentType, err := s.next.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, "", err
	}

	rec := cache.Record{fieldType: []byte(contentType), fieldAudio: audio}
	if err := s.cache.Put(ctx, key, rec, s.ttl); err != nil {
		log.Printf("Speech cache write failed: %v", err)
	}
	return audio, contentType, nil
}
