package main

import (
	"fmt"
	"log"
	"os"

	"companion/pkg/bot"
	"companion/pkg/cache"
	"companion/pkg/config"
	"companion/pkg/elevenlabs"
	"companion/pkg/emotion"
	"companion/pkg/gemini"
	"companion/pkg/openaicompat"
	"companion/pkg/voice"
)

// services is everything a front end needs to run conversations.
type services struct {
	responder     *bot.Responder
	providerName  string
	providerReady bool
	speech        *elevenlabs.Client
	synthesizer   bot.Synthesizer
	transcriber   bot.Transcriber
	cache         *cache.Cache
}

func (s *services) Close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.Printf("Error closing cache: %v", err)
		}
	}
}

// modelList returns the primary model followed by its fallbacks.
func modelList(cfg *config.Config) []openaicompat.ModelConfig {
	var models []openaicompat.ModelConfig
	ids := append([]string{cfg.ModelSettings.Model}, cfg.ModelSettings.FallbackModels...)
	for _, id := range ids {
		if id == "" {
			continue
		}
		models = append(models, openaicompat.ModelConfig{ID: id, MaxToken: cfg.ModelSettings.MaxTokens})
	}
	return models
}

func buildServices(cfg *config.Config) (*services, error) {
	s := &services{providerName: cfg.ModelSettings.Provider}

	// Gemini doubles as the emotion classifier whenever a key is present,
	// whichever provider writes the replies.
	geminiModel := ""
	if cfg.ModelSettings.Provider == config.ProviderGemini {
		geminiModel = cfg.ModelSettings.Model
	}
	geminiClient := gemini.NewClient(os.Getenv("GEMINI_API_KEY"), geminiModel, cfg.ModelSettings.Temperature, cfg.ModelSettings.TopP)
	geminiAdapter := gemini.NewAdapter(geminiClient)

	var provider bot.Provider
	switch cfg.ModelSettings.Provider {
	case config.ProviderGemini:
		if geminiAdapter == nil {
			log.Println("GEMINI_API_KEY not set, chat is disabled")
			break
		}
		provider = geminiAdapter
		s.providerReady = true
		log.Printf("Chat provider: Gemini (%s)", geminiClient.Model())
	case config.ProviderOpenAI:
		client := openaicompat.NewClient(
			os.Getenv("OPENAI_BASE_URL"),
			os.Getenv("OPENAI_API_KEY"),
			cfg.ModelSettings.Temperature,
			cfg.ModelSettings.TopP,
			modelList(cfg),
		)
		if !client.Configured() {
			log.Println("OPENAI_API_KEY not set, chat is disabled")
			break
		}
		provider = client
		s.providerReady = true
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.ModelSettings.Provider)
	}

	chain := []emotion.Classifier{}
	if geminiAdapter != nil {
		chain = append(chain, emotion.NewCached(geminiAdapter, 1000, geminiClient.Model()))
	} else {
		log.Println("GEMINI_API_KEY not set, emotion classification uses keywords only")
	}
	chain = append(chain, emotion.NewKeyword("Normal"))
	classifier := emotion.NewFallback(chain...)

	if provider != nil {
		s.responder = bot.NewResponder(provider, classifier)
	}

	s.speech = elevenlabs.NewClient(os.Getenv("ELEVENLABS_API_KEY"), cfg.Voice.Model, cfg.Voice.STTModel)
	if !s.speech.Configured() || !cfg.Voice.Enabled {
		log.Println("Voice disabled (ELEVENLABS_API_KEY not set or voice.enabled is false)")
		return s, nil
	}
	s.transcriber = s.speech

	var synth voice.Synthesizer = s.speech
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c, err := cache.NewRedisCache(redisURL, "companion")
		if err != nil {
			log.Printf("Warning: Redis unavailable, speech is not cached: %v", err)
		} else {
			s.cache = c
			synth = voice.NewCachedSynthesizer(synth, c, cfg.CacheTTL())
			log.Printf("Caching speech in Redis for %s", cfg.CacheTTL())
		}
	}
	s.synthesizer = synth
	return s, nil
}
