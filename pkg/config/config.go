package config

import (
	"fmt"
	"os"
	"time"

	"companion/pkg/affection"
	"companion/pkg/bot"
	"companion/pkg/idle"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	ModelSettings struct {
		Provider       string   `yaml:"provider"`
		Temperature    float64  `yaml:"temperature"`
		TopP           float64  `yaml:"top_p"`
		Model          string   `yaml:"model"`
		FallbackModels []string `yaml:"fallback_models"`
		MaxTokens      int      `yaml:"max_tokens"`
	} `yaml:"model_settings"`
	Affection struct {
		Initial              int     `yaml:"initial"`
		BaseChange           float64 `yaml:"base_change"`
		HandHoldingBonus     float64 `yaml:"hand_holding_bonus"`
		CafeDateThreshold    int     `yaml:"cafe_date_threshold"`
		HandHoldingThreshold int     `yaml:"hand_holding_threshold"`
		MilestonePolicy      string  `yaml:"milestone_policy"`
	} `yaml:"affection"`
	// Delays are in seconds.
	Delays struct {
		IdleMin          float64 `yaml:"idle_min"`
		IdleMax          float64 `yaml:"idle_max"`
		IdleWiden        float64 `yaml:"idle_widen"`
		MaxAutoMessages  int     `yaml:"max_auto_messages"`
		MilestoneDisplay float64 `yaml:"milestone_display"`
		Confession       float64 `yaml:"confession"`
		LoadingScreen    float64 `yaml:"loading_screen"`
	} `yaml:"delays"`
	Cafe struct {
		StartingCurrency float64 `yaml:"starting_currency"`
		ClearOnExit      bool    `yaml:"clear_on_exit"`
	} `yaml:"cafe"`
	Server struct {
		Port          string `yaml:"port"`
		AllowedOrigin string `yaml:"allowed_origin"`
	} `yaml:"server"`
	Voice struct {
		Enabled       bool    `yaml:"enabled"`
		Model         string  `yaml:"model"`
		STTModel      string  `yaml:"stt_model"`
		CacheTTLHours float64 `yaml:"cache_ttl_hours"`
	} `yaml:"voice"`
	Discord struct {
		Character string `yaml:"character"`
	} `yaml:"discord"`
}

// Default returns the configuration used when no file exists. Values from a
// file are layered on top of it.
func Default() *Config {
	config := &Config{}

	config.ModelSettings.Provider = ProviderGemini
	config.ModelSettings.Temperature = 1
	config.ModelSettings.TopP = 1

	config.Affection.Initial = affection.DefaultInitialAffection
	config.Affection.BaseChange = affection.DefaultBaseChange
	config.Affection.HandHoldingBonus = affection.DefaultHandHoldingBonus
	config.Affection.CafeDateThreshold = affection.DefaultCafeDateThreshold
	config.Affection.HandHoldingThreshold = affection.DefaultHandHoldingThreshold
	config.Affection.MilestonePolicy = string(affection.FireAll)

	config.Delays.IdleMin = 15
	config.Delays.IdleMax = 20
	config.Delays.IdleWiden = 5
	config.Delays.MaxAutoMessages = idle.DefaultMaxMessages
	config.Delays.MilestoneDisplay = 4
	config.Delays.Confession = 3
	config.Delays.LoadingScreen = 1.5

	config.Cafe.StartingCurrency = 50

	config.Server.Port = "8080"
	config.Server.AllowedOrigin = "*"

	config.Voice.Enabled = true
	config.Voice.Model = "eleven_multilingual_v2"
	config.Voice.STTModel = "scribe_v2"
	config.Voice.CacheTTLHours = 24

	config.Discord.Character = string(affection.Arisa)
	return config
}

func LoadConfig(path string) (*Config, error) {
	config := Default()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.ModelSettings.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider: %q", c.ModelSettings.Provider)
	}
	if _, err := affection.ParseMilestonePolicy(c.Affection.MilestonePolicy); err != nil {
		return err
	}
	if _, err := affection.ParseCharacter(c.Discord.Character); err != nil {
		return fmt.Errorf("discord: %w", err)
	}

	for name, v := range map[string]int{
		"initial":                c.Affection.Initial,
		"cafe_date_threshold":    c.Affection.CafeDateThreshold,
		"hand_holding_threshold": c.Affection.HandHoldingThreshold,
	} {
		if v < affection.MinAffection || v > affection.MaxAffection {
			return fmt.Errorf("affection.%s must be between %d and %d, got %d", name, affection.MinAffection, affection.MaxAffection, v)
		}
	}

	if c.Delays.IdleMin <= 0 || c.Delays.IdleMax < c.Delays.IdleMin {
		return fmt.Errorf("delays: idle window [%v, %v] is invalid", c.Delays.IdleMin, c.Delays.IdleMax)
	}
	if c.Delays.IdleWiden < 0 || c.Delays.MaxAutoMessages < 0 {
		return fmt.Errorf("delays: idle_widen and max_auto_messages must not be negative")
	}
	if c.Cafe.StartingCurrency < 0 {
		return fmt.Errorf("cafe: starting_currency must not be negative")
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ConversationOptions maps the config onto one conversation's options.
func (c *Config) ConversationOptions(character affection.Character) bot.Options {
	opts := bot.DefaultOptions(character)

	opts.InitialAffection = c.Affection.Initial
	opts.BaseChange = c.Affection.BaseChange
	opts.HandHoldingBonus = c.Affection.HandHoldingBonus
	opts.CafeThreshold = c.Affection.CafeDateThreshold
	opts.HandsThreshold = c.Affection.HandHoldingThreshold
	if policy, err := affection.ParseMilestonePolicy(c.Affection.MilestonePolicy); err == nil {
		opts.MilestonePolicy = policy
	}

	opts.Idle = idle.Config{
		MinDelay:    seconds(c.Delays.IdleMin),
		MaxDelay:    seconds(c.Delays.IdleMax),
		Widen:       seconds(c.Delays.IdleWiden),
		MaxMessages: c.Delays.MaxAutoMessages,
	}
	opts.MilestoneDisplay = seconds(c.Delays.MilestoneDisplay)
	opts.ConfessionDelay = seconds(c.Delays.Confession)
	opts.LoadingDuration = seconds(c.Delays.LoadingScreen)

	opts.StartingCurrency = c.Cafe.StartingCurrency
	opts.ClearOnExit = c.Cafe.ClearOnExit
	return opts
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Voice.CacheTTLHours * float64(time.Hour))
}
