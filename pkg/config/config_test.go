package config

import (
	"os"
	"testing"
	"time"

	"companion/pkg/affection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config_test_*.yml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Provide a path that definitely doesn't exist
	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, config.ModelSettings.Provider)
	assert.Equal(t, 1.0, config.ModelSettings.Temperature)
	assert.Equal(t, 1.0, config.ModelSettings.TopP)
	assert.Equal(t, 40, config.Affection.Initial)
	assert.Equal(t, 5.0, config.Affection.BaseChange)
	assert.Equal(t, 1.5, config.Affection.HandHoldingBonus)
	assert.Equal(t, 50, config.Affection.CafeDateThreshold)
	assert.Equal(t, 75, config.Affection.HandHoldingThreshold)
	assert.Equal(t, "all", config.Affection.MilestonePolicy)
	assert.Equal(t, 15.0, config.Delays.IdleMin)
	assert.Equal(t, 20.0, config.Delays.IdleMax)
	assert.Equal(t, 3, config.Delays.MaxAutoMessages)
	assert.Equal(t, 50.0, config.Cafe.StartingCurrency)
	assert.False(t, config.Cafe.ClearOnExit)
	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, "scribe_v2", config.Voice.STTModel)
	assert.Equal(t, 24*time.Hour, config.CacheTTL())
	assert.NoError(t, config.Validate())
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
model_settings:
  provider: openai
  temperature: 0.7
  top_p: 0.9
  model: meta/llama-3.3-70b-instruct
  fallback_models: [qwen/qwen3-235b-a22b]
affection:
  initial: 60
  milestone_policy: first
delays:
  idle_min: 1
  idle_max: 2.5
cafe:
  clear_on_exit: true
discord:
  character: Chitose
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, config.ModelSettings.Provider)
	assert.Equal(t, 0.7, config.ModelSettings.Temperature)
	assert.Equal(t, []string{"qwen/qwen3-235b-a22b"}, config.ModelSettings.FallbackModels)
	assert.Equal(t, 60, config.Affection.Initial)
	assert.True(t, config.Cafe.ClearOnExit)

	// Keys missing from the file keep their defaults.
	assert.Equal(t, 5.0, config.Affection.BaseChange)
	assert.Equal(t, 5.0, config.Delays.IdleWiden)
	assert.Equal(t, "8080", config.Server.Port)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
model_settings:
  temperature: "not a number"
  broken_yaml: [ unclosed bracket
`)

	config, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Nil(t, config)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown provider", func(c *Config) { c.ModelSettings.Provider = "claude" }},
		{"unknown policy", func(c *Config) { c.Affection.MilestonePolicy = "some" }},
		{"unknown character", func(c *Config) { c.Discord.Character = "marin" }},
		{"threshold above 100", func(c *Config) { c.Affection.CafeDateThreshold = 120 }},
		{"negative initial", func(c *Config) { c.Affection.Initial = -1 }},
		{"inverted idle window", func(c *Config) { c.Delays.IdleMin, c.Delays.IdleMax = 20, 15 }},
		{"zero idle delay", func(c *Config) { c.Delays.IdleMin = 0 }},
		{"negative currency", func(c *Config) { c.Cafe.StartingCurrency = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "affection:\n  milestone_policy: sometimes\n")
	config, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Nil(t, config)
}

func TestConversationOptions(t *testing.T) {
	c := Default()
	c.Affection.Initial = 70
	c.Affection.MilestonePolicy = "first"
	c.Delays.IdleMin = 1.5
	c.Delays.LoadingScreen = 0.25
	c.Cafe.ClearOnExit = true

	opts := c.ConversationOptions(affection.Chitose)
	assert.Equal(t, affection.Chitose, opts.Character)
	assert.Equal(t, 70, opts.InitialAffection)
	assert.Equal(t, affection.FireFirst, opts.MilestonePolicy)
	assert.Equal(t, 1500*time.Millisecond, opts.Idle.MinDelay)
	assert.Equal(t, 20*time.Second, opts.Idle.MaxDelay)
	assert.Equal(t, 5*time.Second, opts.Idle.Widen)
	assert.Equal(t, 3, opts.Idle.MaxMessages)
	assert.Equal(t, 250*time.Millisecond, opts.LoadingDuration)
	assert.Equal(t, 4*time.Second, opts.MilestoneDisplay)
	assert.Equal(t, 3*time.Second, opts.ConfessionDelay)
	assert.Equal(t, 50.0, opts.StartingCurrency)
	assert.True(t, opts.ClearOnExit)
}
