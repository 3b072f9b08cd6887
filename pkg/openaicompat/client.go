// Package openaicompat is a chat provider for any OpenAI-compatible endpoint
// (NVIDIA, Cerebras, OpenAI).
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"companion/pkg/bot"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const DefaultBaseURL = "https://integrate.api.nvidia.com/v1"

type ModelConfig struct {
	ID       string
	MaxToken int
}

var DefaultModels = []ModelConfig{
	{ID: "meta/llama-3.3-70b-instruct", MaxToken: 1024},
}

type KeyState struct {
	Key          string
	FailureCount int
	LastUsed     time.Time
	LastSuccess  time.Time
}

// Client rotates across comma-separated API keys by failure count and falls
// through the model list until one answers.
type Client struct {
	baseURL     string
	keys        []*KeyState
	keyMu       sync.RWMutex
	clients     map[string]openai.Client
	clientsMu   sync.RWMutex
	httpClient  *http.Client
	temperature float64
	topP        float64
	models      []ModelConfig
}

func NewClient(baseURL, apiKeys string, temperature, topP float64, models []ModelConfig) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if len(models) == 0 {
		models = DefaultModels
	}

	var keys []*KeyState
	for _, k := range strings.Split(apiKeys, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, &KeyState{Key: k})
		}
	}

	if len(keys) == 0 {
		log.Println("Warning: No OpenAI-compatible API keys provided")
	} else {
		log.Printf("Loaded %d OpenAI-compatible API key(s) for %s", len(keys), baseURL)
	}

	return &Client{
		baseURL:     baseURL,
		keys:        keys,
		clients:     make(map[string]openai.Client),
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		temperature: temperature,
		topP:        topP,
		models:      models,
	}
}

// Configured reports whether at least one key is present.
func (c *Client) Configured() bool {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()
	return len(c.keys) > 0
}

func (c *Client) getClient(key string) openai.Client {
	c.clientsMu.RLock()
	if client, ok := c.clients[key]; ok {
		c.clientsMu.RUnlock()
		return client
	}
	c.clientsMu.RUnlock()

	c.clientsMu.Lock()
	defer c.clientsMu.Unlock()

	client := openai.NewClient(
		option.WithBaseURL(c.baseURL),
		option.WithAPIKey(key),
		option.WithHTTPClient(c.httpClient),
		// Rotation below is the retry policy.
		option.WithMaxRetries(0),
	)
	c.clients[key] = client
	return client
}

func (c *Client) getBestKey() *KeyState {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()

	if len(c.keys) == 0 {
		return nil
	}

	best := c.keys[0]
	for _, k := range c.keys[1:] {
		if k.FailureCount < best.FailureCount {
			best = k
		}
	}
	return best
}

func (c *Client) recordSuccess(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.LastSuccess = time.Now()
	key.LastUsed = time.Now()
	if key.FailureCount > 0 {
		key.FailureCount--
	}
}

func (c *Client) recordFailure(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.FailureCount++
	key.LastUsed = time.Now()
}

// Complete implements bot.Provider.
func (c *Client) Complete(ctx context.Context, system string, history []bot.Turn, message string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, t := range history {
		if t.Role == bot.RoleModel {
			messages = append(messages, openai.AssistantMessage(t.Content))
		} else {
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}
	messages = append(messages, openai.UserMessage(message))

	return c.chat(ctx, messages)
}

func (c *Client) chat(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	keyState := c.getBestKey()
	if keyState == nil {
		return "", fmt.Errorf("no API keys configured")
	}

	var lastErr error
	for _, modelConf := range c.models {
		params := openai.ChatCompletionNewParams{
			Model:       shared.ChatModel(modelConf.ID),
			Messages:    messages,
			Temperature: openai.Float(c.temperature),
			TopP:        openai.Float(c.topP),
		}
		if modelConf.MaxToken > 0 {
			params.MaxTokens = openai.Int(int64(modelConf.MaxToken))
		}

		start := time.Now()
		client := c.getClient(keyState.Key)
		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil && isRateLimitOrAuthError(err) {
			c.recordFailure(keyState)
			if next := c.getBestKey(); next != nil && next != keyState {
				log.Printf("Key rate limited/auth failed, trying another key...")
				keyState = next
				client = c.getClient(keyState.Key)
				resp, err = client.Chat.Completions.New(ctx, params)
			}
		}
		if err != nil {
			log.Printf("Model %s error: %v", modelConf.ID, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if resp == nil || len(resp.Choices) == 0 {
			log.Printf("Model %s returned empty response", modelConf.ID)
			lastErr = fmt.Errorf("empty response from model %s", modelConf.ID)
			continue
		}

		c.recordSuccess(keyState)
		log.Printf("Model %s success (took %v, tokens: in=%d, out=%d)",
			modelConf.ID, time.Since(start), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		return resp.Choices[0].Message.Content, nil
	}

	c.recordFailure(keyState)
	return "", fmt.Errorf("all models exhausted. Last error: %w", lastErr)
}

func isRateLimitOrAuthError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "unauthorized")
}
