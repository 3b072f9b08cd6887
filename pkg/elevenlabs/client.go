package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"

	DefaultVoiceID  = "21m00Tcm4TlvDq8ikWAM"
	DefaultTTSModel = "eleven_multilingual_v2"
	DefaultSTTModel = "scribe_v2"
)

// APIError captures non-200 responses to allow inspection of the status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs API error (status %d): %s", e.StatusCode, e.Body)
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.5,
	SimilarityBoost: 0.75,
	Style:           0,
	UseSpeakerBoost: true,
}

type Client struct {
	apiKey   string
	client   *http.Client
	baseURL  string
	ttsModel string
	sttModel string
	settings VoiceSettings
}

func NewClient(apiKey, ttsModel, sttModel string) *Client {
	if ttsModel == "" {
		ttsModel = DefaultTTSModel
	}
	if sttModel == "" {
		sttModel = DefaultSTTModel
	}
	return &Client{
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
		baseURL:  defaultBaseURL,
		ttsModel: ttsModel,
		sttModel: sttModel,
		settings: DefaultVoiceSettings,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize converts text to speech. An empty voiceID uses DefaultVoiceID.
// The returned content type is the one the API reports.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, string, error) {
	if c.apiKey == "" {
		return nil, "", fmt.Errorf("elevenlabs API key not configured")
	}
	if text == "" {
		return nil, "", fmt.Errorf("no text to synthesize")
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	jsonBody, err := json.Marshal(ttsRequest{Text: text, ModelID: c.ttsModel, VoiceSettings: c.settings})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	body, resp, err := c.do(req)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	log.Printf("ElevenLabs TTS: %d chars -> %d bytes (%s)", len(text), len(body), voiceID)
	return body, contentType, nil
}

// Transcribe sends audio to speech-to-text and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("elevenlabs API key not configured")
	}
	if filename == "" {
		filename = "audio.webm"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := w.WriteField("model_id", c.sttModel); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech-to-text", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, _, err := c.do(req)
	if err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Text, nil
}

// Quota is the character budget left on the subscription.
type Quota struct {
	OK        bool   `json:"ok"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Error     string `json:"error"`
}

// Quota never returns an error; failures are reported in Quota.Error.
func (c *Client) Quota(ctx context.Context) Quota {
	if c.apiKey == "" {
		return Quota{Error: "Missing API Key"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/subscription", nil)
	if err != nil {
		return Quota{Error: "Failed to fetch status"}
	}

	body, _, err := c.do(req)
	if err != nil {
		log.Printf("ElevenLabs subscription check failed: %v", err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Quota{Error: "Invalid API Key"}
		}
		return Quota{Error: "Failed to fetch status"}
	}

	var sub struct {
		CharacterCount int `json:"character_count"`
		CharacterLimit int `json:"character_limit"`
	}
	if err := json.Unmarshal(body, &sub); err != nil {
		return Quota{Error: "Failed to fetch status"}
	}

	q := Quota{
		Remaining: sub.CharacterLimit - sub.CharacterCount,
		Limit:     sub.CharacterLimit,
	}
	q.OK = q.Remaining > 0
	if !q.OK {
		q.Error = "Out of characters"
	}
	return q
}

func (c *Client) do(req *http.Request) ([]byte, *http.Response, error) {
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyStr := string(body)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "...(truncated)"
		}
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
	}
	return body, resp, nil
}
