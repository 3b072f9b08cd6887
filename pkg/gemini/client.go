package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-flash-latest"
)

// APIError captures non-200 responses to allow inspection of the status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API error (status %d): %s", e.StatusCode, e.Body)
}

// Client talks to the Gemini generateContent endpoint.
type Client struct {
	apiKey      string
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
	topP        float64
}

func NewClient(apiKey, model string, temperature, topP float64) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:      apiKey,
		client:      &http.Client{Timeout: 90 * time.Second},
		baseURL:     defaultBaseURL,
		model:       model,
		temperature: temperature,
		topP:        topP,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Content is one turn in Gemini roles ("user" or "model").
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

func TextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	Contents          []Content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// Generate runs one generateContent call. With jsonMode the model is asked
// for an application/json response.
func (c *Client) Generate(ctx context.Context, system string, contents []Content, jsonMode bool) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini API key not configured")
	}

	reqBody := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature: &c.temperature,
			TopP:        &c.topP,
		},
	}
	if system != "" {
		reqBody.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}
	if jsonMode {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyStr := string(bodyBytes)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "...(truncated)"
		}
		return "", &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
	}

	var genResp generateResponse
	if err := json.Unmarshal(bodyBytes, &genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if genResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("content blocked: %s", genResp.PromptFeedback.BlockReason)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response candidates returned")
	}

	var sb strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	log.Printf("Gemini %s success (took %v, finish=%s)", c.model, time.Since(start), genResp.Candidates[0].FinishReason)
	return sb.String(), nil
}

// Classify uses Gemini to classify text into one of the provided labels
// Returns the best matching label and a confidence score (0.0-1.0)
func (c *Client) Classify(text string, labels []string) (string, float64, error) {
	if len(labels) == 0 {
		return "", 0, fmt.Errorf("no labels to classify against")
	}

	var labelsStr strings.Builder
	for i, label := range labels {
		fmt.Fprintf(&labelsStr, "%d. %s\n", i+1, label)
	}

	prompt := fmt.Sprintf(`Classify the emotion expressed by this line of dialogue into exactly ONE of the following categories:

%s
Text to classify: %q

Output a JSON object with:
- "label": the exact category name that best matches
- "confidence": a number from 0.0 to 1.0 indicating how confident you are

Example: {"label": "Normal", "confidence": 0.85}`, labelsStr.String(), text)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	raw, err := c.Generate(ctx, "", []Content{TextContent("user", prompt)}, true)
	if err != nil {
		return "", 0, err
	}

	var result struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		// If JSON parsing fails, return the first label as fallback
		return labels[0], 0.5, nil
	}

	return result.Label, result.Confidence, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			if lastIdx := strings.LastIndex(s, "\n"); lastIdx > idx {
				s = s[idx+1 : lastIdx]
			}
		}
	}
	return strings.TrimSpace(s)
}
