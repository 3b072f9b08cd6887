package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"companion/pkg/bot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": text}}},
				"finishReason": "STOP",
			},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", "", 1, 1)
	client.baseURL = server.URL + "/v1beta"
	return client
}

func TestAdapter_Complete(t *testing.T) {
	var got generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-flash-latest:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse(`{"reply":"hi~","emotion":"Smile"}`))
	})

	adapter := NewAdapter(client)
	require.NotNil(t, adapter)

	history := []bot.Turn{
		{Role: bot.RoleUser, Content: "hello"},
		{Role: bot.RoleModel, Content: "oh, hi"},
	}
	out, err := adapter.Complete(context.Background(), "you are arisa", history, "how are you?")
	require.NoError(t, err)
	assert.Equal(t, `{"reply":"hi~","emotion":"Smile"}`, out)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "you are arisa", got.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "how are you?", got.Contents[2].Parts[0].Text)
}

func TestGenerate_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"quota"}`))
	})

	_, err := client.Generate(context.Background(), "", []Content{TextContent("user", "hi")}, false)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestGenerate_Blocked(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}})
	})

	_, err := client.Generate(context.Background(), "", []Content{TextContent("user", "hi")}, false)
	assert.ErrorContains(t, err, "blocked")
}

func TestGenerate_NoKey(t *testing.T) {
	client := NewClient("", "", 1, 1)
	assert.False(t, client.Configured())
	assert.Nil(t, NewAdapter(client))

	_, err := client.Generate(context.Background(), "", nil, false)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	t.Run("json answer", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(textResponse("```json\n{\"label\": \"Sad\", \"confidence\": 0.7}\n```"))
		})

		label, score, err := client.Classify("I miss you", []string{"Smile", "Sad"})
		require.NoError(t, err)
		assert.Equal(t, "Sad", label)
		assert.Equal(t, 0.7, score)
	})

	t.Run("unparseable answer", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(textResponse("sad, probably"))
		})

		label, score, err := client.Classify("I miss you", []string{"Smile", "Sad"})
		require.NoError(t, err)
		assert.Equal(t, "Smile", label)
		assert.Equal(t, 0.5, score)
	})

	t.Run("no labels", func(t *testing.T) {
		_, _, err := NewClient("k", "", 1, 1).Classify("x", nil)
		assert.Error(t, err)
	})
}
