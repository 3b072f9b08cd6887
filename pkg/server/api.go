package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"companion/pkg/affection"
	"companion/pkg/cafe"
	"companion/pkg/elevenlabs"
)

const maxAudioUpload = 10 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type providerStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type statusResponse struct {
	Chat       providerStatus   `json:"chat"`
	ElevenLabs elevenlabs.Quota `json:"elevenLabs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Chat:       providerStatus{Name: s.cfg.Provider, OK: s.cfg.ProviderReady},
		ElevenLabs: elevenlabs.Quota{Error: "Missing API Key"},
	}
	if !resp.Chat.OK {
		resp.Chat.Error = "Missing API Key"
	}

	if s.cfg.Quota != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		resp.ElevenLabs = s.cfg.Quota.Quota(ctx)
	}

	w.Header().Set("Cache-Control", "no-store")
	JSON(w, http.StatusOK, resp)
}

type characterView struct {
	ID          affection.Character          `json:"id"`
	Name        string                       `json:"name"`
	Title       string                       `json:"title"`
	VoiceID     string                       `json:"voiceId"`
	Greeting    string                       `json:"greeting"`
	Emotions    []affection.Emotion          `json:"emotions"`
	Expressions map[affection.Emotion]string `json:"expressions"`
	Motions     []string                     `json:"motions"`
}

func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	var out []characterView
	for _, p := range affection.Characters() {
		out = append(out, characterView{
			ID:          p.Character,
			Name:        p.DisplayName,
			Title:       p.Title,
			VoiceID:     p.VoiceID,
			Greeting:    p.Greeting,
			Emotions:    p.Emotions,
			Expressions: p.Expressions,
			Motions:     p.Motions,
		})
	}
	JSON(w, http.StatusOK, out)
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"items":            cafe.Menu,
		"startingCurrency": s.cfg.Options(affection.Arisa).StartingCurrency,
	})
}

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

type ttsResponse struct {
	Audio       string `json:"audio"`
	ContentType string `json:"contentType"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Synthesizer == nil {
		Error(w, http.StatusServiceUnavailable, "Text-to-speech is not configured")
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "Invalid text")
		return
	}

	audio, contentType, err := s.cfg.Synthesizer.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		log.Printf("TTS failed: %v", err)
		Error(w, http.StatusBadGateway, "Text-to-speech conversion failed")
		return
	}

	JSON(w, http.StatusOK, ttsResponse{
		Audio:       base64.StdEncoding.EncodeToString(audio),
		ContentType: contentType,
	})
}

func (s *Server) handleSTT(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Transcriber == nil {
		Error(w, http.StatusServiceUnavailable, "Speech-to-text is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		Error(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		Error(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		Error(w, http.StatusBadRequest, "Failed to read audio")
		return
	}
	log.Printf("Received audio file %q (%d bytes)", header.Filename, len(audio))

	text, err := s.cfg.Transcriber.Transcribe(r.Context(), audio, header.Filename)
	if err != nil {
		log.Printf("STT failed: %v", err)
		Error(w, http.StatusBadGateway, "Failed to transcribe audio")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"text": strings.TrimSpace(text)})
}
