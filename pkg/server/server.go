// Package server exposes conversations to a browser client over HTTP and
// WebSocket.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"companion/pkg/affection"
	"companion/pkg/bot"
	"companion/pkg/elevenlabs"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// QuotaChecker reports the remaining speech budget.
type QuotaChecker interface {
	Quota(ctx context.Context) elevenlabs.Quota
}

type Config struct {
	Responder   *bot.Responder
	Synthesizer bot.Synthesizer
	Transcriber bot.Transcriber
	Quota       QuotaChecker

	// Provider names the chat backend for /api/status.
	Provider      string
	ProviderReady bool

	AllowedOrigin string

	// Options builds per-connection conversation options. Defaults to
	// bot.DefaultOptions.
	Options func(affection.Character) bot.Options
}

type Server struct {
	cfg Config
}

func New(cfg Config) *Server {
	if cfg.Options == nil {
		cfg.Options = bot.DefaultOptions
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	return &Server{cfg: cfg}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(CORS([]string{s.cfg.AllowedOrigin}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/characters", s.handleCharacters)
		r.Get("/menu", s.handleMenu)
		r.Post("/tts", s.handleTTS)
		r.Post("/stt", s.handleSTT)
	})

	r.Get("/ws/chat", s.handleChat)
	return r
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
