package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"companion/pkg/affection"
	"companion/pkg/bot"

	"github.com/bwmarrin/discordgo"
)

const maxVoiceNote = 10 << 20

type Config struct {
	Responder   *bot.Responder
	Synthesizer bot.Synthesizer
	Transcriber bot.Transcriber
	Character   affection.Character
	// Options builds per-user conversation options. Defaults to
	// bot.DefaultOptions.
	Options func(affection.Character) bot.Options
	Typing  TypingConfig
}

type chat struct {
	conv      *bot.Conversation
	presenter *dmPresenter
	cancel    context.CancelFunc
}

// Handler keeps one in-memory conversation per DM user. Nothing survives a
// restart or /reset.
type Handler struct {
	cfg    Config
	botID  string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	chats map[string]*chat

	fetch func(ctx context.Context, url string) ([]byte, error)
}

func NewHandler(cfg Config) *Handler {
	if cfg.Options == nil {
		cfg.Options = bot.DefaultOptions
	}
	if cfg.Character == "" {
		cfg.Character = affection.Arisa
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		chats:  make(map[string]*chat),
		fetch:  fetchAttachment,
	}
}

func (h *Handler) SetBotID(id string) {
	h.botID = id
}

// Close ends every conversation and waits for them to stop.
func (h *Handler) Close() {
	h.cancel()
	h.wg.Wait()
}

func (h *Handler) chatFor(s Session, userID, channelID string) *chat {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.chats[userID]; ok {
		return c
	}

	ctx, cancel := context.WithCancel(h.ctx)
	p := newDMPresenter(ctx, s, channelID, h.cfg.Typing)
	conv := bot.NewConversation(h.cfg.Options(h.cfg.Character), h.cfg.Responder, p, h.cfg.Synthesizer)
	c := &chat{conv: conv, presenter: p, cancel: cancel}
	h.chats[userID] = c

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		conv.Run(ctx)
	}()
	go func() {
		defer h.wg.Done()
		p.run()
	}()

	log.Printf("Started conversation %s for user %s", conv.ID(), userID)
	return c
}

// Reset drops the user's conversation. It reports whether there was one.
func (h *Handler) Reset(userID string) bool {
	h.mu.Lock()
	c, ok := h.chats[userID]
	delete(h.chats, userID)
	h.mu.Unlock()

	if ok {
		c.cancel()
		log.Printf("Reset conversation %s for user %s", c.conv.ID(), userID)
	}
	return ok
}

func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.HandleMessage(&DiscordSession{s}, m)
}

// HandleMessage turns a DM into a chat turn. Voice notes are transcribed
// first; guild messages are ignored.
func (h *Handler) HandleMessage(s Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == h.botID || m.Author.Bot {
		return
	}
	if m.GuildID != "" {
		return
	}

	c := h.chatFor(s, m.Author.ID, m.ChannelID)

	text := strings.TrimSpace(m.Content)
	if text == "" {
		text = h.transcribeVoiceNote(m.Attachments, c.presenter.Notice)
	}
	if text == "" {
		return
	}

	if err := c.conv.SendMessage(text); err != nil {
		if errors.Is(err, bot.ErrBusy) {
			c.presenter.Notice(bot.Notice{Level: bot.NoticeInfo, Text: "_(still thinking about your last message...)_"})
			return
		}
		log.Printf("Error sending message for user %s: %v", m.Author.ID, err)
	}
}

func (h *Handler) transcribeVoiceNote(attachments []*discordgo.MessageAttachment, notify func(bot.Notice)) string {
	for _, a := range attachments {
		if !strings.HasPrefix(a.ContentType, "audio/") {
			continue
		}
		if h.cfg.Transcriber == nil {
			notify(bot.Notice{Level: bot.NoticeError, Text: "Voice messages aren't set up, try typing instead."})
			return ""
		}

		ctx, cancel := context.WithTimeout(h.ctx, 60*time.Second)
		defer cancel()

		audio, err := h.fetch(ctx, a.URL)
		if err != nil {
			log.Printf("Error downloading voice note: %v", err)
			notify(bot.Notice{Level: bot.NoticeError, Text: "Couldn't download that voice message."})
			return ""
		}
		return bot.Transcribe(ctx, h.cfg.Transcriber, audio, a.Filename, notify)
	}
	return ""
}

func fetchAttachment(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxVoiceNote))
}
