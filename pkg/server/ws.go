package server

import (
	"context"
	"log"
	"net/http"
	"sync"

	"companion/pkg/affection"
	"companion/pkg/bot"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Client frame types.
const (
	frameMessage = "message"
	frameTyping  = "typing"
	frameMenu    = "menu"
	frameCafe    = "cafe"
	frameHands   = "hands"
	frameBuy     = "buy"
	framePay     = "pay"
	frameDismiss = "dismiss"
)

// Server frame types.
const (
	frameAvatar = "avatar"
	frameState  = "state"
	frameNotice = "notice"
	frameAudio  = "audio"
)

type clientFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Active bool   `json:"active,omitempty"`
	Item   string `json:"item,omitempty"`
}

type serverFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsPresenter queues conversation output for the connection's writer.
type wsPresenter struct {
	ctx context.Context
	out chan serverFrame
}

func (p *wsPresenter) send(typ string, v any) {
	select {
	case p.out <- serverFrame{Type: typ, Data: v}:
	case <-p.ctx.Done():
	}
}

func (p *wsPresenter) Message(m bot.ChatMessage) { p.send(frameMessage, m) }
func (p *wsPresenter) Avatar(a bot.AvatarUpdate) { p.send(frameAvatar, a) }
func (p *wsPresenter) State(s bot.StateUpdate) { p.send(frameState, s) }
func (p *wsPresenter) Notice(n bot.Notice) { p.send(frameNotice, n) }
func (p *wsPresenter) Audio(a bot.Audio) { p.send(frameAudio, a) }

// handleChat runs one conversation for the lifetime of the connection.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("character")
	if name == "" {
		name = string(affection.Arisa)
	}
	character, err := affection.ParseCharacter(name)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg.Responder == nil {
		Error(w, http.StatusServiceUnavailable, "Chat provider is not configured")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{s.cfg.AllowedOrigin},
	})
	if err != nil {
		log.Printf("Failed to accept WebSocket: %v", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "session ended")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	presenter := &wsPresenter{ctx: ctx, out: make(chan serverFrame, 64)}
	conv := bot.NewConversation(s.cfg.Options(character), s.cfg.Responder, presenter, s.cfg.Synthesizer)
	log.Printf("Chat session %s opened for %s from %s", conv.ID(), character, r.RemoteAddr)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		conv.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		writeLoop(ctx, ws, presenter.out)
	}()

	readLoop(ctx, ws, conv, presenter)
	cancel()
	wg.Wait()
	log.Printf("Chat session %s closed", conv.ID())
}

func writeLoop(ctx context.Context, ws *websocket.Conn, out <-chan serverFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-out:
			if err := wsjson.Write(ctx, ws, f); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		}
	}
}

func readLoop(ctx context.Context, ws *websocket.Conn, conv *bot.Conversation, p *wsPresenter) {
	for {
		var f clientFrame
		if err := wsjson.Read(ctx, ws, &f); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		if err := dispatch(conv, f); err != nil {
			p.send(frameNotice, bot.Notice{Level: bot.NoticeError, Text: err.Error()})
		}
	}
}

func dispatch(conv *bot.Conversation, f clientFrame) error {
	switch f.Type {
	case frameMessage:
		return conv.SendMessage(f.Text)
	case frameTyping:
		return conv.SetDraft(f.Text)
	case frameMenu:
		if f.Active {
			return conv.OpenMenu()
		}
		return conv.CloseMenu()
	case frameCafe:
		return conv.SetCafeDate(f.Active)
	case frameHands:
		return conv.SetHoldingHands(f.Active)
	case frameBuy:
		return conv.Purchase(f.Item)
	case framePay:
		_, err := conv.Checkout()
		return err
	case frameDismiss:
		return conv.DismissMilestone()
	}
	log.Printf("Ignoring unknown frame type %q", f.Type)
	return nil
}
