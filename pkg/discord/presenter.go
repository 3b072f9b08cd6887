package discord

import (
	"bytes"
	"context"
	"log"
	"strings"

	"companion/pkg/bot"

	"github.com/bwmarrin/discordgo"
)

// dmPresenter renders one conversation into a DM channel. Conversation
// callbacks only enqueue; run does the Discord calls in order.
type dmPresenter struct {
	ctx       context.Context
	session   Session
	channelID string
	typing    TypingConfig
	outbox    chan func()

	thinking bool
}

func newDMPresenter(ctx context.Context, s Session, channelID string, typing TypingConfig) *dmPresenter {
	return &dmPresenter{
		ctx:       ctx,
		session:   s,
		channelID: channelID,
		typing:    typing,
		outbox:    make(chan func(), 64),
	}
}

func (p *dmPresenter) run() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn := <-p.outbox:
			fn()
		}
	}
}

func (p *dmPresenter) enqueue(fn func()) {
	select {
	case p.outbox <- fn:
	case <-p.ctx.Done():
	}
}

func (p *dmPresenter) send(content string) {
	if _, err := p.session.ChannelMessageSend(p.channelID, content); err != nil {
		log.Printf("Error sending DM: %v", err)
	}
}

// Message posts the character's lines. The user's own lines are already in
// the channel.
func (p *dmPresenter) Message(m bot.ChatMessage) {
	if m.Role != bot.RoleModel {
		return
	}
	p.enqueue(func() {
		simulateTyping(p.session, p.channelID, CalculateTypingDuration(len(m.Text), m.Emotion, p.typing))
		p.send(m.Text)
	})
}

func (p *dmPresenter) Avatar(bot.AvatarUpdate) {}

// State shows the typing indicator while a reply is pending. It is only
// called from the conversation loop, so thinking needs no lock.
func (p *dmPresenter) State(s bot.StateUpdate) {
	started := s.Thinking && !p.thinking
	p.thinking = s.Thinking
	if started {
		p.enqueue(func() { p.session.ChannelTyping(p.channelID) })
	}
}

func (p *dmPresenter) Notice(n bot.Notice) {
	var text string
	switch n.Level {
	case bot.NoticeMilestone:
		text = "💕 **Milestone** " + n.Text
	case bot.NoticeError:
		text = "⚠️ " + n.Text
	default:
		text = n.Text
	}
	p.enqueue(func() { p.send(text) })
}

func (p *dmPresenter) Audio(a bot.Audio) {
	name := "voice.mp3"
	if !strings.Contains(a.ContentType, "mpeg") && strings.HasPrefix(a.ContentType, "audio/") {
		name = "voice." + strings.TrimPrefix(a.ContentType, "audio/")
	}
	p.enqueue(func() {
		_, err := p.session.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
			Files: []*discordgo.File{{
				Name:        name,
				ContentType: a.ContentType,
				Reader:      bytes.NewReader(a.Data),
			}},
		})
		if err != nil {
			log.Printf("Error sending voice clip: %v", err)
		}
	})
}
