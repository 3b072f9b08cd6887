package bot

import (
	"context"

	"companion/pkg/affection"
	"companion/pkg/cafe"
)

// Provider is the hosted chat model. It returns the raw model text, which is
// expected to hold the JSON reply object.
type Provider interface {
	Complete(ctx context.Context, system string, history []Turn, message string) (string, error)
}

type Classifier interface {
	Classify(text string, labels []string) (string, float64, error)
}

// Synthesizer turns reply text into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (audio []byte, contentType string, err error)
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Presenter is the UI side of a conversation. Every method is called from the
// conversation's event loop, one at a time, and must not block for long.
type Presenter interface {
	Message(m ChatMessage)
	Avatar(a AvatarUpdate)
	State(s StateUpdate)
	Notice(n Notice)
	Audio(a Audio)
}

// ChatMessage is one line of the visible transcript.
type ChatMessage struct {
	Role     string            `json:"role"`
	Text     string            `json:"text"`
	Emotion  affection.Emotion `json:"emotion,omitempty"`
	Auto     bool              `json:"auto,omitempty"`
	Fallback bool              `json:"fallback,omitempty"`
}

// AvatarUpdate tells the renderer which expression and gesture to play.
type AvatarUpdate struct {
	Character  affection.Character `json:"character"`
	Emotion    affection.Emotion   `json:"effectiveEmotion"`
	RawEmotion affection.Emotion   `json:"rawEmotion"`
	Affection  int                 `json:"affectionScore"`
	Motion     string              `json:"motionTag,omitempty"`
	Expression string              `json:"expression"`
}

// StateUpdate is everything the meter, unlock gates and café panel read.
type StateUpdate struct {
	affection.Snapshot
	ActiveMilestone *affection.Milestone `json:"activeMilestone"`
	Ledger          cafe.View            `json:"ledger"`
	Emotion         affection.Emotion    `json:"emotion"`
	Thinking        bool                 `json:"thinking"`
	Loading         bool                 `json:"loading"`
	MenuOpen        bool                 `json:"menuOpen"`
}

const (
	NoticeError     = "error"
	NoticeInfo      = "info"
	NoticeMilestone = "milestone"
)

type Notice struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

type Audio struct {
	Data        []byte `json:"audio"`
	ContentType string `json:"contentType"`
}
