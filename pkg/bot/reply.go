package bot

import (
	"encoding/json"
	"log"
	"strings"

	"companion/pkg/affection"
)

type ReplyKind int

const (
	// ReplyOK is a well-formed reply object.
	ReplyOK ReplyKind = iota
	// ReplyMalformed carries the raw model text. It never moves the score.
	ReplyMalformed
)

func (k ReplyKind) String() string {
	if k == ReplyMalformed {
		return "malformed"
	}
	return "ok"
}

// Reply is the validated result of one chat turn.
type Reply struct {
	Kind ReplyKind
	Text string
	// Emotion is always in the character's vocabulary. EmotionKnown is false
	// when the model's tag was missing or unknown and Emotion is a default.
	Emotion        affection.Emotion
	EmotionKnown   bool
	RawEmotion     string
	AffectionDelta *float64
	Motion         string
}

// ChatRequest is one turn sent to the chat collaborator.
type ChatRequest struct {
	Message       string              `json:"message"`
	History       []Turn              `json:"history"`
	Character     affection.Character `json:"character"`
	Affection     int                 `json:"affection"`
	HoldingHands  bool                `json:"holdingHands"`
	CafeDate      bool                `json:"cafeDate"`
	IsAutoMessage bool                `json:"isAutoMessage"`
	Confession    bool                `json:"confession"`
}

const noResponse = "(No response)"

// ParseReply validates raw model output for character c. Anything that is not
// a JSON object with a non-blank string "reply" comes back malformed.
func ParseReply(raw string, c affection.Character) Reply {
	body := stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return malformed(raw)
	}

	var text string
	if err := json.Unmarshal(fields["reply"], &text); err != nil || strings.TrimSpace(text) == "" {
		return malformed(raw)
	}

	r := Reply{
		Kind:    ReplyOK,
		Text:    strings.TrimSpace(text),
		Emotion: affection.Normal,
	}

	var tag string
	if v, ok := fields["emotion"]; ok && json.Unmarshal(v, &tag) == nil {
		r.RawEmotion = tag
		r.Emotion, r.EmotionKnown = c.ParseEmotion(tag)
	}

	if v, ok := fields["affectionChange"]; ok && string(v) != "null" {
		var delta float64
		if err := json.Unmarshal(v, &delta); err != nil {
			log.Printf("Ignoring non-numeric affectionChange %s", v)
		} else {
			delta = affection.ClampAIDelta(delta)
			r.AffectionDelta = &delta
		}
	}

	var motion string
	if v, ok := fields["motion"]; ok && json.Unmarshal(v, &motion) == nil {
		r.Motion, _ = c.ParseMotion(motion)
	}

	return r
}

func malformed(raw string) Reply {
	text := strings.TrimSpace(raw)
	if text == "" {
		text = noResponse
	}
	return Reply{
		Kind:    ReplyMalformed,
		Text:    text,
		Emotion: affection.Normal,
	}
}

// stripCodeFence removes a ```json ... ``` wrapper if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
