package bot

import (
	"context"
	"fmt"
	"log"
)

// Responder runs one chat turn against the provider and validates the result.
type Responder struct {
	provider   Provider
	classifier Classifier
}

// NewResponder wires the chat provider. classifier may be nil, in which case
// unknown emotion tags fall back to Normal.
func NewResponder(p Provider, cl Classifier) *Responder {
	return &Responder{provider: p, classifier: cl}
}

// Respond returns an error only when the provider failed. A reply that could
// not be parsed is not an error; it comes back as ReplyMalformed.
func (r *Responder) Respond(ctx context.Context, req ChatRequest) (Reply, error) {
	message := req.Message
	switch {
	case req.Confession:
		message = confessionPrompt
	case req.IsAutoMessage:
		message = autoMessagePrompt
	}

	raw, err := r.provider.Complete(ctx, BuildSystemPrompt(req), req.History, message)
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion failed: %w", err)
	}

	reply := ParseReply(raw, req.Character)
	if reply.Kind == ReplyMalformed {
		log.Printf("Malformed chat reply for %s, showing raw text", req.Character)
		return reply, nil
	}

	if !reply.EmotionKnown && r.classifier != nil {
		label, score, err := r.classifier.Classify(reply.Text, req.Character.Labels())
		if err != nil {
			log.Printf("Error classifying reply emotion: %v", err)
		} else if e, ok := req.Character.ParseEmotion(label); ok {
			log.Printf("Classified reply emotion as %s (%.2f), model said %q", e, score, reply.RawEmotion)
			reply.Emotion = e
			reply.EmotionKnown = true
		}
	}

	return reply, nil
}
