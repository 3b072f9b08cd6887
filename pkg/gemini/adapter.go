package gemini

import (
	"context"

	"companion/pkg/bot"
)

// Adapter wraps Client to implement bot.Provider and bot.Classifier.
type Adapter struct {
	client *Client
}

// NewAdapter returns nil when no key is configured so callers can skip the
// provider entirely.
func NewAdapter(client *Client) *Adapter {
	if client == nil || !client.Configured() {
		return nil
	}
	return &Adapter{client: client}
}

// Complete sends the persona as the system instruction and replays history
// in Gemini roles.
func (a *Adapter) Complete(ctx context.Context, system string, history []bot.Turn, message string) (string, error) {
	contents := make([]Content, 0, len(history)+1)
	for _, t := range history {
		role := "user"
		if t.Role == bot.RoleModel {
			role = "model"
		}
		contents = append(contents, TextContent(role, t.Content))
	}
	contents = append(contents, TextContent("user", message))

	return a.client.Generate(ctx, system, contents, true)
}

func (a *Adapter) Classify(text string, labels []string) (string, float64, error) {
	return a.client.Classify(text, labels)
}
