package bot

const (
	RoleUser  = "user"
	RoleModel = "model"

	// MaxHistory is how many turns are sent back to the provider.
	MaxHistory = 30
)

// Turn is one history entry in provider roles.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is a bounded chat transcript. Oldest turns are dropped first.
type History struct {
	turns []Turn
	max   int
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = MaxHistory
	}
	return &History{max: max}
}

func (h *History) Add(role, content string) {
	h.turns = append(h.turns, Turn{Role: role, Content: content})
	if over := len(h.turns) - h.max; over > 0 {
		h.turns = append([]Turn(nil), h.turns[over:]...)
	}
}

// Turns returns a copy safe to hand to another goroutine.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	return len(h.turns)
}

func (h *History) Clear() {
	h.turns = nil
}
