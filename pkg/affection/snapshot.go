package affection

// Snapshot is the relationship state the UI reflects.
type Snapshot struct {
	SessionID               string    `json:"sessionId"`
	Character               Character `json:"character"`
	AffectionScore          int       `json:"affectionScore"`
	RelationshipStage       string    `json:"relationshipStage"`
	Tier                    int       `json:"tier"`
	IsCafeDateUnlocked      bool      `json:"isCafeDateUnlocked"`
	IsCafeDateActive        bool      `json:"isCafeDateActive"`
	IsHandHoldingOfferable  bool      `json:"isHandHoldingOfferable"`
	HoldingHands            bool      `json:"holdingHands"`
	ConsecutiveAutoMessages int       `json:"consecutiveAutoMessages"`
	ShownMilestones         []int     `json:"shownMilestones"`
}

// Snapshot recomputes the derived fields from the current score.
func (s *Session) Snapshot() Snapshot {
	stage := StageFor(s.Affection)
	return Snapshot{
		SessionID:               s.ID,
		Character:               s.Character,
		AffectionScore:          s.Affection,
		RelationshipStage:       stage.Name,
		Tier:                    stage.Tier,
		IsCafeDateUnlocked:      s.CafeDateUnlocked(),
		IsCafeDateActive:        s.CafeDateActive,
		IsHandHoldingOfferable:  s.HandHoldingOfferable(),
		HoldingHands:            s.HoldingHands,
		ConsecutiveAutoMessages: s.ConsecutiveAutoMessages,
		ShownMilestones:         s.ShownMilestones(),
	}
}
