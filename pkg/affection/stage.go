package affection

// Stage is the named relationship tier derived from the score.
type Stage struct {
	Name  string
	Tier  int
	Emoji string
}

// Stages in tier order. MinAffection is the first score of the stage.
var Stages = []struct {
	Stage
	MinAffection int
}{
	{Stage{Name: "Strangers", Tier: 0, Emoji: "👋"}, 0},
	{Stage{Name: "Friends", Tier: 1, Emoji: "🙂"}, 25},
	{Stage{Name: "Dating", Tier: 2, Emoji: "💕"}, 50},
	{Stage{Name: "In Love", Tier: 3, Emoji: "💗"}, 75},
	{Stage{Name: "Soulmates", Tier: 4, Emoji: "💖"}, 100},
}

// StageFor maps a score to its stage. Scores outside 0..100 are clamped
// first, so the function is total.
func StageFor(affection int) Stage {
	affection = Clamp(affection)
	stage := Stages[0].Stage
	for _, s := range Stages {
		if affection >= s.MinAffection {
			stage = s.Stage
		}
	}
	return stage
}
