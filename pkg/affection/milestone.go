package affection

import (
	"fmt"
	"log"
)

// Milestone is a one-shot event fired the first time the score reaches
// Threshold.
type Milestone struct {
	Threshold   int
	Label       string
	Description string
	// Confession schedules a scripted confession turn after the milestone.
	Confession bool
}

// Milestones is the ordered catalog.
var Milestones = []Milestone{
	{
		Threshold:   25,
		Label:       "Friends",
		Description: "You're not strangers anymore. Conversations feel easier now.",
	},
	{
		Threshold:   50,
		Label:       "First Date",
		Description: "Cafe date unlocked! Why not take them somewhere nice?",
	},
	{
		Threshold:   75,
		Label:       "Falling For You",
		Description: "Something feels different... You can hold hands now.",
		Confession:  true,
	},
	{
		Threshold:   100,
		Label:       "Soulmates",
		Description: "Your hearts are in perfect sync.",
	},
}

// MilestonePolicy decides how many thresholds may fire in one check.
type MilestonePolicy string

const (
	// FireFirst fires only the lowest unfired threshold that was reached.
	FireFirst MilestonePolicy = "first"
	// FireAll fires every newly reached threshold, lowest first.
	FireAll MilestonePolicy = "all"
)

func ParseMilestonePolicy(s string) (MilestonePolicy, error) {
	switch MilestonePolicy(s) {
	case FireFirst, FireAll:
		return MilestonePolicy(s), nil
	case "":
		return FireAll, nil
	}
	return "", fmt.Errorf("unknown milestone policy: %q", s)
}

// CheckMilestones marks and returns the milestones newly reached at the given
// score. A threshold fires at most once per session.
func CheckMilestones(s *Session, affection int, policy MilestonePolicy) []Milestone {
	var fired []Milestone
	for _, m := range Milestones {
		if s.MilestoneShown(m.Threshold) || affection < m.Threshold {
			continue
		}
		s.markMilestone(m.Threshold)
		fired = append(fired, m)
		log.Printf("Milestone reached for session %s: %s (%d)", s.ID, m.Label, m.Threshold)
		if policy == FireFirst {
			break
		}
	}
	return fired
}
