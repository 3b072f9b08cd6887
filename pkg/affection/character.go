package affection

import (
	"fmt"
	"strings"
)

// Emotion is the expression tag shown on the avatar.
type Emotion string

const (
	Angry     Emotion = "Angry"
	Sad       Emotion = "Sad"
	Smile     Emotion = "Smile"
	Surprised Emotion = "Surprised"
	Normal    Emotion = "Normal"
	Blushing  Emotion = "Blushing"
	Nervous   Emotion = "Nervous"
)

// Character identifies which companion a session is talking to.
type Character string

const (
	Arisa   Character = "arisa"
	Chitose Character = "chitose"
)

// Profile is the static per-character data: vocabulary, scoring table and
// the assets the renderer needs.
type Profile struct {
	Character   Character
	DisplayName string
	Title       string
	VoiceID     string
	Greeting    string
	Emotions    []Emotion
	Multipliers map[Emotion]float64
	Expressions map[Emotion]string
	Motions     []string
}

var profiles = map[Character]*Profile{
	Arisa: {
		Character:   Arisa,
		DisplayName: "Arisa",
		Title:       "Arisa (your girlfriend)",
		VoiceID:     "21m00Tcm4TlvDq8ikWAM",
		Greeting:    "Oh... um, hi there~ I didn't think you'd show up today...",
		Emotions:    []Emotion{Angry, Sad, Smile, Surprised, Normal},
		Multipliers: map[Emotion]float64{
			Smile:     3,
			Surprised: 2,
			Normal:    0,
			Sad:       -0.5,
			Angry:     -3,
		},
		Expressions: map[Emotion]string{
			Angry:     "Angry",
			Sad:       "Sad",
			Smile:     "Smile",
			Surprised: "Surprised",
			Normal:    "Normal",
		},
		Motions: []string{"tap"},
	},
	Chitose: {
		Character:   Chitose,
		DisplayName: "Chitose",
		Title:       "Chitose (your boyfriend)",
		VoiceID:     "TxGEqnHWrfWFTfGW9XjX",
		Greeting:    "Hey there~ Didn't think I'll get to see you today",
		Emotions:    []Emotion{Angry, Sad, Smile, Surprised, Normal, Blushing, Nervous},
		// Normal still grows the score slowly for Chitose.
		Multipliers: map[Emotion]float64{
			Smile:     3,
			Surprised: 2,
			Normal:    1,
			Sad:       -0.5,
			Angry:     -1,
			Blushing:  3,
			Nervous:   1,
		},
		Expressions: map[Emotion]string{
			Angry:     "Angry.exp3.json",
			Sad:       "Sad.exp3.json",
			Smile:     "Smile.exp3.json",
			Surprised: "Surprised.exp3.json",
			Normal:    "Normal.exp3.json",
			Blushing:  "Blushing.exp3.json",
			Nervous:   "f01.exp3.json",
		},
		Motions: []string{"wave", "pose"},
	},
}

// Characters returns the roster in a stable order.
func Characters() []*Profile {
	return []*Profile{profiles[Arisa], profiles[Chitose]}
}

// ParseCharacter resolves a character name, case-insensitively.
func ParseCharacter(name string) (Character, error) {
	c := Character(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := profiles[c]; !ok {
		return "", fmt.Errorf("unknown character: %q", name)
	}
	return c, nil
}

// Profile returns the static data for the character. Unknown characters get
// Arisa's profile.
func (c Character) Profile() *Profile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return profiles[Arisa]
}

// Supports reports whether e is in the character's vocabulary.
func (c Character) Supports(e Emotion) bool {
	for _, known := range c.Profile().Emotions {
		if known == e {
			return true
		}
	}
	return false
}

// ParseEmotion matches a tag against the character's vocabulary.
func (c Character) ParseEmotion(tag string) (Emotion, bool) {
	tag = strings.TrimSpace(tag)
	for _, known := range c.Profile().Emotions {
		if strings.EqualFold(string(known), tag) {
			return known, true
		}
	}
	return Normal, false
}

// ParseMotion returns the motion if the character can play it.
func (c Character) ParseMotion(tag string) (string, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, m := range c.Profile().Motions {
		if m == tag {
			return m, true
		}
	}
	return "", false
}

// Labels returns the vocabulary as plain strings, for classifiers.
func (c Character) Labels() []string {
	emotions := c.Profile().Emotions
	labels := make([]string, len(emotions))
	for i, e := range emotions {
		labels[i] = string(e)
	}
	return labels
}
