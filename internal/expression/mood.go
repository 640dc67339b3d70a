// Package expression holds the facial side of the character: mood presets,
// the mood transition controller and the single-slot gesture controller that
// overlays winks, talking and head shakes.
package expression

import "strings"

// Mood is one of a fixed set of facial moods.
type Mood string

const (
	MoodNeutral   Mood = "neutral"
	MoodSmile     Mood = "smile"
	MoodFrown     Mood = "frown"
	MoodLaugh     Mood = "laugh"
	MoodAngry     Mood = "angry"
	MoodSad       Mood = "sad"
	MoodSurprise  Mood = "surprise"
	MoodConfusion Mood = "confusion"
	MoodThinking  Mood = "thinking"
)

// Moods lists every mood in display order.
func Moods() []Mood {
	return []Mood{
		MoodNeutral, MoodSmile, MoodFrown, MoodLaugh, MoodAngry,
		MoodSad, MoodSurprise, MoodConfusion, MoodThinking,
	}
}

// Valid reports whether m is a known mood.
func (m Mood) Valid() bool {
	_, ok := presets[m]
	return ok
}

// ParseMood converts a command string to a Mood.
func ParseMood(s string) (Mood, bool) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}
