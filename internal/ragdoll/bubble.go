package ragdoll

import (
	"fmt"
	"math"
	"strings"
)

const (
	wordsPerSecond = 3.5
	readingPad     = 0.2
	minReadingTime = 0.5
)

// ReadingTime is how long (seconds) the character talks for a bubble.
func ReadingTime(text string) float64 {
	words := len(strings.Fields(text))
	return math.Max(minReadingTime, float64(words)/wordsPerSecond+readingPad)
}

// Timer announcements.
func sessionStartMessage(minutes float64) string {
	return fmt.Sprintf("Focus time! %s minutes. Let's go.", formatMinutes(minutes))
}

func breakStartMessage(minutes float64) string {
	return fmt.Sprintf("Nice work! Take a %s minute break.", formatMinutes(minutes))
}

const (
	breakEndMessage    = "Break's over. Ready for another round?"
	fiveMinuteReminder = "5 minutes left!"
)

func formatMinutes(m float64) string {
	if m == math.Trunc(m) {
		return fmt.Sprintf("%d", int(m))
	}
	return fmt.Sprintf("%.1f", m)
}
