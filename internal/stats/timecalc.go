package stats

import (
	"fmt"
	"math"

	"presence/internal/models"
)

// SecondsSinceMidnight returns the number of seconds elapsed since 00:00:00.
func SecondsSinceMidnight(t models.TimeOfDay) int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Interval returns the signed number of seconds from a to b. The result is
// negative when b precedes a.
func Interval(a, b models.TimeOfDay) int {
	return SecondsSinceMidnight(b) - SecondsSinceMidnight(a)
}

// FormatSeconds renders a number of seconds as HH:MM:SS, rounding to the
// nearest second.
func FormatSeconds(seconds float64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	total := int(math.Round(seconds))
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, total/3600, total%3600/60, total%60)
}
