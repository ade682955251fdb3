package tools

import (
	"fmt"
	"time"
)

// HumanDate describes t the way a person would, e.g.
// "Today on 18th of October, Sunday evening".
func HumanDate(t time.Time) string {
	day := t.Day()
	return fmt.Sprintf(
		"Today on %d%s of %s, %s %s",
		day, ordinalSuffix(day), t.Month(), t.Weekday(), partOfDay(t.Hour()),
	)
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2: //nolint:mnd
		return "nd"
	case 3: //nolint:mnd
		return "rd"
	default:
		return "th"
	}
}

func partOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}
