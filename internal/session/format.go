package session

import (
	"fmt"

	"github.com/ekosmy/portfolio/internal/quiz"
)

// LowTimeThreshold is when the countdown is shown as urgent.
const LowTimeThreshold = 300

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func LowTime(seconds int) bool { return seconds < LowTimeThreshold }

// Percentage is the display share of r, one decimal.
func Percentage(r quiz.Result) string { return r.Percentage() }

// ProgressPercent is how far along position index (0 based) is.
func ProgressPercent(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(index+1) / float64(total) * 100
}
