// Package timeutil provides the minute-granularity helpers shared by the
// recurrence engine and the trigger scan.
package timeutil

import (
	"fmt"
	"time"
)

// TruncateToMinute drops the seconds and sub-second components of t while
// preserving its location. All due-time comparisons happen at this precision.
func TruncateToMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// SameMinute reports whether a and b fall within the same calendar minute.
func SameMinute(a, b time.Time) bool {
	return TruncateToMinute(a).Equal(TruncateToMinute(b))
}

// FormatDuration renders d as a short human readable string, e.g. "2h 30m"
// or "45m". Negative durations are clamped to zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Minutes())
	if minutes >= 60 {
		if minutes%60 == 0 {
			return fmt.Sprintf("%dh", minutes/60)
		}
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
