package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/example/reminder-engine/internal/alarm"
)

// ErrNotFound is returned when the requested entry does not exist.
var ErrNotFound = errors.New("engine: entry not found")

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func validateAlarm(a alarm.Alarm) error {
	vErr := &ValidationError{}

	if strings.TrimSpace(a.Title) == "" {
		vErr.add("title", "title is required")
	}

	switch a.Kind {
	case alarm.KindTimed:
		if a.ScheduledAt.IsZero() {
			vErr.add("scheduled_at", "scheduled time is required")
		}
		if !a.Repeat.Valid() {
			vErr.add("repeat", "unknown repeat pattern")
		}
		for _, day := range a.SelectedWeekdays {
			if day < 0 || day > alarm.Weekday(time.Saturday) {
				vErr.add("selected_weekdays", "weekday out of range")
				break
			}
		}
	case alarm.KindCountdown:
		if a.TargetDate == nil {
			vErr.add("target_date", "target date is required")
		}
	default:
		vErr.add("kind", "unknown entry kind")
	}

	if a.AutoDismissMinutes < 0 {
		vErr.add("auto_dismiss_minutes", "must not be negative")
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
