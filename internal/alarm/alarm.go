// Package alarm defines the schedulable entry model shared by the trigger
// engine, the focus session manager and the persistence gateway.
package alarm

import (
	"fmt"
	"time"
)

// Kind distinguishes trigger-producing entries from countdown targets.
type Kind int

const (
	// KindTimed is a recurring or one-shot alarm that produces triggers.
	KindTimed Kind = iota
	// KindCountdown is a date countdown; it never produces triggers.
	KindCountdown
)

// Repeat identifies the recurrence pattern of a timed entry.
type Repeat int

const (
	// RepeatNone fires at most once, at the scheduled instant.
	RepeatNone Repeat = iota
	// RepeatDaily fires every day at the scheduled hour and minute.
	RepeatDaily
	// RepeatWeekly fires on the selected weekdays, or on the scheduled
	// weekday when no selection was made.
	RepeatWeekly
	// RepeatMonthly fires on the scheduled day of each month, clamped to
	// the last day of shorter months.
	RepeatMonthly

	// repeatInvalid marks a repeat value that could not be decoded. Entries
	// carrying it are reported as evaluation faults instead of silently
	// dropping the whole document.
	repeatInvalid Repeat = -1
)

// Priority orders entries for display purposes.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Weekday wraps time.Weekday so weekday selections serialize as names
// ("Monday") rather than integers.
type Weekday time.Weekday

// Alarm is a single schedulable entry. Timed entries are evaluated by the
// recurrence engine; countdown entries only expose day-distance helpers.
type Alarm struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Kind               Kind       `json:"kind"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	Repeat             Repeat     `json:"repeat"`
	SelectedWeekdays   []Weekday  `json:"selected_weekdays,omitempty"`
	LastTriggered      *time.Time `json:"last_triggered,omitempty"`
	AutoDismissMinutes int        `json:"auto_dismiss_minutes"`
	IsTemporary        bool       `json:"is_temporary"`
	TargetDate         *time.Time `json:"target_date,omitempty"`
	Memo               string     `json:"memo,omitempty"`
	IsEnabled          bool       `json:"is_enabled"`
	Category           string     `json:"category,omitempty"`
	Priority           Priority   `json:"priority"`
}

// Clone returns a deep copy so snapshots handed to consumers never alias
// the engine's authoritative state.
func (a Alarm) Clone() Alarm {
	out := a
	if a.LastTriggered != nil {
		t := *a.LastTriggered
		out.LastTriggered = &t
	}
	if a.TargetDate != nil {
		t := *a.TargetDate
		out.TargetDate = &t
	}
	if a.SelectedWeekdays != nil {
		out.SelectedWeekdays = make([]Weekday, len(a.SelectedWeekdays))
		copy(out.SelectedWeekdays, a.SelectedWeekdays)
	}
	return out
}

// DaysRemaining returns the whole-day distance from now to the countdown
// target, negative for passed targets. It returns false for timed entries
// or countdowns without a target date.
func (a Alarm) DaysRemaining(now time.Time) (int, bool) {
	if a.Kind != KindCountdown || a.TargetDate == nil {
		return 0, false
	}
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	t := a.TargetDate.In(now.Location())
	targetDate := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	return int(targetDate.Sub(nowDate).Hours() / 24), true
}

// DdayLabel renders the countdown distance as "D-30" or "D-day". Passed
// targets and timed entries yield an empty string.
func (a Alarm) DdayLabel(now time.Time) string {
	days, ok := a.DaysRemaining(now)
	if !ok || days < 0 {
		return ""
	}
	if days == 0 {
		return "D-day"
	}
	return fmt.Sprintf("D-%d", days)
}

// IsPassed reports whether a countdown entry's target date lies in the past.
func (a Alarm) IsPassed(now time.Time) bool {
	days, ok := a.DaysRemaining(now)
	return ok && days < 0
}

// RepeatLabel returns the human readable recurrence description recorded on
// missed entries.
func (a Alarm) RepeatLabel() string {
	switch a.Repeat {
	case RepeatDaily:
		return "daily"
	case RepeatWeekly:
		return "weekly"
	case RepeatMonthly:
		return "monthly"
	default:
		return "none"
	}
}

// Valid reports whether the repeat value is one of the known patterns.
func (r Repeat) Valid() bool {
	switch r {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	}
	return false
}

// DefaultCategories is the category list seeded into fresh settings.
func DefaultCategories() []string {
	return []string{"general", "work", "personal", "appointment", "anniversary"}
}
