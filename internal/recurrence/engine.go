// Package recurrence computes the next due occurrence for timed entries.
// The computation is pure: given the same entry state and reference instant
// it always yields the same result, which is what makes the trigger scan's
// de-duplication sound.
package recurrence

import (
	"errors"
	"time"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/timeutil"
)

// ErrInvalidRepeat indicates the entry carries a repeat pattern the engine
// does not recognise, typically a corrupt stored value.
var ErrInvalidRepeat = errors.New("recurrence: invalid repeat pattern")

// Engine resolves occurrences in a fixed location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates entries in the provided
// location. If loc is nil, the local wall clock is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{location: loc}
}

// Next returns the next minute-truncated instant at or after now at which
// the entry is due. The boolean is false when the entry cannot fire:
// disabled, of countdown kind, or a non-repeating entry that already fired
// or lies in the past.
//
// "Already fired" is decided solely by LastTriggered >= candidate, never by
// elapsed wall-clock time. All comparisons are at minute granularity.
func (e *Engine) Next(a alarm.Alarm, now time.Time) (time.Time, bool, error) {
	if a.Kind == alarm.KindCountdown || !a.IsEnabled {
		return time.Time{}, false, nil
	}

	loc := e.location
	if loc == nil {
		loc = time.Local
	}
	nowMinute := timeutil.TruncateToMinute(now.In(loc))
	sched := a.ScheduledAt.In(loc)

	switch a.Repeat {
	case alarm.RepeatNone:
		candidate := timeutil.TruncateToMinute(sched)
		if candidate.Before(nowMinute) || fired(a, candidate) {
			return time.Time{}, false, nil
		}
		return candidate, true, nil

	case alarm.RepeatDaily:
		candidate := atTimeOfDay(nowMinute, sched, loc)
		if candidate.Before(nowMinute) || fired(a, candidate) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, true, nil

	case alarm.RepeatWeekly:
		days := effectiveWeekdays(a, sched)
		start := atTimeOfDay(nowMinute, sched, loc)
		if start.Before(nowMinute) || fired(a, start) {
			start = start.AddDate(0, 0, 1)
		}
		for i := 0; i < 7; i++ {
			candidate := start.AddDate(0, 0, i)
			if _, ok := days[candidate.Weekday()]; ok {
				return candidate, true, nil
			}
		}
		// Unreachable with a well-formed set, but keep the fallback of
		// skipping one full week.
		return start.AddDate(0, 0, 7), true, nil

	case alarm.RepeatMonthly:
		day := clampDay(sched.Day(), nowMinute.Year(), nowMinute.Month())
		candidate := time.Date(nowMinute.Year(), nowMinute.Month(), day, sched.Hour(), sched.Minute(), 0, 0, loc)
		if candidate.Before(nowMinute) || fired(a, candidate) {
			// Anchor the recomputation on the first day of the following
			// month so a late-January reference never normalises past
			// February.
			next := time.Date(nowMinute.Year(), nowMinute.Month()+1, 1, 0, 0, 0, 0, loc)
			day = clampDay(sched.Day(), next.Year(), next.Month())
			candidate = time.Date(next.Year(), next.Month(), day, sched.Hour(), sched.Minute(), 0, 0, loc)
		}
		return candidate, true, nil

	default:
		return time.Time{}, false, ErrInvalidRepeat
	}
}

func fired(a alarm.Alarm, candidate time.Time) bool {
	return a.LastTriggered != nil && !a.LastTriggered.Before(candidate)
}

// atTimeOfDay places the template's hour and minute onto the date of ref.
func atTimeOfDay(ref, template time.Time, loc *time.Location) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), template.Hour(), template.Minute(), 0, 0, loc)
}

// effectiveWeekdays returns the selected weekday set, or the scheduled
// weekday when the selection is empty. The fallback is re-derived from
// ScheduledAt on every call rather than frozen at creation time.
func effectiveWeekdays(a alarm.Alarm, sched time.Time) map[time.Weekday]struct{} {
	set := make(map[time.Weekday]struct{}, len(a.SelectedWeekdays))
	for _, day := range a.SelectedWeekdays {
		set[time.Weekday(day)] = struct{}{}
	}
	if len(set) == 0 {
		set[sched.Weekday()] = struct{}{}
	}
	return set
}

func clampDay(day, year int, month time.Month) int {
	if last := daysInMonth(year, month); day > last {
		return last
	}
	return day
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
