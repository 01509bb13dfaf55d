package recurrence

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/timeutil"
)

// drawTime produces an arbitrary minute-ish instant within a few decades.
func drawTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(0, 2_000_000_000).Draw(t, label)
	return time.Unix(sec, 0).UTC()
}

func drawWeekdays(t *rapid.T) []alarm.Weekday {
	n := rapid.IntRange(0, 7).Draw(t, "num_weekdays")
	days := make([]alarm.Weekday, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, alarm.Weekday(rapid.IntRange(0, 6).Draw(t, "weekday")))
	}
	return days
}

func TestEngine_Next_WeeklyWeekdayMembership(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)

	rapid.Check(t, func(t *rapid.T) {
		a := alarm.Alarm{
			ID:               "w",
			Kind:             alarm.KindTimed,
			Repeat:           alarm.RepeatWeekly,
			ScheduledAt:      drawTime(t, "scheduled_at"),
			SelectedWeekdays: drawWeekdays(t),
			IsEnabled:        true,
		}
		now := drawTime(t, "now")

		next, ok, err := engine.Next(a, now)
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		if !ok {
			t.Fatal("weekly entry must always have a next occurrence")
		}

		allowed := make(map[time.Weekday]bool)
		for _, d := range a.SelectedWeekdays {
			allowed[time.Weekday(d)] = true
		}
		if len(allowed) == 0 {
			allowed[a.ScheduledAt.UTC().Weekday()] = true
		}
		if !allowed[next.Weekday()] {
			t.Fatalf("occurrence weekday %v not in effective set %v", next.Weekday(), a.SelectedWeekdays)
		}
	})
}

func TestEngine_Next_MonthlyClamp(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)

	rapid.Check(t, func(t *rapid.T) {
		day := rapid.IntRange(1, 31).Draw(t, "day")
		sched := time.Date(2024, time.January, 1, rapid.IntRange(0, 23).Draw(t, "hour"), rapid.IntRange(0, 59).Draw(t, "minute"), 0, 0, time.UTC)
		sched = sched.AddDate(0, 0, day-1)
		a := alarm.Alarm{
			ID:          "m",
			Kind:        alarm.KindTimed,
			Repeat:      alarm.RepeatMonthly,
			ScheduledAt: sched,
			IsEnabled:   true,
		}
		now := drawTime(t, "now")

		next, ok, err := engine.Next(a, now)
		if err != nil || !ok {
			t.Fatalf("Next returned ok=%v err=%v", ok, err)
		}
		if next.Day() > sched.Day() {
			t.Fatalf("clamped day %d exceeds scheduled day %d", next.Day(), sched.Day())
		}
		if sched.Day() <= 28 && next.Day() != sched.Day() {
			t.Fatalf("day %d needs no clamping but got %d", sched.Day(), next.Day())
		}
		if next.Hour() != sched.Hour() || next.Minute() != sched.Minute() {
			t.Fatalf("occurrence %v lost the scheduled time of day %02d:%02d", next, sched.Hour(), sched.Minute())
		}
	})
}

func TestEngine_Next_NeverInThePast(t *testing.T) {
	t.Parallel()

	engine := NewEngine(time.UTC)
	repeats := []alarm.Repeat{alarm.RepeatNone, alarm.RepeatDaily, alarm.RepeatWeekly, alarm.RepeatMonthly}

	rapid.Check(t, func(t *rapid.T) {
		a := alarm.Alarm{
			ID:               "p",
			Kind:             alarm.KindTimed,
			Repeat:           repeats[rapid.IntRange(0, len(repeats)-1).Draw(t, "repeat")],
			ScheduledAt:      drawTime(t, "scheduled_at"),
			SelectedWeekdays: drawWeekdays(t),
			IsEnabled:        true,
		}
		if rapid.Bool().Draw(t, "has_last_triggered") {
			lt := drawTime(t, "last_triggered")
			a.LastTriggered = &lt
		}
		now := drawTime(t, "now")

		next, ok, err := engine.Next(a, now)
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		if !ok {
			return
		}
		if next.Before(timeutil.TruncateToMinute(now)) {
			t.Fatalf("occurrence %v lies before the reference minute %v", next, now)
		}
		if next.Second() != 0 || next.Nanosecond() != 0 {
			t.Fatalf("occurrence %v is not minute truncated", next)
		}
	})
}
