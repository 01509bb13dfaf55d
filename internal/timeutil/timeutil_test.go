package timeutil

import (
	"testing"
	"time"
)

func TestTruncateToMinute(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("KST", 9*60*60)
	in := time.Date(2024, time.March, 14, 9, 41, 59, 123456789, loc)
	got := TruncateToMinute(in)
	want := time.Date(2024, time.March, 14, 9, 41, 0, 0, loc)

	if !got.Equal(want) {
		t.Fatalf("TruncateToMinute = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Fatalf("TruncateToMinute changed location to %v", got.Location())
	}
}

func TestSameMinute(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, time.March, 14, 9, 41, 0, 0, time.Local)

	cases := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{"identical", base, base, true},
		{"different seconds", base.Add(5 * time.Second), base.Add(59 * time.Second), true},
		{"adjacent minutes", base.Add(59 * time.Second), base.Add(61 * time.Second), false},
		{"different days", base, base.AddDate(0, 0, 1), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SameMinute(tc.a, tc.b); got != tc.want {
				t.Fatalf("SameMinute(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Minute, "45m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1h 30m"},
		{3 * time.Hour, "3h"},
		{30 * time.Second, "0m"},
		{-5 * time.Minute, "0m"},
	}

	for _, tc := range cases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
