package focus

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/testfixtures"
)

func newTestManager(t *testing.T) (*Manager, *testfixtures.MemoryStore, *testfixtures.Clock) {
	t.Helper()
	store := testfixtures.NewMemoryStore()
	clock := testfixtures.NewClock(time.Time{})
	manager := NewManager(store, clock.NowFunc(), time.Minute, slog.New(slog.DiscardHandler))
	return manager, store, clock
}

func TestManager_StartAndRemaining(t *testing.T) {
	t.Parallel()

	manager, store, clock := newTestManager(t)
	ctx := context.Background()

	if err := manager.Start(ctx, 30); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !manager.Active() {
		t.Fatal("session not active after Start")
	}
	if got := manager.Remaining(); got != 30*time.Minute {
		t.Fatalf("Remaining = %v, want 30m", got)
	}

	clock.Advance(10 * time.Minute)
	if got := manager.Remaining(); got != 20*time.Minute {
		t.Fatalf("Remaining = %v, want 20m", got)
	}

	settings, _ := store.LoadSettings(ctx)
	if !settings.FocusActive || settings.FocusEndAt == nil {
		t.Fatalf("session state not persisted: %+v", settings)
	}
}

func TestManager_ActiveExpiresWithClock(t *testing.T) {
	t.Parallel()

	manager, _, clock := newTestManager(t)
	if err := manager.Start(context.Background(), 30); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(31 * time.Minute)
	if manager.Active() {
		t.Fatal("session still active past its end instant")
	}
	if got := manager.Remaining(); got != 0 {
		t.Fatalf("Remaining = %v, want 0", got)
	}
}

func TestManager_RecordMissed_Idempotent(t *testing.T) {
	t.Parallel()

	manager, _, clock := newTestManager(t)
	ctx := context.Background()
	if err := manager.Start(ctx, 30); err != nil {
		t.Fatalf("Start: %v", err)
	}

	entry := testfixtures.NewAlarmFixture(testfixtures.WithRepeat(alarm.RepeatDaily))
	due := clock.Now().Add(10 * time.Minute)

	if err := manager.RecordMissed(ctx, entry, due); err != nil {
		t.Fatalf("RecordMissed: %v", err)
	}
	if err := manager.RecordMissed(ctx, entry, due.Add(time.Hour)); err != nil {
		t.Fatalf("RecordMissed: %v", err)
	}

	missed := manager.Missed()
	if len(missed) != 1 {
		t.Fatalf("missed count = %d, want 1 (idempotent capture)", len(missed))
	}
	if missed[0].AlarmID != entry.ID || missed[0].RepeatLabel != "daily" {
		t.Fatalf("unexpected missed entry: %+v", missed[0])
	}
	if !missed[0].ScheduledTime.Equal(due) {
		t.Fatalf("second capture overwrote the scheduled time: %v", missed[0].ScheduledTime)
	}
}

func TestManager_Stop_FiresEndedCallbackOnlyWithMisses(t *testing.T) {
	t.Parallel()

	manager, _, clock := newTestManager(t)
	ctx := context.Background()

	var got [][]alarm.MissedEntry
	manager.OnSessionEnded(func(missed []alarm.MissedEntry) {
		got = append(got, missed)
	})

	// Session without misses: no callback.
	if err := manager.Start(ctx, 30); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := manager.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(got) != 0 {
		t.Fatal("callback fired for a session without missed entries")
	}

	// Session with one miss: exactly one callback carrying the entry.
	if err := manager.Start(ctx, 30); err != nil {
		t.Fatalf("Start: %v", err)
	}
	entry := testfixtures.NewAlarmFixture()
	if err := manager.RecordMissed(ctx, entry, clock.Now()); err != nil {
		t.Fatalf("RecordMissed: %v", err)
	}
	if err := manager.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 1 || got[0][0].AlarmID != entry.ID {
		t.Fatalf("callback payload = %+v", got)
	}

	// The captured list survives Stop until explicitly cleared.
	if len(manager.Missed()) != 1 {
		t.Fatal("missed list cleared before acknowledgement")
	}
	if err := manager.ClearMissed(ctx); err != nil {
		t.Fatalf("ClearMissed: %v", err)
	}
	if len(manager.Missed()) != 0 {
		t.Fatal("ClearMissed left entries behind")
	}
}

func TestManager_StartClearsPreviousMisses(t *testing.T) {
	t.Parallel()

	manager, _, clock := newTestManager(t)
	ctx := context.Background()

	if err := manager.Start(ctx, 30); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := manager.RecordMissed(ctx, testfixtures.NewAlarmFixture(), clock.Now()); err != nil {
		t.Fatalf("RecordMissed: %v", err)
	}
	if err := manager.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := manager.Start(ctx, 15); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(manager.Missed()) != 0 {
		t.Fatal("new session inherited the previous session's missed entries")
	}
}

func TestManager_CheckExpiryStopsSession(t *testing.T) {
	t.Parallel()

	manager, store, clock := newTestManager(t)
	ctx := context.Background()

	ended := false
	manager.OnSessionEnded(func([]alarm.MissedEntry) { ended = true })

	if err := manager.Start(ctx, 30); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := manager.RecordMissed(ctx, testfixtures.NewAlarmFixture(), clock.Now()); err != nil {
		t.Fatalf("RecordMissed: %v", err)
	}

	clock.Advance(31 * time.Minute)
	manager.checkExpiry(ctx)

	if manager.Active() {
		t.Fatal("expired session still active after the self check")
	}
	if !ended {
		t.Fatal("self check did not fire the session-ended callback")
	}
	settings, _ := store.LoadSettings(ctx)
	if settings.FocusActive || settings.FocusEndAt != nil {
		t.Fatalf("expired session still persisted as active: %+v", settings)
	}
}

func TestManager_Restore(t *testing.T) {
	t.Parallel()

	t.Run("resumes a future session", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		clock := testfixtures.NewClock(time.Time{})

		endAt := clock.Now().Add(20 * time.Minute)
		settings := alarm.DefaultSettings()
		settings.FocusActive = true
		settings.FocusEndAt = &endAt
		settings.CurrentMissed = []alarm.MissedEntry{{AlarmID: "a-1", Title: "stand-up"}}
		store.SeedSettings(settings)

		manager := NewManager(store, clock.NowFunc(), time.Minute, slog.New(slog.DiscardHandler))
		if err := manager.Restore(context.Background()); err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if !manager.Active() {
			t.Fatal("future session was not resumed")
		}
		if len(manager.Missed()) != 1 {
			t.Fatal("persisted missed entries were not restored")
		}
	})

	t.Run("stops an expired session immediately", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		clock := testfixtures.NewClock(time.Time{})

		endAt := clock.Now().Add(-time.Minute)
		settings := alarm.DefaultSettings()
		settings.FocusActive = true
		settings.FocusEndAt = &endAt
		store.SeedSettings(settings)

		manager := NewManager(store, clock.NowFunc(), time.Minute, slog.New(slog.DiscardHandler))
		if err := manager.Restore(context.Background()); err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if manager.Active() {
			t.Fatal("expired session restored as active")
		}
		persisted, _ := store.LoadSettings(context.Background())
		if persisted.FocusActive {
			t.Fatal("expired session not cleared in the settings document")
		}
	})
}

func TestManager_Presets(t *testing.T) {
	t.Parallel()

	manager, store, _ := newTestManager(t)
	ctx := context.Background()

	presets, err := manager.Presets(ctx)
	if err != nil {
		t.Fatalf("Presets: %v", err)
	}
	if len(presets) == 0 {
		t.Fatal("expected default presets")
	}

	preset, err := manager.DefaultPreset(ctx)
	if err != nil {
		t.Fatalf("DefaultPreset: %v", err)
	}
	if preset.ID != "30m" {
		t.Fatalf("default preset = %q, want 30m", preset.ID)
	}

	settings, _ := store.LoadSettings(ctx)
	settings.DefaultFocusPresetID = "missing"
	store.SeedSettings(settings)
	preset, err = manager.DefaultPreset(ctx)
	if err != nil {
		t.Fatalf("DefaultPreset: %v", err)
	}
	if preset.ID != "30m" {
		t.Fatalf("fallback preset = %q, want first preset 30m", preset.ID)
	}
}
