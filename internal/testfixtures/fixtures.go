package testfixtures

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/reminder-engine/internal/alarm"
)

var alarmCounter uint64

var referenceTime = time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// AlarmOption configures a generated alarm fixture.
type AlarmOption func(*alarm.Alarm)

// NewAlarmFixture returns a deterministic enabled timed alarm scheduled one
// hour after the reference time, with optional overrides.
func NewAlarmFixture(opts ...AlarmOption) alarm.Alarm {
	idx := atomic.AddUint64(&alarmCounter, 1)
	fixture := alarm.Alarm{
		ID:                 fmt.Sprintf("alarm-%03d", idx),
		Title:              fmt.Sprintf("Alarm %03d", idx),
		Kind:               alarm.KindTimed,
		ScheduledAt:        referenceTime.Add(time.Hour),
		Repeat:             alarm.RepeatNone,
		AutoDismissMinutes: 1,
		IsEnabled:          true,
		Priority:           alarm.PriorityNormal,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRepeat sets the recurrence pattern.
func WithRepeat(repeat alarm.Repeat) AlarmOption {
	return func(a *alarm.Alarm) { a.Repeat = repeat }
}

// WithScheduledAt sets the scheduled instant.
func WithScheduledAt(t time.Time) AlarmOption {
	return func(a *alarm.Alarm) { a.ScheduledAt = t }
}

// WithTemporary marks the alarm as a one-shot snooze artifact.
func WithTemporary() AlarmOption {
	return func(a *alarm.Alarm) { a.IsTemporary = true }
}

// WithDisabled turns the alarm off.
func WithDisabled() AlarmOption {
	return func(a *alarm.Alarm) { a.IsEnabled = false }
}

// MemoryStore is an in-memory stand-in for the persistence gateway. It
// implements the alarm and settings store interfaces consumed by the engine,
// the focus manager and the history recorder.
type MemoryStore struct {
	mu         sync.Mutex
	alarms     []alarm.Alarm
	settings   alarm.Settings
	SaveAlarmE error
	SaveSetE   error
	saveCount  int
}

// NewMemoryStore returns an empty store seeded with default settings.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: alarm.DefaultSettings()}
}

func (m *MemoryStore) LoadAlarms(ctx context.Context) ([]alarm.Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]alarm.Alarm, len(m.alarms))
	for i, a := range m.alarms {
		out[i] = a.Clone()
	}
	return out, nil
}

func (m *MemoryStore) SaveAlarms(ctx context.Context, alarms []alarm.Alarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveAlarmE != nil {
		return m.SaveAlarmE
	}
	m.alarms = make([]alarm.Alarm, len(alarms))
	for i, a := range alarms {
		m.alarms[i] = a.Clone()
	}
	m.saveCount++
	return nil
}

func (m *MemoryStore) LoadSettings(ctx context.Context) (alarm.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSettings(m.settings), nil
}

// cloneSettings copies the slice fields so callers observe document
// semantics rather than shared in-memory state.
func cloneSettings(s alarm.Settings) alarm.Settings {
	out := s
	out.History = append([]alarm.HistoryRecord(nil), s.History...)
	out.CurrentMissed = append([]alarm.MissedEntry(nil), s.CurrentMissed...)
	out.FocusPresets = append([]alarm.FocusPreset(nil), s.FocusPresets...)
	out.Categories = append([]string(nil), s.Categories...)
	if s.FocusEndAt != nil {
		t := *s.FocusEndAt
		out.FocusEndAt = &t
	}
	return out
}

func (m *MemoryStore) SaveSettings(ctx context.Context, settings alarm.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveSetE != nil {
		return m.SaveSetE
	}
	m.settings = settings
	return nil
}

// UpdateSettings applies mutate to the stored document as one atomic step,
// mirroring the settings service the daemon wires in.
func (m *MemoryStore) UpdateSettings(ctx context.Context, mutate func(*alarm.Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveSetE != nil {
		return m.SaveSetE
	}
	settings := cloneSettings(m.settings)
	mutate(&settings)
	m.settings = settings
	return nil
}

// SeedAlarms replaces the stored alarm list.
func (m *MemoryStore) SeedAlarms(alarms ...alarm.Alarm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alarms = append([]alarm.Alarm(nil), alarms...)
}

// SeedSettings replaces the stored settings document.
func (m *MemoryStore) SeedSettings(settings alarm.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// SaveCount reports how many times the alarm list was persisted.
func (m *MemoryStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}
