// Package focus tracks the optional suppression window during which due
// entries are captured as missed instead of triggering visibly. The session
// state lives in the settings document so it survives a process restart.
package focus

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/example/reminder-engine/internal/alarm"
)

// SettingsStore is the slice of the settings service the manager needs.
// Updates must be atomic with respect to other writers of the document.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (alarm.Settings, error)
	UpdateSettings(ctx context.Context, mutate func(*alarm.Settings)) error
}

// Manager owns the focus session lifecycle. Construct one per process and
// hand it to the trigger engine and to consumers explicitly.
type Manager struct {
	mu       sync.Mutex
	settings SettingsStore
	now      func() time.Time
	logger   *slog.Logger

	checkInterval time.Duration
	active        bool
	endAt         time.Time
	missed        []alarm.MissedEntry

	onEnded []func([]alarm.MissedEntry)
}

// NewManager wires the manager's dependencies. checkInterval drives the
// self-check loop and defaults to one minute.
func NewManager(settings SettingsStore, now func() time.Time, checkInterval time.Duration, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		settings:      settings,
		now:           now,
		checkInterval: checkInterval,
		logger:        logger,
	}
}

// OnSessionEnded registers a callback fired when a session that captured at
// least one missed entry stops. The callback receives a snapshot of the
// missed entries and runs on the goroutine that stopped the session.
func (m *Manager) OnSessionEnded(fn func([]alarm.MissedEntry)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.onEnded = append(m.onEnded, fn)
	m.mu.Unlock()
}

// Restore reloads persisted session state on process start. An active
// session whose end lies in the future resumes; an expired one is stopped
// immediately so stale suppression can never leak into the new process.
func (m *Manager) Restore(ctx context.Context) error {
	settings, err := m.settings.LoadSettings(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.missed = append([]alarm.MissedEntry(nil), settings.CurrentMissed...)
	if settings.FocusActive && settings.FocusEndAt != nil && settings.FocusEndAt.After(m.now()) {
		m.active = true
		m.endAt = *settings.FocusEndAt
		m.mu.Unlock()
		m.logger.Info("focus session restored", "end_at", m.endAt)
		return nil
	}
	wasActive := settings.FocusActive
	m.mu.Unlock()

	if wasActive {
		m.logger.Info("persisted focus session already expired, stopping")
		return m.Stop(ctx)
	}
	return nil
}

// Start begins a session of the given duration, clearing any previously
// captured missed entries.
func (m *Manager) Start(ctx context.Context, minutes int) error {
	m.mu.Lock()
	m.active = true
	m.endAt = m.now().Add(time.Duration(minutes) * time.Minute)
	m.missed = nil
	endAt := m.endAt
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		return err
	}
	m.logger.Info("focus session started", "minutes", minutes, "end_at", endAt)
	return nil
}

// Stop ends the session. When at least one entry was captured the
// session-ended callbacks fire; the captured list is kept until the consumer
// acknowledges it via ClearMissed.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.active = false
	m.endAt = time.Time{}
	missed := append([]alarm.MissedEntry(nil), m.missed...)
	callbacks := slices.Clone(m.onEnded)
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		return err
	}
	m.logger.Info("focus session stopped", "missed", len(missed))

	if len(missed) > 0 {
		for _, fn := range callbacks {
			fn(missed)
		}
	}
	return nil
}

// Active reports whether a session is currently suppressing triggers. The
// stored flag alone is not enough: the end instant must still be ahead.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active && m.endAt.After(m.now())
}

// Remaining returns the time left in the current session, zero when none is
// active.
func (m *Manager) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return 0
	}
	if remaining := m.endAt.Sub(m.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// RecordMissed captures a due entry for the session summary. Capture is
// idempotent: a second due occurrence of the same alarm within one session
// is rejected.
func (m *Manager) RecordMissed(ctx context.Context, a alarm.Alarm, scheduledTime time.Time) error {
	m.mu.Lock()
	for _, entry := range m.missed {
		if entry.AlarmID == a.ID {
			m.mu.Unlock()
			m.logger.Debug("missed entry already captured this session", "alarm_id", a.ID)
			return nil
		}
	}
	m.missed = append(m.missed, alarm.MissedEntry{
		AlarmID:       a.ID,
		Title:         a.Title,
		ScheduledTime: scheduledTime,
		RepeatLabel:   a.RepeatLabel(),
	})
	m.mu.Unlock()

	if err := m.persist(ctx); err != nil {
		return err
	}
	m.logger.Info("missed entry captured", "alarm_id", a.ID, "title", a.Title)
	return nil
}

// Missed returns a snapshot of the entries captured in the current session.
func (m *Manager) Missed() []alarm.MissedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]alarm.MissedEntry(nil), m.missed...)
}

// ClearMissed empties the captured list after the consumer acknowledged the
// session summary.
func (m *Manager) ClearMissed(ctx context.Context) error {
	m.mu.Lock()
	m.missed = nil
	m.mu.Unlock()
	return m.persist(ctx)
}

// Presets returns the configured focus duration presets.
func (m *Manager) Presets(ctx context.Context) ([]alarm.FocusPreset, error) {
	settings, err := m.settings.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	if len(settings.FocusPresets) == 0 {
		return alarm.DefaultFocusPresets(), nil
	}
	return settings.FocusPresets, nil
}

// DefaultPreset resolves the configured default preset, falling back to the
// first available one.
func (m *Manager) DefaultPreset(ctx context.Context) (alarm.FocusPreset, error) {
	settings, err := m.settings.LoadSettings(ctx)
	if err != nil {
		return alarm.FocusPreset{}, err
	}
	presets := settings.FocusPresets
	if len(presets) == 0 {
		presets = alarm.DefaultFocusPresets()
	}
	for _, preset := range presets {
		if preset.ID == settings.DefaultFocusPresetID {
			return preset, nil
		}
	}
	return presets[0], nil
}

// Run drives the self-check loop until ctx is cancelled, guaranteeing the
// session cannot stay active past its window even when nobody polls.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.checkExpiry(ctx)
		}
	}
}

// checkExpiry stops the session once its end instant has passed.
func (m *Manager) checkExpiry(ctx context.Context) {
	m.mu.Lock()
	expired := m.active && !m.endAt.After(m.now())
	m.mu.Unlock()

	if expired {
		m.logger.Info("focus session expired")
		if err := m.Stop(ctx); err != nil {
			m.logger.Error("stopping expired focus session failed", "error", err)
		}
	}
}

// persist writes the session state into the settings document through the
// serialized update path so unrelated fields written by other components are
// never clobbered with a stale copy.
func (m *Manager) persist(ctx context.Context) error {
	return m.settings.UpdateSettings(ctx, func(settings *alarm.Settings) {
		m.mu.Lock()
		defer m.mu.Unlock()
		settings.FocusActive = m.active
		if m.active {
			endAt := m.endAt
			settings.FocusEndAt = &endAt
		} else {
			settings.FocusEndAt = nil
		}
		settings.CurrentMissed = append([]alarm.MissedEntry(nil), m.missed...)
	})
}
