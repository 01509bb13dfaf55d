package alarm

import "time"

// HistoryRecord is one trigger outcome. At most one record exists per
// (AlarmID, minute); a later write in the same minute overwrites WasMissed.
type HistoryRecord struct {
	ID          string    `json:"id"`
	AlarmID     string    `json:"alarm_id"`
	AlarmTitle  string    `json:"alarm_title"`
	TriggeredAt time.Time `json:"triggered_at"`
	WasMissed   bool      `json:"was_missed"`
}

// MissedEntry is an entry captured during a focus session instead of
// triggering visibly. Capture is idempotent per alarm per session.
type MissedEntry struct {
	AlarmID       string    `json:"alarm_id"`
	Title         string    `json:"title"`
	ScheduledTime time.Time `json:"scheduled_time"`
	RepeatLabel   string    `json:"repeat_label"`
}

// FocusPreset is a named focus session duration offered to consumers.
type FocusPreset struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Minutes     int    `json:"minutes"`
}

// Settings is the application settings document. It holds the focus session
// state, the capped trigger history and the category presets.
type Settings struct {
	FocusActive          bool              `json:"focus_active"`
	FocusEndAt           *time.Time        `json:"focus_end_at,omitempty"`
	FocusPresets         []FocusPreset     `json:"focus_presets,omitempty"`
	DefaultFocusPresetID string            `json:"default_focus_preset_id,omitempty"`
	CurrentMissed        []MissedEntry     `json:"current_missed,omitempty"`
	History              []HistoryRecord   `json:"history,omitempty"`
	Categories           []string          `json:"categories,omitempty"`
	CategoryColors       map[string]string `json:"category_colors,omitempty"`
}

// DefaultSettings returns the settings document used when no document exists
// or the stored one cannot be read.
func DefaultSettings() Settings {
	return Settings{
		FocusPresets:         DefaultFocusPresets(),
		DefaultFocusPresetID: "30m",
		Categories:           DefaultCategories(),
		CategoryColors:       map[string]string{"anniversary": "#E91E63"},
	}
}

// DefaultFocusPresets is the 30 minute to 3 hour preset ladder seeded into
// fresh settings.
func DefaultFocusPresets() []FocusPreset {
	return []FocusPreset{
		{ID: "30m", DisplayName: "30 minutes", Minutes: 30},
		{ID: "1h", DisplayName: "1 hour", Minutes: 60},
		{ID: "1h30m", DisplayName: "1.5 hours", Minutes: 90},
		{ID: "2h", DisplayName: "2 hours", Minutes: 120},
		{ID: "2h30m", DisplayName: "2.5 hours", Minutes: 150},
		{ID: "3h", DisplayName: "3 hours", Minutes: 180},
	}
}
