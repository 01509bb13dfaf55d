// Package history records trigger outcomes. The trigger engine writes an
// optimistic "missed" outcome the moment an entry fires; the consumer
// overwrites it to "successful" within the same minute when the user
// acknowledges the alarm.
package history

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/timeutil"
)

// maxRecords caps the in-settings history at the most recent outcomes.
const maxRecords = 1000

// SettingsStore is the slice of the settings service the recorder needs.
// Updates must be atomic with respect to other writers of the document.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (alarm.Settings, error)
	UpdateSettings(ctx context.Context, mutate func(*alarm.Settings)) error
}

// Recorder appends and updates trigger outcomes in the settings document and
// mirrors them into the optional archive.
type Recorder struct {
	mu          sync.Mutex
	settings    SettingsStore
	archive     *Archive
	cache       *statsCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRecorder wires the recorder's dependencies. archive may be nil, in
// which case statistics fall back to the capped in-settings history.
func NewRecorder(settings SettingsStore, archive *Archive, idGenerator func() string, now func() time.Time, logger *slog.Logger) *Recorder {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		settings:    settings,
		archive:     archive,
		cache:       newStatsCache(30*time.Second, 32, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// Record stores the outcome for (alarmID, current minute). When the most
// recent record for the alarm falls within the same minute its WasMissed
// flag is overwritten in place; otherwise a new record is appended and the
// collection trimmed to the most recent entries.
func (r *Recorder) Record(ctx context.Context, alarmID, title string, wasMissed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	currentMinute := timeutil.TruncateToMinute(now)

	record := alarm.HistoryRecord{
		AlarmID:     alarmID,
		AlarmTitle:  title,
		TriggeredAt: now,
		WasMissed:   wasMissed,
	}
	err := r.settings.UpdateSettings(ctx, func(settings *alarm.Settings) {
		if latest := latestForAlarm(settings.History, alarmID); latest >= 0 {
			if timeutil.SameMinute(settings.History[latest].TriggeredAt, currentMinute) {
				settings.History[latest].WasMissed = wasMissed
				return
			}
		}
		record.ID = r.idGenerator()
		settings.History = append(settings.History, record)
		settings.History = trimHistory(settings.History)
	})
	if err != nil {
		return err
	}

	if r.archive != nil {
		if record.ID == "" {
			record.ID = r.idGenerator()
		}
		if err := r.archive.Record(ctx, record); err != nil {
			// The settings document already holds the outcome; an archive
			// miss only degrades long-range statistics.
			r.logger.Warn("archiving trigger outcome failed", "alarm_id", alarmID, "error", err)
		}
	}

	r.cache.Invalidate()
	return nil
}

// Records returns a snapshot of the capped history, most recent first.
func (r *Recorder) Records(ctx context.Context) ([]alarm.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings, err := r.settings.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]alarm.HistoryRecord, len(settings.History))
	copy(out, settings.History)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	return out, nil
}

// latestForAlarm returns the index of the most recent record for alarmID,
// or -1 when none exists.
func latestForAlarm(records []alarm.HistoryRecord, alarmID string) int {
	best := -1
	for i, rec := range records {
		if rec.AlarmID != alarmID {
			continue
		}
		if best < 0 || rec.TriggeredAt.After(records[best].TriggeredAt) {
			best = i
		}
	}
	return best
}

// trimHistory keeps the most recent maxRecords outcomes, newest first.
func trimHistory(records []alarm.HistoryRecord) []alarm.HistoryRecord {
	if len(records) <= maxRecords {
		return records
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TriggeredAt.After(records[j].TriggeredAt)
	})
	trimmed := make([]alarm.HistoryRecord, maxRecords)
	copy(trimmed, records[:maxRecords])
	return trimmed
}
