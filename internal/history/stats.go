package history

import (
	"context"
	"time"

	"github.com/example/reminder-engine/internal/alarm"
)

// AlarmTriggerInfo summarises outcomes for one alarm.
type AlarmTriggerInfo struct {
	AlarmID      string
	AlarmTitle   string
	TriggerCount int
	MissedCount  int
}

// Statistics summarises trigger outcomes over an optional date range.
type Statistics struct {
	TotalTriggers      int
	MissedTriggers     int
	SuccessfulTriggers int
	PerAlarm           map[string]AlarmTriggerInfo
	MostTriggered      *AlarmTriggerInfo
}

// Statistics aggregates outcomes, preferring the archive when one is
// configured so the 1000-record settings cap does not skew long ranges.
// Results are cached briefly because consumers poll while a window is open.
func (r *Recorder) Statistics(ctx context.Context, from, to *time.Time) (Statistics, error) {
	key := statsCacheKey(from, to)
	if stats, ok := r.cache.Get(key); ok {
		return stats, nil
	}

	var stats Statistics
	if r.archive != nil {
		var err error
		stats, err = r.archive.Statistics(ctx, from, to)
		if err != nil {
			return Statistics{}, err
		}
	} else {
		settings, err := r.settings.LoadSettings(ctx)
		if err != nil {
			return Statistics{}, err
		}
		stats = computeStatistics(settings.History, from, to)
	}

	r.cache.Store(key, stats)
	return stats, nil
}

func computeStatistics(records []alarm.HistoryRecord, from, to *time.Time) Statistics {
	stats := Statistics{PerAlarm: make(map[string]AlarmTriggerInfo)}

	for _, rec := range records {
		if from != nil && rec.TriggeredAt.Before(*from) {
			continue
		}
		if to != nil && rec.TriggeredAt.After(*to) {
			continue
		}

		stats.TotalTriggers++
		if rec.WasMissed {
			stats.MissedTriggers++
		} else {
			stats.SuccessfulTriggers++
		}

		info := stats.PerAlarm[rec.AlarmID]
		info.AlarmID = rec.AlarmID
		if info.AlarmTitle == "" {
			info.AlarmTitle = rec.AlarmTitle
		}
		info.TriggerCount++
		if rec.WasMissed {
			info.MissedCount++
		}
		stats.PerAlarm[rec.AlarmID] = info
	}

	for id, info := range stats.PerAlarm {
		if stats.MostTriggered == nil || info.TriggerCount > stats.MostTriggered.TriggerCount ||
			(info.TriggerCount == stats.MostTriggered.TriggerCount && id < stats.MostTriggered.AlarmID) {
			top := info
			stats.MostTriggered = &top
		}
	}
	return stats
}
