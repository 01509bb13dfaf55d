package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/timeutil"
)

const archiveVersion = 1

// Archive keeps every trigger outcome in SQLite so statistics can look past
// the capped in-settings history. One row exists per (alarm, minute); a
// later write for the same minute updates the outcome in place.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the archive database at dsn and applies the
// schema. Use ":memory:" for tests.
func OpenArchive(dsn string) (*Archive, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open archive: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: exec pragma %q: %w", p, err)
		}
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate archive: %w", err)
	}
	return a, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	var version int
	if err := a.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= archiveVersion {
		return nil
	}

	const ddl = `
	CREATE TABLE IF NOT EXISTS trigger_archive (
		id           TEXT PRIMARY KEY,
		alarm_id     TEXT NOT NULL,
		alarm_title  TEXT NOT NULL,
		triggered_at TEXT NOT NULL,
		minute       TEXT NOT NULL,
		was_missed   INTEGER NOT NULL DEFAULT 0,
		UNIQUE(alarm_id, minute)
	);

	CREATE INDEX IF NOT EXISTS idx_trigger_archive_triggered ON trigger_archive(triggered_at);
	`
	if _, err := a.db.Exec(ddl); err != nil {
		return err
	}
	_, err := a.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", archiveVersion))
	return err
}

// Record upserts the outcome for the record's (alarm, minute) slot.
func (a *Archive) Record(ctx context.Context, record alarm.HistoryRecord) error {
	minute := timeutil.TruncateToMinute(record.TriggeredAt.UTC()).Format(time.RFC3339)
	return withBusyRetry(ctx, func() error {
		_, err := a.db.ExecContext(ctx,
			`INSERT INTO trigger_archive (id, alarm_id, alarm_title, triggered_at, minute, was_missed)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(alarm_id, minute) DO UPDATE SET
			   was_missed = excluded.was_missed,
			   alarm_title = excluded.alarm_title,
			   triggered_at = excluded.triggered_at`,
			record.ID, record.AlarmID, record.AlarmTitle,
			record.TriggeredAt.UTC().Format(time.RFC3339), minute, boolToInt(record.WasMissed),
		)
		return err
	})
}

// Statistics aggregates archived outcomes, optionally bounded by a time range.
func (a *Archive) Statistics(ctx context.Context, from, to *time.Time) (Statistics, error) {
	query := `SELECT alarm_id, alarm_title, triggered_at, was_missed FROM trigger_archive`
	var conds []string
	var args []any
	if from != nil {
		conds = append(conds, "triggered_at >= ?")
		args = append(args, from.UTC().Format(time.RFC3339))
	}
	if to != nil {
		conds = append(conds, "triggered_at <= ?")
		args = append(args, to.UTC().Format(time.RFC3339))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Statistics{}, fmt.Errorf("history: query archive: %w", err)
	}
	defer rows.Close()

	records := make([]alarm.HistoryRecord, 0)
	for rows.Next() {
		var rec alarm.HistoryRecord
		var triggeredAt string
		var missed int
		if err := rows.Scan(&rec.AlarmID, &rec.AlarmTitle, &triggeredAt, &missed); err != nil {
			return Statistics{}, fmt.Errorf("history: scan archive row: %w", err)
		}
		rec.TriggeredAt, _ = time.Parse(time.RFC3339, triggeredAt)
		rec.WasMissed = missed != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Statistics{}, fmt.Errorf("history: iterate archive rows: %w", err)
	}
	return computeStatistics(records, nil, nil), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// withBusyRetry retries writes that lose a race for the database file lock.
func withBusyRetry(ctx context.Context, fn func() error) error {
	const attempts = 3
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("history: archive write failed after %d attempts: %w", attempts, lastErr)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy")
}
