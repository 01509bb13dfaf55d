// Package storage persists the alarm list and the settings document as JSON
// files. Reads degrade to empty defaults when documents are absent or
// unreadable so the application can always start; writes surface their error
// once the bounded retries are exhausted.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/logging"
)

const (
	alarmsFile   = "alarms.json"
	settingsFile = "settings.json"
)

// RetryConfig bounds the retry loop used around document reads and writes.
// Delays grow linearly: attempt × BaseDelay.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig matches the documented persistence contract: five
// attempts with a 100ms linear backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond}
}

// Store reads and writes the two JSON documents inside a data directory.
type Store struct {
	fs     afero.Fs
	dir    string
	retry  RetryConfig
	logger *slog.Logger
}

// NewStore creates the data directory if needed and returns a store bound to
// it. A nil fs defaults to the OS filesystem.
func NewStore(fsys afero.Fs, dir string, retry RetryConfig, logger *slog.Logger) (*Store, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating data directory: %w", err)
	}
	return &Store{fs: fsys, dir: dir, retry: retry, logger: logger}, nil
}

// Dir returns the data directory the store is bound to.
func (s *Store) Dir() string { return s.dir }

// AlarmsPath returns the full path of the alarm list document.
func (s *Store) AlarmsPath() string { return filepath.Join(s.dir, alarmsFile) }

// LoadAlarms returns the stored alarm list. Absent, empty or malformed
// documents yield an empty list; exhausted retries do as well, after logging.
func (s *Store) LoadAlarms(ctx context.Context) ([]alarm.Alarm, error) {
	var alarms []alarm.Alarm
	if err := s.loadDocument(ctx, alarmsFile, &alarms); err != nil {
		s.logger.Error("loading alarm list failed, starting empty", "error", err)
		return nil, nil
	}
	return alarms, nil
}

// SaveAlarms writes the alarm list, replacing the previous document.
func (s *Store) SaveAlarms(ctx context.Context, alarms []alarm.Alarm) error {
	if alarms == nil {
		alarms = []alarm.Alarm{}
	}
	return s.saveDocument(ctx, alarmsFile, alarms)
}

// LoadSettings returns the settings document, or the seeded defaults when no
// usable document exists.
func (s *Store) LoadSettings(ctx context.Context) (alarm.Settings, error) {
	settings := alarm.DefaultSettings()
	if err := s.loadDocument(ctx, settingsFile, &settings); err != nil {
		s.logger.Error("loading settings failed, using defaults", "error", err)
		return alarm.DefaultSettings(), nil
	}
	if len(settings.FocusPresets) == 0 {
		settings.FocusPresets = alarm.DefaultFocusPresets()
	}
	if len(settings.Categories) == 0 {
		settings.Categories = alarm.DefaultCategories()
	}
	return settings, nil
}

// SaveSettings writes the settings document.
func (s *Store) SaveSettings(ctx context.Context, settings alarm.Settings) error {
	return s.saveDocument(ctx, settingsFile, settings)
}

// ExportAlarms writes the alarm list to an arbitrary path outside the data
// directory, for user-driven backup.
func (s *Store) ExportAlarms(ctx context.Context, path string, alarms []alarm.Alarm) error {
	data, err := json.MarshalIndent(alarms, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encoding alarm export: %w", err)
	}
	return s.withRetry(ctx, "export "+path, func() error {
		return afero.WriteFile(s.fs, path, data, 0o644)
	})
}

// ImportAlarms reads an alarm list from an arbitrary path. Unlike LoadAlarms
// a malformed import file is surfaced to the caller, since the user picked it
// explicitly.
func (s *Store) ImportAlarms(ctx context.Context, path string) ([]alarm.Alarm, error) {
	var data []byte
	err := s.withRetry(ctx, "import "+path, func() error {
		var readErr error
		data, readErr = afero.ReadFile(s.fs, path)
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("storage: reading import file: %w", err)
	}
	var alarms []alarm.Alarm
	if err := json.Unmarshal(data, &alarms); err != nil {
		return nil, fmt.Errorf("storage: parsing import file: %w", err)
	}
	return alarms, nil
}

// log prefers a request scoped logger carried on the context.
func (s *Store) log(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return s.logger
}

func (s *Store) loadDocument(ctx context.Context, name string, out any) error {
	path := filepath.Join(s.dir, name)

	var data []byte
	err := s.withRetry(ctx, "load "+name, func() error {
		var readErr error
		data, readErr = afero.ReadFile(s.fs, path)
		return readErr
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	}

	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Malformed content is treated like an absent file, but is worth a
		// log line because data was lost.
		s.log(ctx).Warn("document is malformed, ignoring", "document", name, "error", err)
		return nil
	}
	return nil
}

func (s *Store) saveDocument(ctx context.Context, name string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	return s.withRetry(ctx, "save "+name, func() error {
		return s.writeAtomic(path, data)
	})
}

// writeAtomic stages the document in a temp file and renames it into place
// so a crash mid-write never leaves a truncated document behind.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := afero.TempFile(s.fs, s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	return nil
}

// withRetry runs fn up to MaxAttempts times. Absent files are not retried;
// everything else is considered a transient sharing violation.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * s.retry.BaseDelay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, fs.ErrNotExist) {
			return lastErr
		}
		s.log(ctx).Debug("document operation retrying", "op", op, "attempt", attempt, "error", lastErr)
	}
	return fmt.Errorf("storage: %s failed after %d attempts: %w", op, s.retry.MaxAttempts, lastErr)
}
