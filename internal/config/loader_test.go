package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"REMINDER_DATA_DIR",
			"REMINDER_SQLITE_DSN",
			"REMINDER_SCAN_INTERVAL",
			"REMINDER_GRACE_DELAY",
			"REMINDER_WATCH",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.ScanInterval != 10*time.Second {
			t.Fatalf("expected default scan interval 10s, got %s", cfg.ScanInterval)
		}
		if cfg.GraceDelay != 500*time.Millisecond {
			t.Fatalf("expected default grace delay 500ms, got %s", cfg.GraceDelay)
		}
		if !cfg.Watch {
			t.Fatal("expected file watching to default to on")
		}
		if cfg.DataDir == "" {
			t.Fatal("expected a default data directory")
		}
		if !strings.HasPrefix(cfg.SQLiteDSN, "file:") {
			t.Fatalf("expected the archive DSN to default under the data dir, got %q", cfg.SQLiteDSN)
		}
	})

	t.Run("parses duration and boolean fields", func(t *testing.T) {
		t.Setenv("REMINDER_DATA_DIR", filepath.Join("/tmp", "reminders"))
		t.Setenv("REMINDER_SQLITE_DSN", "file:/tmp/history.db")
		t.Setenv("REMINDER_SCAN_INTERVAL", "30s")
		t.Setenv("REMINDER_GRACE_DELAY", "1s")
		t.Setenv("REMINDER_WATCH", "off")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.DataDir != filepath.Join("/tmp", "reminders") {
			t.Fatalf("unexpected data dir: %q", cfg.DataDir)
		}
		if cfg.SQLiteDSN != "file:/tmp/history.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.ScanInterval != 30*time.Second {
			t.Fatalf("expected scan interval 30s, got %s", cfg.ScanInterval)
		}
		if cfg.GraceDelay != time.Second {
			t.Fatalf("expected grace delay 1s, got %s", cfg.GraceDelay)
		}
		if cfg.Watch {
			t.Fatal("expected file watching to be off")
		}
	})

	t.Run("rejects a scan interval above one minute", func(t *testing.T) {
		t.Setenv("REMINDER_SCAN_INTERVAL", "90s")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for a scan interval above one minute")
		}
		if !strings.Contains(err.Error(), "REMINDER_SCAN_INTERVAL") {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("collects every invalid value in one error", func(t *testing.T) {
		t.Setenv("REMINDER_SCAN_INTERVAL", "soon")
		t.Setenv("REMINDER_GRACE_DELAY", "-2s")
		t.Setenv("REMINDER_WATCH", "maybe")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for invalid values")
		}
		for _, key := range []string{"REMINDER_SCAN_INTERVAL", "REMINDER_GRACE_DELAY", "REMINDER_WATCH"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error to mention %s, got %q", key, err.Error())
			}
		}
	})
}
