package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the reminder
// daemon.
type Config struct {
	// DataDir holds alarms.json and settings.json.
	DataDir string
	// SQLiteDSN points at the trigger archive database. Empty disables the
	// archive and statistics fall back to the JSON history.
	SQLiteDSN string
	// ScanInterval is the trigger scan cadence. Must not exceed one minute.
	ScanInterval time.Duration
	// GraceDelay is how long a fired temporary entry lingers before removal.
	GraceDelay time.Duration
	// Watch enables reloading the entry list when alarms.json changes on disk.
	Watch bool
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for every field while validating the values
// that are present, and reports all problems in a single error.
func Load() (Config, error) {
	home, _ := os.UserHomeDir()
	cfg := Config{
		DataDir:      filepath.Join(home, ".reminder-engine"),
		ScanInterval: 10 * time.Second,
		GraceDelay:   500 * time.Millisecond,
		Watch:        true,
	}

	invalid := make([]string, 0, 2)

	if dir := strings.TrimSpace(os.Getenv("REMINDER_DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}

	if dsn := strings.TrimSpace(os.Getenv("REMINDER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	} else {
		cfg.SQLiteDSN = "file:" + filepath.Join(cfg.DataDir, "history.db")
	}

	if intervalValue := strings.TrimSpace(os.Getenv("REMINDER_SCAN_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 || interval > time.Minute {
			invalid = append(invalid, "REMINDER_SCAN_INTERVAL")
		} else {
			cfg.ScanInterval = interval
		}
	}

	if graceValue := strings.TrimSpace(os.Getenv("REMINDER_GRACE_DELAY")); graceValue != "" {
		grace, err := time.ParseDuration(graceValue)
		if err != nil || grace < 0 {
			invalid = append(invalid, "REMINDER_GRACE_DELAY")
		} else {
			cfg.GraceDelay = grace
		}
	}

	if watchValue := strings.TrimSpace(os.Getenv("REMINDER_WATCH")); watchValue != "" {
		switch strings.ToLower(watchValue) {
		case "1", "true", "yes", "on":
			cfg.Watch = true
		case "0", "false", "no", "off":
			cfg.Watch = false
		default:
			invalid = append(invalid, "REMINDER_WATCH")
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
