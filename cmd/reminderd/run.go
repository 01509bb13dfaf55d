package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/config"
	"github.com/example/reminder-engine/internal/engine"
	"github.com/example/reminder-engine/internal/focus"
	"github.com/example/reminder-engine/internal/history"
	"github.com/example/reminder-engine/internal/logging"
	"github.com/example/reminder-engine/internal/settings"
	"github.com/example/reminder-engine/internal/storage"
)

const focusCheckInterval = 60 * time.Second

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reminder daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
}

func runDaemon() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return err
	}

	store, err := storage.NewStore(nil, cfg.DataDir, storage.DefaultRetryConfig(), logger)
	if err != nil {
		logger.Error("failed to open data directory", "error", err)
		return err
	}

	// A broken archive degrades statistics, it never stops the daemon.
	var archive *history.Archive
	if cfg.SQLiteDSN != "" {
		archive, err = history.OpenArchive(cfg.SQLiteDSN)
		if err != nil {
			logger.Warn("trigger archive unavailable, statistics fall back to the JSON history", "error", err)
			archive = nil
		} else {
			defer func() {
				if cerr := archive.Close(); cerr != nil {
					logger.Error("failed to close trigger archive", "error", cerr)
				}
			}()
		}
	}

	idGenerator := uuid.NewString
	now := time.Now

	settingsService := settings.NewService(store)
	recorder := history.NewRecorder(settingsService, archive, idGenerator, now, logger)
	focusManager := focus.NewManager(settingsService, now, focusCheckInterval, logger)
	focusManager.OnSessionEnded(func(missed []alarm.MissedEntry) {
		for _, entry := range missed {
			logger.Info("entry missed during focus session",
				"entry_id", entry.AlarmID,
				"title", entry.Title,
				"scheduled_at", entry.ScheduledTime,
				"repeat", entry.RepeatLabel)
		}
	})

	service, err := engine.NewService(store, focusManager, recorder, idGenerator, now, logger, engine.Options{
		ScanInterval: cfg.ScanInterval,
		GraceDelay:   cfg.GraceDelay,
	})
	if err != nil {
		logger.Error("failed to construct trigger engine", "error", err)
		return err
	}
	service.OnEntryDue(func(a alarm.Alarm) {
		attrs := []any{"entry_id", a.ID, "title", a.Title, "repeat", a.RepeatLabel()}
		if label := a.DdayLabel(now()); label != "" {
			attrs = append(attrs, "dday", label)
		}
		logger.Info("reminder due", attrs...)
	})

	if err := focusManager.Restore(ctx); err != nil {
		logger.Warn("failed to restore focus session state", "error", err)
	}

	go func() {
		if err := focusManager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("focus session loop stopped", "error", err)
		}
	}()

	if cfg.Watch {
		reloadCtx := logging.ContextWithLogger(context.Background(), logger.With("source", "file-watcher"))
		watcher := storage.NewWatcher(store.Dir(), 0, func() {
			if err := service.Refresh(reloadCtx); err != nil {
				logger.Warn("failed to reload entries after file change", "error", err)
			}
		}, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("file watcher stopped", "error", err)
			}
		}()
	}

	logger.Info("reminder daemon started",
		"data_dir", store.Dir(),
		"scan_interval", cfg.ScanInterval.String())

	err = service.Run(ctx)
	service.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("trigger engine stopped", "error", err)
		return err
	}
	logger.Info("reminder daemon stopped")
	return nil
}
