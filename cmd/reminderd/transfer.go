package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/reminder-engine/internal/alarm"
	"github.com/example/reminder-engine/internal/config"
	"github.com/example/reminder-engine/internal/storage"
)

func openStore() (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return storage.NewStore(nil, cfg.DataDir, storage.DefaultRetryConfig(), logger)
}

func newExportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current entry list to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			alarms, err := store.LoadAlarms(ctx)
			if err != nil {
				return err
			}
			if err := store.ExportAlarms(ctx, out, alarms); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(alarms), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "alarms-export.json", "destination file")
	return cmd
}

func newImportCommand() *cobra.Command {
	var in string
	var replace bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge entries from a JSON file into the entry list",
		Long:  "Merge entries from a JSON file into the entry list. Existing entries win on id collisions unless --replace discards the current list first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			imported, err := store.ImportAlarms(ctx, in)
			if err != nil {
				return err
			}

			var merged []alarm.Alarm
			if replace {
				merged = imported
			} else {
				existing, err := store.LoadAlarms(ctx)
				if err != nil {
					return err
				}
				seen := make(map[string]struct{}, len(existing))
				for _, a := range existing {
					seen[a.ID] = struct{}{}
				}
				merged = existing
				for _, a := range imported {
					if _, ok := seen[a.ID]; ok {
						continue
					}
					merged = append(merged, a)
				}
			}

			if err := store.SaveAlarms(ctx, merged); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entry list now holds %d entries\n", len(merged))
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "source file")
	cmd.Flags().BoolVar(&replace, "replace", false, "discard the current list before importing")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
