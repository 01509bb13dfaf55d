package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "reminderd",
		Short:         "Personal reminder daemon",
		Long:          "reminderd watches a list of reminder entries and fires them at minute granularity, with recurrence, focus sessions and trigger history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newExportCommand())
	root.AddCommand(newImportCommand())
	return root
}
