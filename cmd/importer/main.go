// Command importer runs the spreadsheet import pipeline and database
// maintenance from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/shoestore/internal/config"
	_ "github.com/JonMunkholm/shoestore/internal/core/tables" // Register all import entities
	"github.com/JonMunkholm/shoestore/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// errImportFailed marks a run where at least one file was aborted.
var errImportFailed = errors.New("import finished with failed files")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, errImportFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "importer",
		Short:         "Import shoe store spreadsheets into PostgreSQL",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; the environment may be set already.
			_ = godotenv.Overload(envFile)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	root.AddCommand(newRunCmd(), newMigrateCmd(), newResetCmd(), newStatsCmd())
	return root
}

// loadConfig reads the configuration and sends logs to stderr, keeping
// stdout for reports.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
