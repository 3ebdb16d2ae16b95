package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/shoestore/internal/admin"
	"github.com/JonMunkholm/shoestore/internal/config"
	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/JonMunkholm/shoestore/internal/database"
	"github.com/spf13/cobra"
)

// maxPrintedDiagnostics caps the diagnostics listed per file.
const maxPrintedDiagnostics = 20

type runOptions struct {
	dir     string
	fresh   bool
	verbose bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import users, pickup points, products and orders from a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.dir == "" {
				opts.dir = cfg.Import.Dir
			}
			return runImport(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory containing the source files (default: IMPORT_DIR)")
	cmd.Flags().BoolVar(&opts.fresh, "fresh", false, "Clear all data tables before importing")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print every diagnostic instead of the first few")

	return cmd
}

func runImport(cmd *cobra.Command, cfg *config.Config, opts runOptions) error {
	ctx := cmd.Context()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL); err != nil {
			return err
		}
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	service, err := core.NewServiceFromConfig(pool, cfg)
	if err != nil {
		return err
	}

	if opts.fresh {
		reset := &admin.ResetDbs{DB: pool, Audit: service}
		if err := reset.ResetAll(ctx); err != nil {
			return fmt.Errorf("reset before import: %w", err)
		}
	}

	report, err := service.ImportAll(ctx, opts.dir)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report, opts.verbose)
	if report.Failed() {
		return errImportFailed
	}
	return nil
}

// printReport writes a per-file summary followed by the diagnostics.
func printReport(w io.Writer, report *core.ImportReport, verbose bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tFILE\tFORMAT\tSEEN\tINSERTED\tSKIPPED\tDUPLICATES\tERROR")
	for _, f := range report.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			f.Entity, f.File, f.Format, f.RowsSeen, f.RowsInserted, f.Skipped, f.Duplicates, f.Error)
	}
	tw.Flush()

	seen, inserted := report.Totals()
	fmt.Fprintf(w, "\nrun %s: %d of %d rows inserted in %s\n", report.RunID, inserted, seen, report.Duration.Round(time.Millisecond))

	for _, f := range report.Files {
		if f.Hint != "" {
			fmt.Fprintf(w, "\n%s: %s\n", f.Entity, f.Hint)
		}
	}

	for _, f := range report.Files {
		if len(f.Diagnostics) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", f.Entity)
		for i, d := range f.Diagnostics {
			if !verbose && i == maxPrintedDiagnostics {
				fmt.Fprintf(w, "  ... %d more (use --verbose)\n", len(f.Diagnostics)-i)
				break
			}
			if d.Field != "" {
				fmt.Fprintf(w, "  line %d, %s: %s\n", d.Line, d.Field, d.Reason)
			} else {
				fmt.Fprintf(w, "  line %d: %s\n", d.Line, d.Reason)
			}
		}
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg.Database.URL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all shop data and re-seed roles and order statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes all data; pass --yes to confirm")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			service, err := core.NewServiceFromConfig(pool, cfg)
			if err != nil {
				return err
			}

			reset := &admin.ResetDbs{DB: pool, Audit: service}
			if err := reset.ResetAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database reset")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all data")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			service, err := core.NewServiceFromConfig(pool, cfg)
			if err != nil {
				return err
			}

			counts, err := service.Stats(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TABLE\tROWS")
			for _, c := range counts {
				fmt.Fprintf(tw, "%s\t%d\n", c.Table, c.Rows)
			}
			return tw.Flush()
		},
	}
}
