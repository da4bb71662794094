package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"taxarchive/internal/app"
	"taxarchive/internal/archive"
	"taxarchive/internal/config"
)

func main() {
	// A .env file in the working directory may pin TAXARCHIVE_* variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Sync", "Scan").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "taxarchive",
	Short:        "Keep a folder of tax documents in canonical order",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")
		if root == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			root = cwd
		}

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		archiveID := uuid.New().String()
		cfg := config.NewConfig(archiveID, defaults["base_dir"], root)

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Archive ID:   %s\n", archiveID)
		fmt.Printf("Archive Root: %s\n", root)
		fmt.Printf("Base Dir:     %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Archive ID:   %s\n", cfg.ArchiveID)
		fmt.Printf("Archive Root: %s\n", cfg.Archive.Root)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:        %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Encryption:   %s\n", cfg.Encryption.Type)
		fmt.Printf("Inbox:        %s\n", cfg.Watch.Inbox)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nConfiguration problems:\n%v\n", err)
		}
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the archive and store the manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scan")
		if err != nil {
			return err
		}
		defer a.Close()

		scan, records, err := a.Scan()
		if err != nil {
			return err
		}
		unhashed := 0
		for _, r := range records {
			if !r.ContentHash.Valid {
				unhashed++
			}
		}
		fmt.Printf("Scanned %d file(s) under %s (scan %s)\n", scan.TotalFiles, scan.Root, scan.ID)
		if unhashed > 0 {
			fmt.Printf("%d file(s) without a content hash\n", unhashed)
		}
		return nil
	},
}

// validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the archive structure",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		a, err := newApp("Validate")
		if err != nil {
			return err
		}
		defer a.Close()

		vr, err := a.Validate()
		if err != nil {
			return err
		}
		if err := writeIssues(os.Stdout, format, vr); err != nil {
			return err
		}
		if !vr.Valid {
			return fmt.Errorf("validation failed with %d error(s)", vr.Count(archive.LevelError))
		}
		return nil
	},
}

// plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what sync would do",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		a, err := newApp("Plan")
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.Plan()
		if err != nil {
			return err
		}
		return writePlan(os.Stdout, format, plan)
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Move files to their canonical locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts archive.SyncOptions
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.DeleteDuplicates, _ = cmd.Flags().GetBool("delete-duplicates")
		opts.QuarantineDuplicates, _ = cmd.Flags().GetBool("quarantine-duplicates")

		a, err := newApp("Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		plan, result, err := a.Sync(opts)
		if err != nil {
			return err
		}

		if err := writePlan(os.Stdout, formatText, plan); err != nil {
			return err
		}
		verb := "Applied"
		if opts.DryRun {
			verb = "Would apply"
		}
		fmt.Printf("%s: %d copied, %d updated, %d quarantined, %d deleted\n",
			verb, result.Copied, result.Updated, result.Quarantined, result.Deleted)
		for _, s := range result.Skipped {
			fmt.Printf("skipped: %s\n", s)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", e)
		}
		if len(result.Errors) > 0 {
			return fmt.Errorf("sync finished with %d error(s)", len(result.Errors))
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the latest manifest and validation issues as XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp("Report")
		if err != nil {
			return err
		}
		defer a.Close()

		scan, err := a.Report(out)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s (scan %s, %d files)\n", out, scan.ID, scan.TotalFiles)
		return nil
	},
}

// lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup HASH",
	Short: "Find files in the latest manifest by content hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Lookup")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Lookup(args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No files with that hash in the latest scan.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %d  %s\n", r.Path, r.SizeBytes, r.ModTime.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync whenever files land in the inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Watch")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s (Ctrl-C to stop)\n", a.Config().Watch.Inbox)
		return a.Watch(ctx)
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("root", "", "Archive root (default: current directory)")
	configCmd.AddCommand(configListCmd)

	// stash subcommands
	stashCmd.AddCommand(stashListCmd)
	stashListCmd.Flags().IntP("limit", "n", 50, "Maximum number of stashes to show")
	stashCmd.AddCommand(stashRestoreCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// name subcommands
	nameCmd.AddCommand(nameBuildCmd)
	addNameFlags(nameBuildCmd)
	nameCmd.AddCommand(nameParseCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(validateCmd)
	addFormatFlag(validateCmd)
	rootCmd.AddCommand(planCmd)
	addFormatFlag(planCmd)
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("dry-run", false, "Show the counts without changing anything")
	syncCmd.Flags().Bool("delete-duplicates", false, "Delete redundant copies of identical content")
	syncCmd.Flags().Bool("quarantine-duplicates", false, "Move losing duplicates into the quarantine folder")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("out", "o", "taxarchive-report.xlsx", "Output workbook path")
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(stashCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(nameCmd)
	rootCmd.AddCommand(watchCmd)
}
