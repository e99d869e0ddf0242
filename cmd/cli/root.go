package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickyhof/TableDB"
	"github.com/nickyhof/TableDB/config"
	"github.com/nickyhof/TableDB/db"
	"github.com/nickyhof/TableDB/ps"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tabledb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "tabledb",
		Short:   "TableDB - relational tables with git-backed backups",
		Long:    "Inspect, validate, import, export and archive TableDB documents.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.DataDir, "data-dir", "d", "", "archive directory (overrides the config; memory if both empty)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewTagCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}

// env is what every command works against: the loaded config and an
// instance over the configured archive.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	instance *TableDB.Instance
}

func openEnv(opts *RootOptions) (*env, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	logCfg := cfg.Log
	if opts.Verbose {
		logCfg.Level = "debug"
	} else if opts.ConfigPath == "" {
		logCfg.Level = "warn"
	}
	logger, err := config.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}

	var persistence *ps.Persistence
	if cfg.DataDir == "" {
		persistence, err = ps.NewMemoryPersistence()
	} else {
		persistence, err = ps.NewFilePersistence(cfg.DataDir, cfg.GitURLPtr())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		instance: TableDB.Open(persistence, TableDB.WithLogger(logger)),
	}, nil
}

// load fills the catalog from a document location, or from the newest
// archived revision when location is empty. An empty archive leaves the
// catalog empty. Load failures are printed to w.
func (e *env) load(ctx context.Context, location string, w io.Writer) (db.LoadReport, error) {
	var (
		report db.LoadReport
		err    error
	)
	if location != "" {
		report, err = e.instance.ImportFrom(ctx, location, &e.cfg.S3)
	} else {
		report, _, err = e.instance.RestoreLatest()
		if errors.Is(err, ps.ErrNoRevisions) {
			return db.LoadReport{}, nil
		}
	}
	if err != nil {
		return report, err
	}
	printFailures(w, report)
	return report, nil
}

func printFailures(w io.Writer, report db.LoadReport) {
	for _, f := range report.Failures {
		fmt.Fprintf(w, "%s⚠ %s%s\n", WarnColor, f, ResetColor)
	}
}
