package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/db"
	"github.com/nickyhof/TableDB/ps"
)

// errInvalid is returned after validation problems have been printed.
var errInvalid = errors.New("validation failed")

func optionalArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "describe [location]",
		Short: "Show table schemas",
		Long: `Show the columns, primary keys and foreign keys of every table.

Reads the document at location (path, file://, http(s):// or s3://), or the
newest archived revision when no location is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			if _, err := e.load(cmd.Context(), optionalArg(args), cmd.ErrOrStderr()); err != nil {
				return err
			}

			engine := e.instance.Engine
			names := engine.TableNames()
			if table != "" {
				names = []string{table}
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				snapshots := make([]core.TableSnapshot, 0, len(names))
				for _, name := range names {
					snap, err := engine.Table(name)
					if err != nil {
						return err
					}
					snap.Rows = nil
					snapshots = append(snapshots, snap)
				}
				return writeJSON(out, ps.NewDocument(snapshots))
			}

			for _, name := range names {
				result, err := engine.Describe(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s%s%s\n", BoldColor, name, ResetColor)
				result.Render(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "describe a single table")
	return cmd
}

// tableValidation is the JSON form of a db.ValidationReport.
type tableValidation struct {
	Table      string   `json:"table"`
	Valid      bool     `json:"valid"`
	Rows       []int    `json:"rows"`
	Violations []string `json:"violations,omitempty"`
	Dangling   []string `json:"dangling,omitempty"`
}

func newTableValidation(r db.ValidationReport) tableValidation {
	tv := tableValidation{Table: r.Table, Valid: r.Valid(), Rows: r.Rows()}
	for _, v := range r.Violations {
		tv.Violations = append(tv.Violations, fmt.Sprintf("row %d: %s has no value %s", v.Row, v.ForeignKey, v.Value))
	}
	for _, d := range r.Dangling {
		tv.Dangling = append(tv.Dangling, fmt.Sprintf("%s: %s", d.ForeignKey, d.Reason))
	}
	return tv
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [location]",
		Short: "Check every foreign key against the data",
		Long: `Check every foreign key of every table and report violating rows and
constraints whose referenced table or column is gone.

Exits non-zero when any table is invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			if _, err := e.load(cmd.Context(), optionalArg(args), cmd.ErrOrStderr()); err != nil {
				return err
			}

			results := make([]tableValidation, 0)
			valid := true
			for _, report := range e.instance.Engine.ValidateAll() {
				tv := newTableValidation(report)
				valid = valid && tv.Valid
				results = append(results, tv)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if err := writeJSON(out, results); err != nil {
					return err
				}
			} else {
				for _, tv := range results {
					if tv.Valid {
						fmt.Fprintf(out, "%s✓ %s%s\n", SuccessColor, tv.Table, ResetColor)
						continue
					}
					fmt.Fprintf(out, "%s✗ %s%s\n", ErrorColor, tv.Table, ResetColor)
					for _, line := range append(tv.Violations, tv.Dangling...) {
						fmt.Fprintf(out, "    %s\n", line)
					}
				}
			}

			if !valid {
				return errInvalid
			}
			return nil
		},
	}
	return cmd
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		outPath  string
		revision string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the archived catalog as a JSON document",
		Long: `Write the newest archived revision (or --revision) as a JSON document to
--out (path, file:// or s3://), or to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}

			var report db.LoadReport
			if revision != "" {
				report, err = e.instance.RestoreRevision(revision)
			} else {
				report, err = e.load(cmd.Context(), "", cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}
			if revision != "" {
				printFailures(cmd.ErrOrStderr(), report)
			}

			return writeDocument(cmd, e, outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "destination location (stdout if empty)")
	cmd.Flags().StringVarP(&revision, "revision", "r", "", "revision id or tag to export")
	return cmd
}

func writeDocument(cmd *cobra.Command, e *env, location string) error {
	if location == "" || location == "-" {
		return ps.Encode(cmd.OutOrStdout(), e.instance.Engine.Enumerate())
	}
	if err := e.instance.ExportTo(cmd.Context(), location, &e.cfg.S3); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s✓ Exported to %s%s\n", SuccessColor, location, ResetColor)
	return nil
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "import <location>",
		Short: "Load a JSON document and archive it",
		Long: `Load the document at location and commit it to the archive as the newest
revision. Tables, rows or constraints that fail to load are reported and
skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			report, err := e.load(cmd.Context(), args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if message == "" {
				message = "Import " + args[0]
			}
			rev, err := e.instance.Backup(e.cfg.Identity, message)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s✓ Imported %d table(s), %d row(s), %d foreign key(s)%s\n",
				SuccessColor, report.TablesCreated, report.RowsLoaded, report.ForeignKeysRestored, ResetColor)
			if !report.OK() {
				fmt.Fprintf(out, "%s⚠ %d step(s) failed%s\n", WarnColor, len(report.Failures), ResetColor)
			}
			fmt.Fprintf(out, "Revision %s\n", rev.Id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "revision message")
	return cmd
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dir     string
		keep    int
		upload  string
		archive bool
	)

	cmd := &cobra.Command{
		Use:   "backup [location]",
		Short: "Write a rotated backup file",
		Long: `Write backup_YYYYMMDD_HHMMSS.json into the backup directory, keeping the
newest --keep files, and optionally upload it and commit it to the archive.

Backs up the document at location, or the newest archived revision.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			if _, err := e.load(cmd.Context(), optionalArg(args), cmd.ErrOrStderr()); err != nil {
				return err
			}

			opts := ps.BackupOptions{
				Dir:       e.cfg.Backup.Dir,
				Keep:      e.cfg.Backup.Keep,
				UploadURL: e.cfg.Backup.UploadURL,
				S3:        &e.cfg.S3,
				Identity:  e.cfg.Identity,
			}
			if cmd.Flags().Changed("dir") {
				opts.Dir = dir
			}
			if cmd.Flags().Changed("keep") {
				opts.Keep = keep
			}
			if cmd.Flags().Changed("upload") {
				opts.UploadURL = upload
			}
			if archive || e.cfg.Backup.Archive {
				opts.Archive = e.instance.Persistence
			}

			result, err := e.instance.NewBackupScheduler(opts).BackupNow(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Path != "" {
				fmt.Fprintf(out, "%s✓ Wrote %s%s\n", SuccessColor, result.Path, ResetColor)
			}
			if result.Revision.Id != "" {
				fmt.Fprintf(out, "%s✓ Archived as %s%s\n", SuccessColor, result.Revision.Short(), ResetColor)
			}
			if result.Uploaded != "" {
				fmt.Fprintf(out, "%s✓ Uploaded to %s%s\n", SuccessColor, result.Uploaded, ResetColor)
			}
			for _, removed := range result.Removed {
				fmt.Fprintf(out, "  removed %s\n", removed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (default from config)")
	cmd.Flags().IntVar(&keep, "keep", ps.DefaultBackupKeep, "number of backup files to keep")
	cmd.Flags().StringVar(&upload, "upload", "", "also upload to this location; a trailing / appends the file name")
	cmd.Flags().BoolVar(&archive, "archive", false, "also commit the backup to the archive")
	return cmd
}

type revisionJSON struct {
	Id      string    `json:"id"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived revisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			revisions, err := e.instance.Persistence.History(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				list := make([]revisionJSON, len(revisions))
				for i, r := range revisions {
					list[i] = revisionJSON{Id: r.Id, Author: r.Author, Message: r.Message, When: r.When}
				}
				return writeJSON(out, list)
			}

			if len(revisions) == 0 {
				fmt.Fprintln(out, "No revisions")
				return nil
			}
			for _, r := range revisions {
				fmt.Fprintf(out, "%s%s%s  %s  %s  %s\n",
					PromptColor, r.Short(), ResetColor, r.When.Format(time.DateTime), r.Author, r.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of revisions (0 for all)")
	return cmd
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "restore <revision>",
		Short: "Restore an archived revision",
		Long: `Load the catalog archived at revision (an id, a tag or an expression such
as HEAD~1). With --out the document is written there; otherwise it is
committed as the newest revision.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}

			rev, err := e.instance.Persistence.Resolve(args[0])
			if err != nil {
				return err
			}
			report, err := e.instance.RestoreRevision(rev.Id)
			if err != nil {
				return err
			}
			printFailures(cmd.ErrOrStderr(), report)

			if outPath != "" {
				return writeDocument(cmd, e, outPath)
			}

			restored, err := e.instance.Backup(e.cfg.Identity, "Restore "+rev.Short())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Restored %s as %s%s\n", SuccessColor, rev.Short(), restored.Short(), ResetColor)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the restored document here instead of archiving it")
	return cmd
}

// NewTagCommand creates the tag command.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <name> [revision]",
		Short: "Name a restore point",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}

			target := "HEAD"
			if len(args) == 2 {
				target = args[1]
			}
			rev, err := e.instance.Persistence.Resolve(target)
			if err != nil {
				return err
			}
			if err := e.instance.Persistence.Tag(args[0], &rev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Tagged %s as %s%s\n", SuccessColor, rev.Short(), args[0], ResetColor)
			return nil
		},
	}
	return cmd
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		remote string
		url    string
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the archive and its tags to a git remote",
		Long: `Push every archived revision and tag to the configured remote. With --url
the remote is registered first if it does not exist yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			persistence := e.instance.Persistence

			name := e.cfg.Remote.Name
			if remote != "" {
				name = remote
			}
			target := e.cfg.Remote.URL
			if url != "" {
				target = url
			}

			if target != "" {
				remotes, err := persistence.ListRemotes()
				if err != nil {
					return err
				}
				if !slices.ContainsFunc(remotes, func(r ps.Remote) bool { return r.Name == name }) {
					if err := persistence.AddRemote(name, target); err != nil {
						return err
					}
				}
			}

			if err := persistence.Push(name, &e.cfg.Remote.Auth); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Pushed to %s%s\n", SuccessColor, name, ResetColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "remote name (default from config)")
	cmd.Flags().StringVar(&url, "url", "", "remote URL, registered when the remote is missing")
	return cmd
}
