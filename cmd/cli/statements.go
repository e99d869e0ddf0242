package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/db"
	"github.com/nickyhof/TableDB/ps"
)

// execute runs one shell command against the engine and prints its result.
func (cli *CLI) execute(line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	engine := cli.instance.Engine
	name, args := strings.ToLower(args[0]), args[1:]

	need := func(n int, usage string) error {
		if len(args) < n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}
	show := func(result db.Result, err error) error {
		if err != nil {
			return err
		}
		result.Render(cli.out)
		return nil
	}

	switch name {
	case "tables":
		names := engine.TableNames()
		data := make([][]string, len(names))
		for i, n := range names {
			data[i] = []string{n}
		}
		return show(db.QueryResult{Columns: []string{"Table"}, Data: data, RecordsRead: len(data)}, nil)

	case "describe":
		if err := need(1, "describe <table>"); err != nil {
			return err
		}
		return show(engine.Describe(args[0]))

	case "select":
		if err := need(1, "select <table>"); err != nil {
			return err
		}
		return show(engine.Select(args[0]))

	case "create":
		if err := need(2, "create <table> <column:TYPE[:pk]>..."); err != nil {
			return err
		}
		columns, err := parseColumnSpecs(args[1:])
		if err != nil {
			return err
		}
		result, err := engine.CreateTable(args[0], columns)
		if err != nil {
			return err
		}
		for _, col := range columns {
			if col.PrimaryKey {
				if _, err := engine.SetPrimaryKey(args[0], col.Name, true); err != nil {
					return err
				}
			}
		}
		return show(result, nil)

	case "drop":
		if err := need(1, "drop <table>"); err != nil {
			return err
		}
		return show(engine.DropTable(args[0]))

	case "insert":
		if err := need(1, "insert <table> <value>..."); err != nil {
			return err
		}
		values := make([]any, len(args)-1)
		for i, v := range args[1:] {
			values[i] = v
		}
		result, err := engine.InsertRow(args[0], values)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "row %d\n", result.RowIndex)
		return show(result, nil)

	case "update":
		if err := need(4, "update <table> <row> <column> <value>"); err != nil {
			return err
		}
		row, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid row %q", args[1])
		}
		column, err := engine.ColumnIndex(args[0], args[2])
		if err != nil {
			return err
		}
		return show(engine.UpdateRow(args[0], row, column, args[3]))

	case "delete":
		if err := need(2, "delete <table> <row>"); err != nil {
			return err
		}
		row, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid row %q", args[1])
		}
		return show(engine.DeleteRow(args[0], row))

	case "add-column":
		if err := need(3, "add-column <table> <column> <TYPE> [default]"); err != nil {
			return err
		}
		kind, err := core.ParseColumnType(args[2])
		if err != nil {
			return err
		}
		var def any
		if len(args) > 3 {
			def = args[3]
		}
		return show(engine.AddColumn(args[0], args[1], kind, def))

	case "drop-column":
		if err := need(2, "drop-column <table> <column>"); err != nil {
			return err
		}
		return show(engine.DropColumn(args[0], args[1]))

	case "rename-column":
		if err := need(3, "rename-column <table> <old> <new>"); err != nil {
			return err
		}
		return show(engine.RenameColumn(args[0], args[1], args[2]))

	case "transform":
		if err := need(2, "transform <table> <column:TYPE[:pk]>..."); err != nil {
			return err
		}
		columns, err := parseColumnSpecs(args[1:])
		if err != nil {
			return err
		}
		return show(engine.TransformTable(args[0], columns))

	case "primary-key":
		if err := need(2, "primary-key <table> <column> [on|off]"); err != nil {
			return err
		}
		on := len(args) < 3 || !strings.EqualFold(args[2], "off")
		return show(engine.SetPrimaryKey(args[0], args[1], on))

	case "fk":
		if err := need(4, "fk <table> <column> <ref-table> <ref-column>"); err != nil {
			return err
		}
		return show(engine.AddForeignKey(args[0], args[1], args[2], args[3]))

	case "drop-fk":
		if err := need(2, "drop-fk <table> <column>"); err != nil {
			return err
		}
		return show(engine.RemoveForeignKey(args[0], args[1]))

	case "validate":
		var reports []db.ValidationReport
		if len(args) > 0 {
			report, err := engine.ValidateForeignKeys(args[0])
			if err != nil {
				return err
			}
			reports = append(reports, report)
		} else {
			reports = engine.ValidateAll()
		}
		for _, r := range reports {
			tv := newTableValidation(r)
			if tv.Valid {
				fmt.Fprintf(cli.out, "%s✓ %s%s\n", SuccessColor, tv.Table, ResetColor)
				continue
			}
			fmt.Fprintf(cli.out, "%s✗ %s%s\n", ErrorColor, tv.Table, ResetColor)
			for _, line := range append(tv.Violations, tv.Dangling...) {
				fmt.Fprintf(cli.out, "    %s\n", line)
			}
		}
		return nil

	case "begin":
		return show(engine.Begin())

	case "commit":
		return show(engine.Commit())

	case "rollback":
		return show(engine.Rollback())

	case "export":
		if err := need(1, "export <location>"); err != nil {
			return err
		}
		if err := cli.instance.ExportTo(cli.ctx, args[0], cli.s3); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s✓ Exported to %s%s\n", SuccessColor, args[0], ResetColor)
		return nil

	case "import":
		if err := need(1, "import <location>"); err != nil {
			return err
		}
		report, err := cli.instance.ImportFrom(cli.ctx, args[0], cli.s3)
		if err != nil {
			return err
		}
		printFailures(cli.out, report)
		fmt.Fprintf(cli.out, "%s✓ Imported %d table(s), %d row(s)%s\n", SuccessColor, report.TablesCreated, report.RowsLoaded, ResetColor)
		return nil

	case "save":
		message := strings.Join(args, " ")
		if message == "" {
			message = "Save from shell"
		}
		rev, err := cli.instance.Backup(cli.identity, message)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s✓ Saved as %s%s\n", SuccessColor, rev.Short(), ResetColor)
		return nil

	case "restore":
		var (
			report db.LoadReport
			err    error
		)
		if len(args) > 0 {
			report, err = cli.instance.RestoreRevision(args[0])
		} else {
			report, _, err = cli.instance.RestoreLatest()
			if errors.Is(err, ps.ErrNoRevisions) {
				return errors.New("the archive has no revisions")
			}
		}
		if err != nil {
			return err
		}
		printFailures(cli.out, report)
		fmt.Fprintf(cli.out, "%s✓ Restored %d table(s)%s\n", SuccessColor, report.TablesCreated, ResetColor)
		return nil

	default:
		return fmt.Errorf("unknown command %q (type .help for commands)", name)
	}
}

// parseColumnSpecs parses "name:TYPE" or "name:TYPE:pk" words.
func parseColumnSpecs(specs []string) ([]core.Column, error) {
	columns := make([]core.Column, len(specs))
	for i, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid column %q: expected name:TYPE[:pk]", spec)
		}
		kind, err := core.ParseColumnType(parts[1])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", parts[0], err)
		}
		col := core.Column{Name: parts[0], Type: kind}
		if len(parts) == 3 {
			if !strings.EqualFold(parts[2], "pk") {
				return nil, fmt.Errorf("invalid column %q: unknown flag %s", spec, parts[2])
			}
			col.PrimaryKey = true
		}
		columns[i] = col
	}
	return columns, nil
}

// splitArgs splits a command line into words. Single or double quotes group
// a word, which may be empty; a backslash escapes the next character.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
		quote   byte
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]

		switch {
		case ch == '\\' && i+1 < len(line):
			i++
			current.WriteByte(line[i])
			inWord = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				current.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inWord = true
		case ch == ' ' || ch == '\t':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteByte(ch)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}

// importFile runs the commands in a file, one per line. Blank lines and
// lines starting with -- or # are skipped; failures are reported and the
// rest of the file still runs.
func (cli *CLI) importFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	successCount := 0
	errorCount := 0

	scanner := bufio.NewScanner(file)
	for n := 1; scanner.Scan(); n++ {
		stmt := strings.TrimSpace(scanner.Text())
		if stmt == "" || strings.HasPrefix(stmt, "--") || strings.HasPrefix(stmt, "#") {
			continue
		}

		if err := cli.execute(stmt); err != nil {
			fmt.Fprintf(cli.out, "%s[%d] ✗ %s%s\n", ErrorColor, n, truncate(stmt, 50), ResetColor)
			fmt.Fprintf(cli.out, "      Error: %v\n", err)
			errorCount++
			continue
		}
		successCount++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "\n%s✓ Import complete: %d succeeded, %d failed%s\n",
		SuccessColor, successCount, errorCount, ResetColor)
	return nil
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
