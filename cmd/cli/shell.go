package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickyhof/TableDB"
	"github.com/nickyhof/TableDB/core"
	"github.com/nickyhof/TableDB/ps"
)

const historyLimit = 1000

// CLI holds the interactive shell state.
type CLI struct {
	ctx         context.Context
	instance    *TableDB.Instance
	identity    core.Identity
	s3          *ps.S3Config
	in          io.Reader
	out         io.Writer
	history     []string
	historyFile string
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:   "shell [location]",
		Short: "Interactive shell over the catalog",
		Long: `Start an interactive shell. The catalog is loaded from location, or from
the newest archived revision. Use "save" to commit it back to the archive.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			if _, err := e.load(cmd.Context(), optionalArg(args), cmd.ErrOrStderr()); err != nil {
				return err
			}

			cli := &CLI{
				ctx:      cmd.Context(),
				instance: e.instance,
				identity: e.cfg.Identity,
				s3:       &e.cfg.S3,
				in:       cmd.InOrStdin(),
				out:      cmd.OutOrStdout(),
			}

			if script != "" {
				return cli.importFile(script)
			}

			cli.historyFile = getHistoryPath()
			cli.loadHistory()
			defer cli.saveHistory()

			cli.printBanner()
			cli.run()
			return nil
		},
	}

	cmd.Flags().StringVarP(&script, "file", "f", "", "run the commands in a script file and exit")
	return cmd
}

func (cli *CLI) printBanner() {
	fmt.Fprintln(cli.out)
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("TableDB v%s", Version)
	padding := max(bannerWidth-len(versionLine)-2, 0)
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Fprintf(cli.out, "%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintf(cli.out, "%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Fprintf(cli.out, "%s%s║   Relational tables, git backups      ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintf(cli.out, "%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(cli.out)
	fmt.Fprintln(cli.out, "Type .help for commands, .quit to exit")
	fmt.Fprintln(cli.out)
}

// run reads commands until end of input or .quit.
func (cli *CLI) run() {
	reader := bufio.NewReader(cli.in)

	for {
		fmt.Fprint(cli.out, cli.getPrompt())

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			fmt.Fprintf(cli.out, "\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ".") {
			if quit := cli.handleCommand(input); quit {
				return
			}
			continue
		}

		cli.addToHistory(input)
		if err := cli.execute(input); err != nil {
			fmt.Fprintf(cli.out, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		}
	}
}

func (cli *CLI) getPrompt() string {
	txn := ""
	if info, ok := cli.instance.Engine.CurrentTransaction(); ok {
		txn = fmt.Sprintf(" (txn %s)", info.Id[:8])
	}
	return fmt.Sprintf("%stabledb%s>%s ", PromptColor, txn, ResetColor)
}

// handleCommand runs a dot command and reports whether the shell should
// exit.
func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return false
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		fmt.Fprintf(cli.out, "%sGoodbye!%s\n", SuccessColor, ResetColor)
		return true

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".clear", ".cls":
		fmt.Fprint(cli.out, "\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Fprintf(cli.out, "TableDB version %s\n", Version)

	case ".source", ".read":
		if len(parts) > 1 {
			if err := cli.importFile(parts[1]); err != nil {
				fmt.Fprintf(cli.out, "%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			}
		} else {
			fmt.Fprintf(cli.out, "%s✗ Usage: .source <file>%s\n", ErrorColor, ResetColor)
		}

	default:
		fmt.Fprintf(cli.out, "%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return false
}

func (cli *CLI) printHelp() {
	w := cli.out
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w, "  .help, .h        Show this help message")
	fmt.Fprintln(w, "  .quit, .exit     Exit the shell")
	fmt.Fprintln(w, "  .source <file>   Run commands from a file")
	fmt.Fprintln(w, "  .history         Show command history")
	fmt.Fprintln(w, "  .clear           Clear the screen")
	fmt.Fprintln(w, "  .version         Show version info")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sTables:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w, "  tables")
	fmt.Fprintln(w, "  create <table> <column:TYPE[:pk]>...")
	fmt.Fprintln(w, "  drop <table>")
	fmt.Fprintln(w, "  describe <table>")
	fmt.Fprintln(w, "  select <table>")
	fmt.Fprintln(w, "  insert <table> <value>...")
	fmt.Fprintln(w, "  update <table> <row> <column> <value>")
	fmt.Fprintln(w, "  delete <table> <row>")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sSchema:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w, "  add-column <table> <column> <TYPE> [default]")
	fmt.Fprintln(w, "  drop-column <table> <column>")
	fmt.Fprintln(w, "  rename-column <table> <old> <new>")
	fmt.Fprintln(w, "  transform <table> <column:TYPE[:pk]>...")
	fmt.Fprintln(w, "  primary-key <table> <column> [on|off]")
	fmt.Fprintln(w, "  fk <table> <column> <ref-table> <ref-column>")
	fmt.Fprintln(w, "  drop-fk <table> <column>")
	fmt.Fprintln(w, "  validate [table]")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sTransactions and archive:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w, "  begin | commit | rollback")
	fmt.Fprintln(w, "  export <location> | import <location>")
	fmt.Fprintln(w, "  save [message] | restore [revision]")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%sTypes:%s INT, FLOAT, TEXT\n", BoldColor, PromptColor, ResetColor)
	fmt.Fprintln(w)
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > historyLimit {
		cli.history = cli.history[len(cli.history)-historyLimit:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Fprintln(cli.out, "No command history")
		return
	}

	start := max(len(cli.history)-20, 0)
	for i := start; i < len(cli.history); i++ {
		fmt.Fprintf(cli.out, "  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tabledb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := max(len(cli.history)-historyLimit, 0)
	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}
