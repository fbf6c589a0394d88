package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/hylla/nudger/internal/adapters/server"
	"github.com/hylla/nudger/internal/platform"
	"github.com/spf13/cobra"
)

// version is stamped at release time.
var version = "dev"

// program is the subset of a tea.Program used by watch mode.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the dashboard program; tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner runs the HTTP and MCP listener; tests replace it.
var serveCommandRunner = server.Run

// rootOptions carries persistent flag values shared by every subcommand.
type rootOptions struct {
	appName    string
	configPath string
	dbPath     string
	devMode    bool
	getenv     func(string) string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes one command line against the given writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// newRootCommand builds the command tree. With no subcommand it opens the dashboard.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{
		appName: platform.DefaultAppName,
		devMode: platform.DevModeFromEnv(os.Getenv),
		getenv:  os.Getenv,
	}

	root := &cobra.Command{
		Use:           "nudger",
		Short:         "Prioritized follow-up reminders for leads, deals, and captures",
		Long:          "nudger scans leads, deals, and capture items, ranks what needs attention, and lets you snooze or dismiss each reminder.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newListCommand(opts, stdout, stderr),
		newSummaryCommand(opts, stdout, stderr),
		newSnoozeCommand(opts, stdout, stderr),
		newUnsnoozeCommand(opts, stdout, stderr),
		newDismissCommand(opts, stdout, stderr),
		newSnoozesCommand(opts, stdout, stderr),
		newPruneCommand(opts, stdout, stderr),
		newImportCommand(opts, stdout, stderr),
		newServeCommand(opts, stderr),
		newWatchCommand(opts, stderr),
		newPathsCommand(opts, stdout),
	)
	return root
}
