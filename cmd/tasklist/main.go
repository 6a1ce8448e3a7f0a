package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tasklist/clock"
	"tasklist/config"
	"tasklist/logging"
	"tasklist/model"
)

// env holds global flags and the state built from them before a command runs.
type env struct {
	configPath string
	dataDir    string
	backend    string
	verbose    bool

	out    io.Writer
	errOut io.Writer
	clock  clock.Clock

	cfg *config.Config
	log *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&env{out: os.Stdout, errOut: os.Stderr, clock: clock.RealClock{}})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "tasklist",
		Short: "A single-user task list with reminders",
		Long: `tasklist keeps a prioritised, categorised task list with optional start
and due dates and one-shot reminders.

Run without arguments to open the interactive terminal UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd == cmd.Root())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), e)
		},
	}
	root.SetOut(e.out)
	root.SetErr(e.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&e.configPath, "config", config.DefaultPath(), "path to the YAML config file")
	flags.StringVar(&e.dataDir, "data-dir", "", "directory holding task data (overrides config)")
	flags.StringVar(&e.backend, "backend", "", "storage backend: file, sqlite or memory (overrides config)")
	flags.BoolVarP(&e.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newAddCmd(e),
		newListCmd(e),
		newDoneCmd(e),
		newReopenCmd(e),
		newEditCmd(e),
		newRmCmd(e),
		newClearCmd(e),
		newStatsCmd(e),
		newWatchCmd(e),
		newExportICSCmd(e),
	)
	return root
}

// setup loads configuration and builds the logger. The interactive UI owns
// the terminal, so it logs to a file; other commands log to stderr.
func (e *env) setup(interactive bool) error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if e.dataDir != "" {
		cfg.Storage.DataDir = e.dataDir
	}
	if b := strings.ToLower(strings.TrimSpace(e.backend)); b != "" {
		cfg.Storage.Backend = b
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg

	opts := logging.Options{Level: cfg.Logging.Level, Verbose: e.verbose}
	if interactive {
		opts.File = cfg.LogFile()
	}
	if !interactive && cfg.Logging.Level == "info" {
		// Keep scripted output clean unless something goes wrong.
		opts.Level = "warn"
	}
	log, err := logging.New(opts)
	if err != nil {
		return err
	}
	e.log = log
	return nil
}

func (e *env) open(notify func(model.Notification)) (*core, error) {
	return openCore(e.cfg, e.log, e.clock, notify)
}
