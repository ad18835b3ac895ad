// Command jirafork forks a Jira project into another Jira instance while
// preserving issue numbering, content, and relationships.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daviderichammer/jira-fork-tool/internal/config"
	"github.com/daviderichammer/jira-fork-tool/internal/engine"
	"github.com/daviderichammer/jira-fork-tool/internal/jira"
	"github.com/daviderichammer/jira-fork-tool/internal/state"
)

var (
	configPath  string
	verboseFlag bool
	jsonOutput  bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "jirafork",
	Short: "Fork and synchronize Jira projects across instances",
	Long: `jirafork copies a Jira project into another instance: issues in
original key order with numbering gaps handled, descriptions and comments
converted to destination-safe documents, attachments, links, and hierarchy.

Progress is checkpointed in a local database so an interrupted fork can be
resumed, and completed forks can be kept current with incremental sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable JSON output")

	rootCmd.AddCommand(forkCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

// newLogger builds the process logger. The config level applies unless
// --verbose forces debug.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setup loads configuration and wires the engine against both instances and
// the local state store. The returned closer releases the store.
func setup() (*engine.Engine, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)

	store, err := state.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	source := jira.NewClient(cfg.Source.URL, cfg.Source.Email, cfg.Source.APIToken)
	dest := jira.NewClient(cfg.Destination.URL, cfg.Destination.Email, cfg.Destination.APIToken)

	eng := engine.New(source, dest, store, cfg, logger)
	if !jsonOutput {
		eng.OnMessage = func(msg string) { fmt.Println(msg) }
		eng.OnWarning = func(msg string) { fmt.Println(warnStyle.Render("! ") + msg) }
	}

	closer := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing state store", "error", err)
		}
	}
	return eng, closer, nil
}
