// Package cli implements the convorag command line.
package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/convorag/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

// app holds the wired services. Tests assign it directly.
var app *App

// newApp is replaced in tests.
var newApp = Bootstrap

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "convorag",
	Short: "Retrieval over the documents of a conversation",
	Long: `convorag indexes the documents attached to a conversation and answers
semantic queries against them.

Documents are chunked, embedded and stored as one index per conversation.
A search returns the passages most similar to the query, merged with their
neighbouring chunks. Conversations whose documents are short are returned
whole without searching.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.convorag/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if app != nil {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("close: %v", cerr)
		}
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env: %v", err)
	}
	logger.SetVerbose(verbose)

	if app != nil || cmd.Annotations[skipBootstrap] != "" {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, Options{ConfigPath: configPath})
	if err != nil {
		return err
	}
	app = a
	return nil
}
