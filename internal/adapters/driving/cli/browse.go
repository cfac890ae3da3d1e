package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convorag/internal/adapters/driving/tui"
)

// errNotTerminal is returned when browse runs without an interactive terminal.
var errNotTerminal = errors.New("browse requires an interactive terminal")

// runTUI starts the program. Replaced in tests.
var runTUI = func(ctx context.Context, a *tui.App) error {
	return a.Run(ctx)
}

var browseCmd = &cobra.Command{
	Use:   "browse [conversation-id]",
	Short: "Browse a conversation interactively",
	Long: `Opens a terminal UI over one conversation. Queries run against its
index with the configured retrieval settings; tab switches to the document
list, where enter opens a document. Without an embedding provider only the
document list works.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if !isTerminal(cmd.OutOrStdout()) {
		return errNotTerminal
	}
	docs, err := documents()
	if err != nil {
		return err
	}

	ports := &tui.Ports{
		Document:       docs,
		ConversationID: args[0],
		Options:        searchOptions(cmd),
	}
	if app.Retrieval != nil {
		ports.Retrieval = app.Retrieval
	}

	a, err := tui.NewApp(ports)
	if err != nil {
		return err
	}
	return runTUI(cmd.Context(), a)
}
