package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

var (
	indexAll   bool
	indexStale bool
	indexDrop  bool
)

var indexCmd = &cobra.Command{
	Use:   "index [conversation-id]",
	Short: "Build conversation indexes",
	Long: `Chunks and embeds every document of a conversation and replaces its index.

With --all every conversation is rebuilt. With --stale only conversations
whose documents changed since their index was built are rebuilt, and indexes
of conversations without documents are dropped. --drop deletes the index of
the given conversation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexAll, "all", false, "rebuild every conversation")
	indexCmd.Flags().BoolVar(&indexStale, "stale", false, "rebuild only stale conversations")
	indexCmd.Flags().BoolVar(&indexDrop, "drop", false, "delete the conversation's index")
	indexCmd.MarkFlagsMutuallyExclusive("all", "stale", "drop")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexAll || indexStale {
		if len(args) > 0 {
			return errors.New("a conversation id cannot be combined with --all or --stale")
		}
	} else if len(args) != 1 {
		return errors.New("a conversation id is required")
	}

	switch {
	case indexStale:
		return runIndexStale(cmd)
	case indexAll:
		return runIndexAll(cmd)
	case indexDrop:
		return runIndexDrop(cmd, args[0])
	default:
		return runIndexOne(cmd, args[0])
	}
}

func runIndexOne(cmd *cobra.Command, conversationID string) error {
	svc, err := indexer()
	if err != nil {
		return err
	}

	result, err := svc.RunPreprocessing(cmd.Context(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", conversationID, err)
	}
	printBuildResult(cmd, result)
	return nil
}

func runIndexAll(cmd *cobra.Command) error {
	svc, err := indexer()
	if err != nil {
		return err
	}

	results, err := svc.RunAll(cmd.Context())
	for i := range results {
		printBuildResult(cmd, &results[i])
	}
	if err != nil {
		return fmt.Errorf("failed to index conversations: %w", err)
	}
	cmd.Printf("Indexed %d conversations\n", len(results))
	return nil
}

func runIndexStale(cmd *cobra.Command) error {
	if app == nil || app.Refresher == nil {
		return embeddingError("index")
	}

	n, err := app.Refresher.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to refresh indexes: %w", err)
	}
	cmd.Printf("Refreshed %d conversations\n", n)
	return nil
}

func runIndexDrop(cmd *cobra.Command, conversationID string) error {
	svc, err := indexer()
	if err != nil {
		return err
	}

	if err := svc.DropIndex(cmd.Context(), conversationID); err != nil {
		return fmt.Errorf("failed to drop index: %w", err)
	}
	cmd.Printf("Dropped index: %s\n", conversationID)
	return nil
}

func printBuildResult(cmd *cobra.Command, r *domain.BuildResult) {
	if r.Skipped {
		cmd.Printf("Skipped %s: no documents\n", r.ConversationID)
		return
	}
	cmd.Printf("Indexed %s: %d documents, %d chunks, dimension %d (%s)\n",
		r.ConversationID, r.Documents, r.Chunks, r.Dimension, r.Duration.Round(time.Millisecond))
}
