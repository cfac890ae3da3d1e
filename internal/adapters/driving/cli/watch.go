package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convorag/internal/connectors/filesystem"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
	"github.com/custodia-labs/convorag/internal/core/services"
)

var (
	watchPrune    bool
	watchOnce     bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [conversation-id] [directory]",
	Short: "Mirror a directory into a conversation",
	Long: `Stores every text file under the directory as a document of the
conversation, builds the index, then keeps both up to date as files are
created, changed or removed. Hidden files and directories are ignored.

With --prune, documents of the conversation that are not in the directory
are deleted on start. With --once the command exits after the first sync.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchPrune, "prune", false, "delete documents missing from the directory")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "sync once and exit")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", services.DefaultDebounce,
		"quiet period before rebuilding after changes")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ingest, err := ingester()
	if err != nil {
		return err
	}
	builder, err := indexer()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("debounce") {
		ingest = services.NewIngestService(app.Documents, builder, watchDebounce)
	}

	conversationID, dir := args[0], args[1]
	src := filesystem.New(conversationID, dir, filesystem.WithNormalisers(fileNormalisers()))
	defer src.Close()
	if err := src.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	result, err := ingest.Sync(ctx, src, watchPrune)
	if err != nil {
		return fmt.Errorf("failed to sync %s: %w", dir, err)
	}
	cmd.Printf("Synced %s: %d stored, %d unchanged, %d removed\n",
		conversationID, result.Stored, result.Unchanged, result.Removed)

	if err := buildAfterSync(cmd, builder, result); err != nil {
		return err
	}
	if watchOnce {
		return nil
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	return ingest.Watch(ctx, src)
}

// buildAfterSync rebuilds the index when the sync changed documents or no
// index exists yet.
func buildAfterSync(cmd *cobra.Command, builder driving.IndexBuilder, result *domain.SyncResult) error {
	if !result.Changed() && !missingIndex(cmd, result.ConversationID) {
		return nil
	}

	built, err := builder.RunPreprocessing(cmd.Context(), result.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", result.ConversationID, err)
	}
	if built.Skipped {
		if err := builder.DropIndex(cmd.Context(), result.ConversationID); err != nil {
			return fmt.Errorf("failed to drop empty index: %w", err)
		}
	}
	printBuildResult(cmd, built)
	return nil
}

// missingIndex reports whether the conversation has no persisted index.
func missingIndex(cmd *cobra.Command, conversationID string) bool {
	if app == nil || app.Indexes == nil {
		return true
	}
	_, err := app.Indexes.Stat(cmd.Context(), conversationID)
	return errors.Is(err, domain.ErrNotFound)
}
