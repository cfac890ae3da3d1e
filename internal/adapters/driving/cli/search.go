package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// Search statuses in JSON output.
const (
	statusOK    = "ok"
	statusEmpty = "empty"
)

var (
	searchTopK               int
	searchThreshold          float64
	searchWindow             int
	searchDocLengthThreshold int
	searchJSON               bool
	searchContext            bool
)

var searchCmd = &cobra.Command{
	Use:   "search [conversation-id] [query]",
	Short: "Search a conversation's documents",
	Long: `Finds the passages of a conversation's documents most similar to the query.

Each match is merged with up to --window neighbouring chunks on each side.
Matches scoring below --threshold are dropped. When the conversation's total
text is shorter than --doc-length-threshold, the whole text is returned.

Output is JSON when --json is set or stdout is not a terminal. A search
without relevant passages exits 0; a conversation without an index fails.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	d := domain.DefaultSearchOptions()
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", d.TopK, "maximum number of passages")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", d.SimilarityThreshold, "minimum similarity score")
	searchCmd.Flags().IntVarP(&searchWindow, "window", "w", d.ContextWindow, "neighbouring chunks merged on each side")
	searchCmd.Flags().IntVar(&searchDocLengthThreshold, "doc-length-threshold", d.DocLengthThreshold,
		"return the whole text below this length")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchContext, "context", false, "print only the joined passage text")
	rootCmd.AddCommand(searchCmd)
}

// searchOptions starts from the configured retrieval settings and applies
// the flags the user set.
func searchOptions(cmd *cobra.Command) domain.SearchOptions {
	opts := domain.DefaultSearchOptions()
	if app != nil && app.Settings != nil {
		if s, err := app.Settings.Get(); err == nil {
			opts = s.Retrieval
		}
	}

	flags := cmd.Flags()
	if flags.Changed("top-k") {
		opts.TopK = searchTopK
	}
	if flags.Changed("threshold") {
		opts.SimilarityThreshold = searchThreshold
	}
	if flags.Changed("window") {
		opts.ContextWindow = searchWindow
	}
	if flags.Changed("doc-length-threshold") {
		opts.DocLengthThreshold = searchDocLengthThreshold
	}
	return opts
}

type searchOutput struct {
	Status         string             `json:"status"`
	ConversationID string             `json:"conversation_id"`
	Query          string             `json:"query"`
	Hits           []domain.SearchHit `json:"hits"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := retrieval()
	if err != nil {
		return err
	}

	conversationID, query := args[0], args[1]
	opts := searchOptions(cmd)
	if err := opts.Validate(); err != nil {
		return err
	}

	hits, err := svc.Search(cmd.Context(), conversationID, query, opts)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("conversation %s has no index, run 'convorag index %s': %w",
			conversationID, conversationID, err)
	case errors.Is(err, domain.ErrEmpty):
		hits = []domain.SearchHit{}
	case err != nil:
		return fmt.Errorf("search failed: %w", err)
	}

	if searchContext {
		texts := make([]string, len(hits))
		for i := range hits {
			texts[i] = hits[i].Text
		}
		if len(texts) > 0 {
			cmd.Println(strings.Join(texts, "\n"))
		}
		return nil
	}

	if wantJSON(cmd, searchJSON) {
		status := statusOK
		if len(hits) == 0 {
			status = statusEmpty
		}
		return writeJSON(cmd, searchOutput{
			Status:         status,
			ConversationID: conversationID,
			Query:          query,
			Hits:           hits,
		})
	}

	outputSearchText(cmd, hits)
	return nil
}

func outputSearchText(cmd *cobra.Command, hits []domain.SearchHit) {
	st := newStyles(cmd.OutOrStdout())
	if len(hits) == 0 {
		cmd.Println(st.Warning.Render("No relevant results."))
		return
	}

	if hits[0].Bypass {
		cmd.Println(st.Muted.Render("Short conversation, returning the full text:"))
		cmd.Println()
		cmd.Println(hits[0].Text)
		return
	}

	cmd.Println(st.Title.Render("Results:"))
	cmd.Println()
	for i := range hits {
		cmd.Printf("  [%d] %s  %s\n", i+1,
			st.Score.Render(fmt.Sprintf("%.3f", hits[i].Score)),
			st.Muted.Render(fmt.Sprintf("chunks %d-%d", hits[i].Start, hits[i].End)))
		cmd.Println(st.Passage.Render(hits[i].Text))
		cmd.Println()
	}
}
