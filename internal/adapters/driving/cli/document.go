package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convorag/internal/connectors/filesystem"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage conversation documents",
	Long:  `Add, list, view, or remove the documents of a conversation.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add [conversation-id] [file]",
	Short: "Add a document to a conversation",
	Long: `Stores the text of a file as a new document of the conversation.
Markdown, HTML, email (.eml) and Word (.docx) files are converted to plain
text. Use "-" as the file to read from stdin. With --reindex the conversation's
index is rebuilt afterwards.`,
	Args: cobra.ExactArgs(2),
	RunE: runDocumentAdd,
}

var documentListCmd = &cobra.Command{
	Use:   "list [conversation-id]",
	Short: "List documents of a conversation, or all conversations",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info and content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentRemoveCmd = &cobra.Command{
	Use:     "rm [doc-id]",
	Aliases: []string{"remove"},
	Short:   "Remove a document",
	Args:    cobra.ExactArgs(1),
	RunE:    runDocumentRemove,
}

var (
	documentTitle   string
	documentReindex bool
)

func init() {
	documentAddCmd.Flags().StringVar(&documentTitle, "title", "", "document title (default: file name)")
	documentAddCmd.Flags().BoolVar(&documentReindex, "reindex", false, "rebuild the conversation index afterwards")
	documentRemoveCmd.Flags().BoolVar(&documentReindex, "reindex", false, "rebuild the conversation index afterwards")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentRemoveCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	svc, err := documents()
	if err != nil {
		return err
	}

	conversationID, path := args[0], args[1]
	raw := &domain.RawFile{Path: path, MIMEType: "text/plain"}
	if path == "-" {
		raw.Content, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw.MIMEType = filesystem.DetectMIMEType(path)
		raw.Content, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	text, err := fileNormalisers().Normalise(cmd.Context(), raw)
	if err != nil {
		return fmt.Errorf("failed to extract text from %s: %w", path, err)
	}

	title := documentTitle
	if title == "" && path != "-" {
		title = filepath.Base(path)
	}

	doc, err := svc.Add(cmd.Context(), conversationID, title, text.Content)
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	cmd.Printf("Added document: %s\n", doc.ID)

	if documentReindex {
		return runIndexOne(cmd, conversationID)
	}
	return nil
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	svc, err := documents()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return listConversations(cmd, svc)
	}

	conversationID := args[0]
	docs, err := svc.List(cmd.Context(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents found for conversation: %s\n", conversationID)
		return nil
	}

	cmd.Printf("Documents for conversation %s:\n\n", conversationID)
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		if docs[i].Title != "" {
			cmd.Printf("    Title: %s\n", docs[i].Title)
		}
		cmd.Printf("    Length: %d\n", docs[i].Len())
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func listConversations(cmd *cobra.Command, svc driving.DocumentService) error {
	convs, err := svc.Conversations(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(convs) == 0 {
		cmd.Println("No conversations found.")
		return nil
	}

	cmd.Println("Conversations:")
	cmd.Println()
	for _, c := range convs {
		cmd.Printf("  %s  %d documents  updated %s\n",
			c.ConversationID, c.Documents, c.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	svc, err := documents()
	if err != nil {
		return err
	}

	doc, err := svc.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:        %s\n", doc.Title)
	cmd.Printf("  Conversation: %s\n", doc.ConversationID)
	cmd.Printf("  Length:       %d\n", doc.Len())
	cmd.Printf("  Created:      %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:      %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	cmd.Println()
	cmd.Println(doc.Content)
	return nil
}

func runDocumentRemove(cmd *cobra.Command, args []string) error {
	svc, err := documents()
	if err != nil {
		return err
	}

	docID := args[0]
	doc, err := svc.Get(cmd.Context(), docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if err := svc.Delete(cmd.Context(), docID); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}
	cmd.Printf("Removed document: %s\n", docID)

	if !documentReindex {
		return nil
	}
	b, err := indexer()
	if err != nil {
		return err
	}
	result, err := b.RunPreprocessing(cmd.Context(), doc.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", doc.ConversationID, err)
	}
	if result.Skipped {
		if err := b.DropIndex(cmd.Context(), doc.ConversationID); err != nil {
			return fmt.Errorf("failed to drop empty index: %w", err)
		}
		cmd.Printf("Dropped index: %s\n", doc.ConversationID)
		return nil
	}
	printBuildResult(cmd, result)
	return nil
}
