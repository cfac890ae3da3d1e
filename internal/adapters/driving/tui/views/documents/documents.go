// Package documents provides the documents list view component for the TUI.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/components/reader"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
)

// ErrNoDocumentService is returned when documents load without a service.
var ErrNoDocumentService = errors.New("document service not available")

// View lists the documents of one conversation and reads one in full.
type View struct {
	styles          *styles.Styles
	documentService driving.DocumentService
	reader          *reader.Reader

	conversationID string
	documents      []domain.Document
	selected       int
	scrollOffset   int
	width          int
	height         int
	err            error
	loading        bool
	reading        bool
	ctx            context.Context
}

// NewView creates a documents view for a conversation.
func NewView(s *styles.Styles, documentService driving.DocumentService, conversationID string) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:          s,
		documentService: documentService,
		reader:          reader.New(s),
		conversationID:  conversationID,
		width:           80,
		height:          24,
		ctx:             context.Background(),
	}
}

// WithContext sets the context used for loading.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Load returns a command that fetches the conversation's documents.
func (v *View) Load() tea.Cmd {
	v.loading = true
	return func() tea.Msg {
		if v.documentService == nil {
			return messages.DocumentsLoaded{ConversationID: v.conversationID, Err: ErrNoDocumentService}
		}
		docs, err := v.documentService.List(v.ctx, v.conversationID)
		return messages.DocumentsLoaded{ConversationID: v.conversationID, Documents: docs, Err: err}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.reading {
			if msg.Type == tea.KeyEsc {
				v.reading = false
				return v, nil
			}
			v.reader, _ = v.reader.Update(msg)
			return v, nil
		}
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.documents = msg.Documents
		v.selected = min(v.selected, max(len(v.documents)-1, 0))
		v.adjustScroll()
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case "down", "j":
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.adjustScroll()
		}
	case "enter":
		if doc := v.SelectedDocument(); doc != nil {
			v.reader.Open(documentTitle(doc), doc.Content)
			v.reading = true
		}
	case "r":
		return v, v.Load()
	}
	return v, nil
}

func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

func (v *View) visibleItemCount() int {
	// Title, blank lines, scroll indicator and status bar.
	return max(v.height-8, 1)
}

// View renders the documents view.
func (v *View) View() string {
	if v.reading {
		return v.reader.View()
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents - %s (%d)", v.conversationID, len(v.documents))))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
		return b.String()
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		return b.String()
	case len(v.documents) == 0:
		b.WriteString(v.styles.Muted.Render("No documents in this conversation."))
		return b.String()
	}

	visible := v.visibleItemCount()
	end := min(v.scrollOffset+visible, len(v.documents))
	for i := v.scrollOffset; i < end; i++ {
		b.WriteString(v.renderDocument(i, &v.documents[i]))
		b.WriteString("\n")
	}

	if len(v.documents) > visible {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
			v.scrollOffset+1, end, len(v.documents))))
	}
	return b.String()
}

func (v *View) renderDocument(index int, doc *domain.Document) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	maxTitleLen := max(v.width/2-4, 10)
	title := []rune(documentTitle(doc))
	if len(title) > maxTitleLen {
		title = append(title[:maxTitleLen-3], []rune("...")...)
	}
	meta := fmt.Sprintf("%d chars  %s", doc.Len(), doc.UpdatedAt.Format("2006-01-02 15:04"))

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxTitleLen, string(title), meta))
	}
	return v.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxTitleLen, string(title))) +
		v.styles.Muted.Render(meta)
}

func documentTitle(doc *domain.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	return doc.ID
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.reader.SetDimensions(width, height-2)
	v.adjustScroll()
}

// Documents returns the current list of documents.
func (v *View) Documents() []domain.Document {
	return v.documents
}

// SelectedDocument returns the currently selected document.
func (v *View) SelectedDocument() *domain.Document {
	if v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// Reading returns whether a document is open in the reader.
func (v *View) Reading() bool {
	return v.reading
}

// Loading returns whether a load is in flight.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
