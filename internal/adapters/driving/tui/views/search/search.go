// Package search provides the retrieval view for the TUI.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/components/reader"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
)

// View is the query input, hit list and hit reader of one conversation.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.HitList
	reader    *reader.Reader
	statusbar *status.Bar

	retrieval      driving.RetrievalService
	conversationID string
	opts           domain.SearchOptions
	ctx            context.Context

	width      int
	height     int
	ready      bool
	err        error
	notice     string
	focusInput bool
	reading    bool
}

// NewView creates a search view over one conversation.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	retrieval driving.RetrievalService,
	conversationID string,
	opts domain.SearchOptions,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:         s,
		keymap:         km,
		input:          input.NewQueryInput(s),
		list:           list.NewHitList(s),
		reader:         reader.New(s),
		statusbar:      status.NewBar(s, km),
		retrieval:      retrieval,
		conversationID: conversationID,
		opts:           opts,
		ctx:            context.Background(),
		width:          80,
		height:         24,
		focusInput:     true,
	}
}

// WithContext sets the context used for queries.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.reading {
		if msg.Type == tea.KeyEsc {
			v.reading = false
			v.statusbar.SetState(status.StateResults)
			v.statusbar.SetMessage(v.notice)
			return v, nil
		}
		v.reader, _ = v.reader.Update(msg)
		return v, nil
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(v.input.Value())
			if query == "" {
				return v, nil
			}
			v.statusbar.SetState(status.StateSearching)
			v.focusInput = false
			v.input.Blur()
			return v, v.performSearch(query)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case msg.Type == tea.KeyEnter:
		if hit := v.list.SelectedHit(); hit != nil {
			v.openHit(hit)
		}
		return v, nil
	case msg.Type == tea.KeyEsc, keymap.Matches(msg.String(), v.keymap.NewSearch):
		return v, v.Reset()
	}

	v.list, _ = v.list.Update(msg)
	return v, nil
}

func (v *View) openHit(hit *domain.SearchHit) {
	title := fmt.Sprintf("Row %d, chunks %d-%d, score %.3f", hit.Row, hit.Start, hit.End, hit.Score)
	if hit.Bypass {
		title = "Whole conversation"
	}
	v.reader.Open(title, hit.Text)
	v.reading = true
	v.statusbar.SetState(status.StateReading)
	v.statusbar.SetMessage(strings.Join(hit.DocumentIDs, ", "))
}

// performSearch runs the query off the update loop.
func (v *View) performSearch(query string) tea.Cmd {
	return func() tea.Msg {
		if v.retrieval == nil {
			return messages.ErrorOccurred{Err: ErrNoRetrievalService}
		}
		hits, err := v.retrieval.Search(v.ctx, v.conversationID, query, v.opts)
		return messages.SearchCompleted{Query: query, Hits: hits, Err: err}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	v.notice = ""
	switch {
	case errors.Is(msg.Err, domain.ErrEmpty):
		v.err = nil
		v.list.SetHits(nil)
		v.statusbar.SetState(status.StateEmpty)
		v.statusbar.SetMessage("")
		return
	case errors.Is(msg.Err, domain.ErrNotFound):
		v.setError(fmt.Errorf("conversation %s has no index; run 'convorag index %s'",
			v.conversationID, v.conversationID))
		return
	case msg.Err != nil:
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.list.SetHits(msg.Hits)
	if len(msg.Hits) == 1 && msg.Hits[0].Bypass {
		v.notice = "Short conversation: showing the whole text"
	}
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetCount(len(msg.Hits))
	v.statusbar.SetMessage(v.notice)
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 8)
	sections = append(sections, v.styles.Title.Render("convorag  "+v.conversationID), "")

	if v.reading {
		sections = append(sections, v.reader.View())
	} else {
		sections = append(sections, v.input.View(), "")
		if v.err != nil {
			sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
		}
		sections = append(sections, v.list.View())
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-9)
	v.reader.SetDimensions(width, height-4)
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current query text.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the query text.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Hits returns the current hits.
func (v *View) Hits() []domain.SearchHit {
	return v.list.Hits()
}

// SelectedHit returns the selected hit.
func (v *View) SelectedHit() *domain.SearchHit {
	return v.list.SelectedHit()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the query input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Reading returns whether a hit is open in the reader.
func (v *View) Reading() bool {
	return v.reading
}

// Capturing reports whether key presses are text for the query input.
func (v *View) Capturing() bool {
	return v.focusInput && !v.reading
}

// Status returns the status bar state.
func (v *View) Status() status.State {
	return v.statusbar.State()
}

// Reset clears the query and results and focuses the input.
func (v *View) Reset() tea.Cmd {
	v.focusInput = true
	v.reading = false
	v.input.SetValue("")
	v.list.SetHits(nil)
	v.err = nil
	v.notice = ""
	v.statusbar.Clear()
	return v.input.Focus()
}
