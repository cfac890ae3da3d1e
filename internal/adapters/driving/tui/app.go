package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/views/search"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	keymap *keymap.KeyMap

	searchView    *search.View
	documentsView *documents.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// documentsLoaded is set once the document list was first requested.
	documentsLoaded bool

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:         ports,
		ctx:           context.Background(),
		keymap:        km,
		searchView:    search.NewView(s, km, ports.Retrieval, ports.ConversationID, ports.Options),
		documentsView: documents.NewView(s, ports.Document, ports.ConversationID),
		currentView:   messages.ViewSearch,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.documentsView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("convorag - "+a.ports.ConversationID),
		a.searchView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if keymap.Matches(msg.String(), a.keymap.Quit) {
			return a, tea.Quit
		}
		if keymap.Matches(msg.String(), a.keymap.SwitchView) && !a.reading() {
			return a, a.switchTo(a.otherView())
		}
		if a.currentView == messages.ViewDocuments {
			a.documentsView, cmd = a.documentsView.Update(msg)
			return a, cmd
		}
		a.searchView, cmd = a.searchView.Update(msg)
		return a, cmd

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.DocumentsLoaded:
		a.documentsView, cmd = a.documentsView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		if a.currentView == messages.ViewDocuments {
			a.documentsView, cmd = a.documentsView.Update(msg)
			return a, cmd
		}
	}

	a.searchView, cmd = a.searchView.Update(msg)
	return a, cmd
}

func (a *App) reading() bool {
	if a.currentView == messages.ViewDocuments {
		return a.documentsView.Reading()
	}
	return a.searchView.Reading()
}

func (a *App) otherView() messages.ViewType {
	if a.currentView == messages.ViewSearch {
		return messages.ViewDocuments
	}
	return messages.ViewSearch
}

// switchTo activates a view, loading the document list on first visit.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	if view == messages.ViewDocuments && !a.documentsLoaded {
		a.documentsLoaded = true
		return a.documentsView.Load()
	}
	return nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	if a.currentView == messages.ViewDocuments {
		return a.documentsView.View()
	}
	return a.searchView.View()
}

// Run starts the TUI and blocks until the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	a.WithContext(ctx)
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// SearchView returns the search view.
func (a *App) SearchView() *search.View {
	return a.searchView
}

// DocumentsView returns the documents view.
func (a *App) DocumentsView() *documents.View {
	return a.documentsView
}

// Ready returns whether the app has received its size.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.searchView.SetDimensions(width, height)
	a.documentsView.SetDimensions(width, height)
}
