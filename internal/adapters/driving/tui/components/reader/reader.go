// Package reader provides a scrollable text pane for the TUI.
package reader

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/styles"
)

// Reader shows a titled text scrolled line by line.
type Reader struct {
	styles *styles.Styles
	title  string
	lines  []string
	offset int
	width  int
	height int
}

// New creates an empty reader.
func New(s *styles.Styles) *Reader {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Reader{styles: s, width: 80, height: 20}
}

// Open replaces the shown text and scrolls to the top.
func (r *Reader) Open(title, content string) {
	r.title = title
	r.lines = strings.Split(content, "\n")
	r.offset = 0
}

// Update scrolls on navigation keys.
func (r *Reader) Update(msg tea.Msg) (*Reader, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.ScrollUp()
		case "down", "j":
			r.ScrollDown()
		case "pgdown", " ":
			r.offset = min(r.offset+r.pageSize(), r.maxOffset())
		case "pgup":
			r.offset = max(r.offset-r.pageSize(), 0)
		}
	}
	return r, nil
}

// View renders the visible lines inside a border.
func (r *Reader) View() string {
	end := min(r.offset+r.pageSize(), len(r.lines))
	body := strings.Join(r.lines[r.offset:end], "\n")
	box := r.styles.Border.Width(max(r.width-4, 20)).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, r.styles.Subtitle.Render(r.title), box)
}

// ScrollUp moves one line up.
func (r *Reader) ScrollUp() {
	if r.offset > 0 {
		r.offset--
	}
}

// ScrollDown moves one line down.
func (r *Reader) ScrollDown() {
	if r.offset < r.maxOffset() {
		r.offset++
	}
}

// Offset returns the first visible line.
func (r *Reader) Offset() int {
	return r.offset
}

// Title returns the shown title.
func (r *Reader) Title() string {
	return r.title
}

// SetDimensions sets the pane size.
func (r *Reader) SetDimensions(width, height int) {
	r.width = width
	r.height = height
	r.offset = min(r.offset, r.maxOffset())
}

func (r *Reader) pageSize() int {
	// Title and border take three lines.
	return max(r.height-3, 1)
}

func (r *Reader) maxOffset() int {
	return max(len(r.lines)-r.pageSize(), 0)
}
