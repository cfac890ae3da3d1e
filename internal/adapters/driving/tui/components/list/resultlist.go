// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/convorag/internal/core/domain"
)

// HitList displays retrieval hits in a navigable list.
type HitList struct {
	hits     []domain.SearchHit
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewHitList creates an empty hit list.
func NewHitList(s *styles.Styles) *HitList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &HitList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Update handles list navigation messages.
func (l *HitList) Update(msg tea.Msg) (*HitList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the visible window of hits.
func (l *HitList) View() string {
	if len(l.hits) == 0 {
		return l.styles.Muted.Render("No results")
	}

	lines := make([]string, 0, len(l.hits)+2)
	lines = append(lines, l.styles.Subtitle.Render(fmt.Sprintf("Hits (%d)", len(l.hits))), "")

	// Each hit renders as two lines.
	visible := (l.height - 2) / 2
	if visible < 1 {
		visible = 1
	}
	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := min(start+visible, len(l.hits))

	for i := start; i < end; i++ {
		lines = append(lines, l.renderHit(i, &l.hits[i]))
	}
	return strings.Join(lines, "\n")
}

func (l *HitList) renderHit(index int, hit *domain.SearchHit) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	label := fmt.Sprintf("row %d  chunks %d-%d", hit.Row, hit.Start, hit.End)
	if hit.Bypass {
		label = "whole conversation"
	}
	score := fmt.Sprintf("%.3f", hit.Score)

	var head string
	if index == l.selected {
		head = l.styles.Selected.Render(indicator + label + "  " + score)
	} else {
		head = l.styles.Normal.Render(indicator+label+"  ") + l.styles.Muted.Render(score)
	}

	preview := Preview(hit.Text, l.width-6)
	return head + "\n" + l.styles.Muted.Render("    "+preview)
}

// Preview flattens text to one line no wider than width runes.
func Preview(text string, width int) string {
	if width < 20 {
		width = 20
	}
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= width {
		return flat
	}
	return string(runes[:width-3]) + "..."
}

// SetHits replaces the hits and resets the selection.
func (l *HitList) SetHits(hits []domain.SearchHit) {
	l.hits = hits
	l.selected = 0
}

// Hits returns the current hits.
func (l *HitList) Hits() []domain.SearchHit {
	return l.hits
}

// Selected returns the index of the selected hit.
func (l *HitList) Selected() int {
	return l.selected
}

// SelectedHit returns the selected hit, or nil if the list is empty.
func (l *HitList) SelectedHit() *domain.SearchHit {
	if l.selected < 0 || l.selected >= len(l.hits) {
		return nil
	}
	return &l.hits[l.selected]
}

// MoveUp moves selection up.
func (l *HitList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *HitList) MoveDown() {
	if l.selected < len(l.hits)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *HitList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of hits.
func (l *HitList) Count() int {
	return len(l.hits)
}
