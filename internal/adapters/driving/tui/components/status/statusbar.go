// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/styles"
)

// State represents the current application state for display.
type State string

const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateLoading   State = "loading"
	StateError     State = "error"
	StateResults   State = "results"
	StateEmpty     State = "empty"
	StateReading   State = "reading"
)

// Bar displays application status and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	count   int
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()

	padding := b.width - b.styles.StatusBar.GetHorizontalFrameSize() - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (b *Bar) renderLeft() string {
	switch b.state {
	case StateSearching:
		return b.styles.Muted.Render("Searching...")
	case StateLoading:
		return b.styles.Muted.Render("Loading...")
	case StateError:
		if b.message != "" {
			return b.styles.Error.Render(fmt.Sprintf("Error: %s", b.message))
		}
		return b.styles.Error.Render("Error")
	case StateEmpty:
		return b.styles.Warning.Render("No relevant results")
	case StateReading:
		return b.styles.Normal.Render(b.message)
	case StateResults:
		if b.message != "" {
			return b.styles.Success.Render(b.message)
		}
		return b.styles.Normal.Render(fmt.Sprintf("%d results", b.count))
	case StateReady:
	}
	if b.message != "" {
		return b.styles.Muted.Render(b.message)
	}
	return b.styles.Muted.Render("Ready")
}

func (b *Bar) renderRight() string {
	var bindings []key.Binding
	switch {
	case b.state == StateReading:
		bindings = b.keymap.ReaderHelp()
	case b.state == StateResults && b.count > 0:
		bindings = b.keymap.ResultsHelp()
	default:
		bindings = b.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets a custom message.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the current message.
func (b *Bar) Message() string {
	return b.message
}

// SetCount sets the number of listed items.
func (b *Bar) SetCount(count int) {
	b.count = count
}

// Count returns the number of listed items.
func (b *Bar) Count() int {
	return b.count
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Clear resets the status bar to default state.
func (b *Bar) Clear() {
	b.state = StateReady
	b.message = ""
	b.count = 0
}
