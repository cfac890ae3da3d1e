package reader

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func numbered(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line-%02d", i)
	}
	return strings.Join(lines, "\n")
}

func TestReader_Open(t *testing.T) {
	r := New(nil)
	r.Open("notes.md", "first\nsecond")

	out := r.View()
	assert.Equal(t, "notes.md", r.Title())
	assert.Contains(t, out, "notes.md")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}

func TestReader_Scroll(t *testing.T) {
	r := New(nil)
	r.SetDimensions(80, 8)
	r.Open("doc", numbered(10))

	r.ScrollUp()
	assert.Equal(t, 0, r.Offset())

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyDown})
	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, 2, r.Offset())
	assert.NotContains(t, r.View(), "line-01")
	assert.Contains(t, r.View(), "line-02")

	for range 20 {
		r.ScrollDown()
	}
	assert.Equal(t, 5, r.Offset())

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	assert.Equal(t, 0, r.Offset())

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Equal(t, 5, r.Offset())
}

func TestReader_OpenResetsOffset(t *testing.T) {
	r := New(nil)
	r.SetDimensions(80, 5)
	r.Open("a", numbered(10))
	r.ScrollDown()

	r.Open("b", numbered(3))

	assert.Equal(t, 0, r.Offset())
}

func TestReader_ShortTextDoesNotScroll(t *testing.T) {
	r := New(nil)
	r.Open("a", "only")

	r.ScrollDown()

	assert.Equal(t, 0, r.Offset())
}
