package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"text/html", "application/xhtml+xml"}, New().SupportedMIMETypes())
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Release &amp; Notes</title><style>body { color: red; }</style></head>
<body>
  <h1>Version 2</h1>
  <p>Adds <b>search</b> over conversations.</p>
  <script>console.log("hidden")</script>
  <!-- a comment -->
  <ul><li>First</li><li>Second</li></ul>
</body>
</html>`

	got, err := New().Normalise(context.Background(), &domain.RawFile{Content: []byte(page)})

	require.NoError(t, err)
	assert.Equal(t, "Release & Notes", got.Title)
	assert.Equal(t, "html", got.Format)
	assert.Equal(t, "Version 2\nAdds search over conversations.\nFirst\nSecond", got.Content)
}

func TestNormalise_NoTitle(t *testing.T) {
	got, err := New().Normalise(context.Background(), &domain.RawFile{Content: []byte("<p>text</p>")})

	require.NoError(t, err)
	assert.Empty(t, got.Title)
}

func TestNormalise_Invalid(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "no markup", "no markup"},
		{"entities", "a &lt; b &gt; c", "a < b > c"},
		{"line breaks", "one<br>two<br/>three", "one\ntwo\nthree"},
		{"inline tags", "<span>in</span><em>line</em>", "inline"},
		{"collapses spaces", "<p>a   \t b</p>", "a b"},
		{"drops svg", "<p>x</p><svg><text>y</text></svg>", "x"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.input))
		})
	}
}
