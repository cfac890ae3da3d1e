package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// buildDOCX creates a minimal DOCX archive in memory. Empty parts are
// left out.
func buildDOCX(t *testing.T, documentXML, coreXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, content := range map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types/>`,
		"word/document.xml":   documentXML,
		"docProps/core.xml":   coreXML,
	} {
		if content == "" {
			continue
		}
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{MIMEType}, New().SupportedMIMETypes())
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document ` + wordNS + `><w:body>
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
</w:body></w:document>`
	core := `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
  xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title> Quarterly Plan </dc:title></cp:coreProperties>`

	got, err := New().Normalise(context.Background(), &domain.RawFile{
		Path:     "plan.docx",
		MIMEType: MIMEType,
		Content:  buildDOCX(t, doc, core),
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello World\nSecond paragraph", got.Content)
	assert.Equal(t, "Quarterly Plan", got.Title)
	assert.Equal(t, "docx", got.Format)
}

func TestNormalise_MissingParts(t *testing.T) {
	got, err := New().Normalise(context.Background(), &domain.RawFile{Content: buildDOCX(t, "", "")})

	require.NoError(t, err)
	assert.Empty(t, got.Content)
	assert.Empty(t, got.Title)
}

func TestNormalise_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  *domain.RawFile
	}{
		{"nil", nil},
		{"not a zip", &domain.RawFile{Content: []byte("plain text")}},
		{"bad xml", &domain.RawFile{Content: buildDOCX(t, "<w:document><unclosed>", "")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Normalise(context.Background(), tt.raw)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
