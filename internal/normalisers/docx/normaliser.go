// Package docx extracts paragraph text from Word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// MIMEType is the content type of .docx files.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise reads word/document.xml, one line per paragraph, and takes the
// title from docProps/core.xml.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawFile) (*domain.NormalisedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	zr, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %w", domain.ErrInvalidInput, err)
	}

	body, err := readPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}
	var doc document
	if body != nil {
		if err := xml.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("%w: malformed document.xml: %w", domain.ErrInvalidInput, err)
		}
	}

	result := &domain.NormalisedText{
		Content: doc.text(),
		Format:  "docx",
	}
	if core, err := readPart(zr, "docProps/core.xml"); err == nil && core != nil {
		var props coreProperties
		if xml.Unmarshal(core, &props) == nil {
			result.Title = strings.TrimSpace(props.Title)
		}
	}
	return result, nil
}

// readPart returns the named archive member, or nil when absent.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", domain.ErrInvalidInput, name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrInvalidInput, name, err)
		}
		return data, nil
	}
	return nil, nil
}

type document struct {
	Paragraphs []struct {
		Runs []struct {
			Text []string `xml:"t"`
		} `xml:"r"`
	} `xml:"body>p"`
}

func (d document) text() string {
	var b strings.Builder
	for i, p := range d.Paragraphs {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, r := range p.Runs {
			for _, t := range r.Text {
				b.WriteString(t)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

type coreProperties struct {
	Title string `xml:"title"`
}
