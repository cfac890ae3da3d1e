// Package eml extracts headers and body text from RFC 822 messages.
package eml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/normalisers/html"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles EML (email) documents.
type Normaliser struct{}

// New creates a new EML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"message/rfc822"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise renders From, To, Date and Subject lines followed by the body.
// Plain text parts are preferred over HTML ones. The subject is the title.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawFile) (*domain.NormalisedText, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	body, err := extractBody(msg.Header.Get("Content-Type"), msg.Body)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, h := range []struct{ name, value string }{
		{"From", decodeHeader(msg.Header.Get("From"))},
		{"To", decodeHeader(msg.Header.Get("To"))},
		{"Date", msg.Header.Get("Date")},
		{"Subject", subject},
	} {
		if h.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", h.name, h.value)
		}
	}
	b.WriteString("\n")
	b.WriteString(body)

	return &domain.NormalisedText{
		Title:   subject,
		Content: strings.TrimSpace(b.String()),
		Format:  "eml",
	}, nil
}

// decodeHeader decodes RFC 2047 encoded words, returning the input when
// decoding fails.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

func extractBody(contentType string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipart(r, params["boundary"]), nil
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrInvalidInput, err)
	}
	if mediaType == "text/html" {
		return html.Strip(string(body)), nil
	}
	return string(body), nil
}

// extractMultipart collects text parts, recursing into nested multiparts.
// HTML parts are used only when no plain text part exists.
func extractMultipart(r io.Reader, boundary string) string {
	if boundary == "" {
		return ""
	}
	var plain, rich []string
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}
		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			continue
		}

		switch {
		case mediaType == "text/plain":
			plain = append(plain, string(content))
		case mediaType == "text/html":
			rich = append(rich, html.Strip(string(content)))
		case strings.HasPrefix(mediaType, "multipart/"):
			if nested := extractMultipart(bytes.NewReader(content), params["boundary"]); nested != "" {
				plain = append(plain, nested)
			}
		}
	}
	if len(plain) > 0 {
		return strings.Join(plain, "\n")
	}
	return strings.Join(rich, "\n")
}
