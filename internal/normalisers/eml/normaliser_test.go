package eml

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

func normalise(t *testing.T, message string) *domain.NormalisedText {
	t.Helper()
	got, err := New().Normalise(context.Background(), &domain.RawFile{
		Path:     "mail.eml",
		MIMEType: "message/rfc822",
		Content:  []byte(strings.ReplaceAll(message, "\n", "\r\n")),
	})
	require.NoError(t, err)
	return got
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"message/rfc822"}, New().SupportedMIMETypes())
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Simple(t *testing.T) {
	got := normalise(t, `From: alice@example.com
To: bob@example.com
Date: Mon, 2 Jan 2026 10:00:00 +0000
Subject: Meeting notes

The meeting is moved to Friday.
`)

	assert.Equal(t, "Meeting notes", got.Title)
	assert.Equal(t, "eml", got.Format)
	assert.Contains(t, got.Content, "From: alice@example.com")
	assert.Contains(t, got.Content, "To: bob@example.com")
	assert.Contains(t, got.Content, "Subject: Meeting notes")
	assert.Contains(t, got.Content, "The meeting is moved to Friday.")
}

func TestNormalise_NoSubject(t *testing.T) {
	got := normalise(t, "From: alice@example.com\n\nBody only.\n")

	assert.Empty(t, got.Title)
	assert.NotContains(t, got.Content, "Subject:")
	assert.Contains(t, got.Content, "Body only.")
}

func TestNormalise_HTMLBody(t *testing.T) {
	got := normalise(t, `From: alice@example.com
Content-Type: text/html; charset=utf-8

<html><body><p>Rich <b>text</b></p></body></html>
`)

	assert.Contains(t, got.Content, "Rich text")
	assert.NotContains(t, got.Content, "<b>")
}

func TestNormalise_MultipartPrefersPlainText(t *testing.T) {
	got := normalise(t, `From: alice@example.com
Subject: Multipart
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain

Plain version.
--b1
Content-Type: text/html

<p>HTML version</p>
--b1--
`)

	assert.Contains(t, got.Content, "Plain version.")
	assert.NotContains(t, got.Content, "HTML version")
}

func TestNormalise_MultipartHTMLOnly(t *testing.T) {
	got := normalise(t, `Subject: Only HTML
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/html

<p>Only <i>markup</i></p>
--outer--
`)

	assert.Contains(t, got.Content, "Only markup")
}

func TestNormalise_EncodedSubject(t *testing.T) {
	got := normalise(t, "Subject: =?UTF-8?B?SGVsbG8gV29ybGQ=?=\n\nbody\n")

	assert.Equal(t, "Hello World", got.Title)
}

func TestNormalise_Invalid(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Normalise(context.Background(), &domain.RawFile{Content: []byte("no headers here")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDecodeHeader(t *testing.T) {
	assert.Empty(t, decodeHeader(""))
	assert.Equal(t, "plain", decodeHeader("plain"))
	assert.Equal(t, "Grüße", decodeHeader("=?UTF-8?Q?Gr=C3=BC=C3=9Fe?="))
	assert.Equal(t, "=?bogus?X?abc?=", decodeHeader("=?bogus?X?abc?="))
}
