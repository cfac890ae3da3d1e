package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
	"github.com/custodia-labs/convorag/internal/normalisers"
)

// isTerminal reports whether w is an interactive terminal. Replaced in tests.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// wantJSON reports whether output should be JSON: when requested, or when
// stdout is piped.
func wantJSON(cmd *cobra.Command, flag bool) bool {
	return flag || !isTerminal(cmd.OutOrStdout())
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// Terminal colours.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
)

// styles are the lipgloss styles for human-readable output.
type styles struct {
	Title   lipgloss.Style
	Score   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Passage lipgloss.Style
}

// newStyles renders colours only when w is a terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	if !isTerminal(w) {
		return styles{
			Title:   r.NewStyle(),
			Score:   r.NewStyle(),
			Muted:   r.NewStyle(),
			Success: r.NewStyle(),
			Warning: r.NewStyle(),
			Passage: r.NewStyle().PaddingLeft(6),
		}
	}
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(colourPrimary),
		Score:   r.NewStyle().Foreground(colourSuccess),
		Muted:   r.NewStyle().Foreground(colourMuted),
		Success: r.NewStyle().Foreground(colourSuccess),
		Warning: r.NewStyle().Foreground(colourWarning),
		Passage: r.NewStyle().PaddingLeft(6),
	}
}

// Service accessors return an error naming the missing service, or the
// embedding failure that left it unwired.

func documents() (driving.DocumentService, error) {
	if app == nil || app.Documents == nil {
		return nil, errors.New("document service not configured")
	}
	return app.Documents, nil
}

// fileNormalisers returns the wired normaliser registry, or the built-in one.
func fileNormalisers() driven.NormaliserRegistry {
	if app != nil && app.Normalisers != nil {
		return app.Normalisers
	}
	return normalisers.NewDefaultRegistry()
}

func embeddingError(name string) error {
	if app != nil && app.EmbeddingErr != nil {
		return fmt.Errorf("%s service not configured: %w", name, app.EmbeddingErr)
	}
	return fmt.Errorf("%s service not configured", name)
}

func indexer() (driving.IndexBuilder, error) {
	if app == nil || app.Indexer == nil {
		return nil, embeddingError("index")
	}
	return app.Indexer, nil
}

func retrieval() (driving.RetrievalService, error) {
	if app == nil || app.Retrieval == nil {
		return nil, embeddingError("retrieval")
	}
	return app.Retrieval, nil
}

func ingester() (driving.Ingester, error) {
	if app == nil || app.Ingest == nil {
		return nil, embeddingError("ingest")
	}
	return app.Ingest, nil
}
