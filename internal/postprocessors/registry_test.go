package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/postprocessors/chunker"
)

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("test", func(_ map[string]any) (driven.PostProcessor, error) {
		return &mockProcessor{name: "test"}, nil
	})

	if !r.Has("test") || r.Has("missing") {
		t.Error("unexpected Has result")
	}

	p, err := r.Build("test", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "test" {
		t.Errorf("expected test processor, got %s", p.Name())
	}
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	_, err := NewRegistry().Build("nope", nil)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("b", nil)
	r.Register("a", nil)

	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("expected sorted names, got %v", names)
	}
}

func TestRegistry_BuildPipeline(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	t.Run("default config", func(t *testing.T) {
		p, err := r.BuildPipeline(domain.DefaultPipelineConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Len() != 1 {
			t.Errorf("expected 1 processor, got %d", p.Len())
		}
	})

	t.Run("empty config", func(t *testing.T) {
		if _, err := r.BuildPipeline(domain.PipelineConfig{}); !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("unknown processor", func(t *testing.T) {
		_, err := r.BuildPipeline(domain.PipelineConfig{Processors: []string{"chunker", "stemmer"}})
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("expected configuration error, got %v", err)
		}
	})
}

func TestNewDefaultPipeline(t *testing.T) {
	p, err := NewDefaultPipeline(domain.ChunkingSettings{Size: 20, Overlap: 0, Separators: []string{" "}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := p.Process(context.Background(), &domain.Document{ID: "d", Content: "one two three four five six seven"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected the configured size to apply, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Content) > 20 {
			t.Errorf("chunk too long: %q", c.Content)
		}
	}
}

func TestBuildChunker_Config(t *testing.T) {
	p, err := buildChunker(map[string]any{
		"chunk_size": int64(30),
		"overlap":    float64(0),
		"separators": []any{"\n", ""},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := p.(*chunker.Processor).Split("line one\nline two\nline three\nline four")
	if len(got) != 2 || got[0] != "line one\nline two\nline three" {
		t.Errorf("unexpected split %q", got)
	}

	if _, err := buildChunker(nil); err != nil {
		t.Errorf("nil config should use defaults: %v", err)
	}
}

func TestGetIntFromConfig(t *testing.T) {
	cfg := map[string]any{"a": 1, "b": int64(2), "c": float64(3), "d": "4"}
	for key, want := range map[string]int{"a": 1, "b": 2, "c": 3, "d": 0, "missing": 0} {
		if got := getIntFromConfig(cfg, key); got != want {
			t.Errorf("%s: expected %d, got %d", key, want, got)
		}
	}
}
