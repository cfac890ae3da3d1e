package postprocessors

import (
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// NewDefaultPipeline builds the chunking pipeline for the given settings.
func NewDefaultPipeline(c domain.ChunkingSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(domain.PipelineConfigFor(c))
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Maximum characters per chunk (default: 500)
//   - overlap (int): Minimum characters shared by consecutive chunks (default: 100)
//   - separators ([]string): Split points in priority order
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
		}
		if seps := getStringsFromConfig(cfg, "separators"); len(seps) > 0 {
			opts = append(opts, chunker.WithSeparators(seps))
		}
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig extracts an int from a generic config map.
// Handles the int, int64 and float64 types TOML and JSON decoding produce.
func getIntFromConfig(cfg map[string]any, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// getStringsFromConfig extracts a string list from a generic config map.
func getStringsFromConfig(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
