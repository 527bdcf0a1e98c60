package model

import (
	"context"
	"errors"
	"strings"
)

// TextGenerator is the narrow surface over the external text-generation
// service: system instruction + user prompt in, raw text out. The
// classifier, extractor, chart planner and answer generation all go
// through it, so a deterministic stub can replace the whole model side
// in tests.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Embedder turns text into a fixed-length vector. Implementations must
// L2-normalize the result so similarity scores are comparable between
// indexed chunks and incoming questions.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ExtractJSON cuts the outermost JSON object out of a model response.
// Models like to wrap JSON in markdown fences or prose.
func ExtractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start == -1 || end == -1 || end <= start {
		return s, errors.New("no valid json found")
	}

	return s[start : end+1], nil
}
