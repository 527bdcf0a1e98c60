package loader

import (
	"context"
	"errors"
	"strings"

	"finrag/model"
)

// stubLLM routes generation calls by matching a fragment of the system
// prompt, so one stub can serve classifier, meta and metric calls.
type stubLLM struct {
	responses map[string]string
	err       error
	calls     []string
}

func (s *stubLLM) Generate(ctx context.Context, system, user string) (string, error) {
	s.calls = append(s.calls, system)
	if s.err != nil {
		return "", s.err
	}
	for fragment, resp := range s.responses {
		if fragment != "" && strings.Contains(system, fragment) {
			return resp, nil
		}
	}
	return "", errors.New("stub: no response configured for system prompt")
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.vec != nil {
		return s.vec, nil
	}
	return []float32{1, 0, 0}, nil
}

type stubConverter struct {
	pages []model.PageText
	err   error
}

func (s *stubConverter) Convert(ctx context.Context, pdfPath string) ([]model.PageText, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pages, nil
}
