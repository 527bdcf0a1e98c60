package agent

import (
	"context"
	"errors"
	"strings"

	"finrag/types"
)

// stubLLM answers planner calls and chat calls differently, keyed on the
// system prompt, and records every call it sees.
type stubLLM struct {
	chatAnswer  string
	plannerJSON string
	err         error
	calls       []string
}

func (s *stubLLM) Generate(ctx context.Context, system, user string) (string, error) {
	s.calls = append(s.calls, system)
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(system, "chart planning assistant") {
		return s.plannerJSON, nil
	}
	return s.chatAnswer, nil
}

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.vec != nil {
		return s.vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func sampleMetrics() types.MetricsByYear {
	return types.MetricsByYear{
		2023: {
			types.MetricRevenue:   700000,
			types.MetricNetProfit: 90000,
		},
		2024: {
			types.MetricRevenue:          800000,
			types.MetricNetProfit:        110000,
			types.MetricTotalAssets:      5000000,
			types.MetricTotalLiabilities: 2000000,
		},
	}
}

var errStub = errors.New("stub failure")
