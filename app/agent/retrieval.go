package agent

import (
	"context"
	"sort"
	"strings"

	"finrag/model"
	"finrag/store"
	"finrag/types"

	"github.com/google/uuid"
)

const DefaultTopK = 5

var managementKeywords = []string{
	"management", "reason", "explain", "why", "cause", "factor", "discussion",
	"analysis", "outlook", "strategy", "risk", "opportunity", "challenge",
}

var financialKeywords = []string{
	"revenue", "profit", "asset", "liability", "cash flow", "margin", "ratio",
}

var mdaChunkKeywords = []string{
	"management discussion", "management's discussion", "mda", "md&a",
	"management analysis", "outlook", "strategy", "risk factor",
	"key factor", "reason", "explanation", "performance", "growth",
	"challenge", "opportunity", "initiative",
}

var financialChunkKeywords = []string{
	"statement of profit", "balance sheet", "cash flow",
	"financial position", "revenue", "profit", "asset", "liability",
}

// Retriever fetches the passages of one document most relevant to a
// question. Retrieval never crosses documents.
type Retriever struct {
	store    store.DBStorer
	embedder model.Embedder
	topK     int
}

func NewRetriever(storer store.DBStorer, embedder model.Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: storer, embedder: embedder, topK: topK}
}

// Retrieve embeds the question and ranks the document's chunks by cosine
// similarity plus a small keyword boost. Zero stored chunks is not an
// error; the caller degrades to metrics-only context.
func (r *Retriever) Retrieve(ctx context.Context, docID uuid.UUID, question string) ([]types.Chunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, expandQuestion(question))
	if err != nil {
		return nil, err
	}

	// Over-fetch so the keyword boost can promote chunks from outside
	// the raw top-k.
	candidates, err := r.store.SearchChunks(ctx, docID, vec, r.topK*3)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	isManagement := containsAny(strings.ToLower(question), managementKeywords)
	isFinancial := containsAny(strings.ToLower(question), financialKeywords)

	for i := range candidates {
		candidates[i].Similarity += boost(candidates[i].Content, isManagement, isFinancial)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Ordinal < candidates[j].Ordinal
	})

	return dedupe(candidates, r.topK), nil
}

// expandQuestion widens short questions with domain synonyms so the
// embedding lands nearer the relevant report sections.
func expandQuestion(question string) string {
	lower := strings.ToLower(question)
	switch {
	case containsAny(lower, []string{"reason", "why", "explain", "management", "factor"}):
		return question + " " +
			"management discussion analysis MD&A explanation rationale strategy outlook risk opportunity " +
			"performance factors growth challenges initiatives"
	case containsAny(lower, []string{"revenue", "profit", "financial"}):
		return question + " " +
			"financial statement balance sheet profit loss revenue income expense asset liability"
	default:
		return question
	}
}

func boost(content string, isManagement, isFinancial bool) float64 {
	lower := strings.ToLower(content)
	var b float64

	if isManagement && containsAny(lower, mdaChunkKeywords) {
		b += 0.15
	}
	if isFinancial && containsAny(lower, financialChunkKeywords) {
		b += 0.1
	}
	// Audit opinions answer almost no "why" question.
	if isManagement && strings.Contains(lower, "independent auditor") {
		b -= 0.1
	}
	return b
}

// dedupe drops chunks whose leading text matches an earlier pick,
// then caps the result at limit.
func dedupe(chunks []types.Chunk, limit int) []types.Chunk {
	seen := make(map[string]struct{}, len(chunks))
	result := make([]types.Chunk, 0, limit)
	for _, ch := range chunks {
		key := snippetKey(ch.Content)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, ch)
		if len(result) >= limit {
			break
		}
	}
	return result
}

func snippetKey(content string) string {
	s := strings.ToLower(strings.TrimSpace(content))
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
