package store

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"sync"

	"finrag/types"

	"github.com/google/uuid"
)

// MemoryStore is a brute-force in-memory DBStorer. It backs the tests
// and small single-process deployments; retrieval semantics (document
// isolation, similarity ordering, ordinal tie-break) match the Postgres
// implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[uuid.UUID]types.Document
	metrics map[uuid.UUID][]types.FinancialMetric
	chunks  map[uuid.UUID][]types.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[uuid.UUID]types.Document),
		metrics: make(map[uuid.UUID][]types.FinancialMetric),
		chunks:  make(map[uuid.UUID][]types.Chunk),
	}
}

func (s *MemoryStore) SaveDocument(ctx context.Context, doc types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) UpdateDocument(ctx context.Context, doc types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		return sql.ErrNoRows
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (s *MemoryStore) GetDocumentByHash(ctx context.Context, hash string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs {
		if doc.ContentHash == hash {
			d := doc
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []types.Document
	for _, doc := range s.docs {
		if doc.IsFinancial && doc.Status == types.StatusProcessed {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
	delete(s.metrics, docID)
	delete(s.chunks, docID)
	return nil
}

func (s *MemoryStore) SaveMetrics(ctx context.Context, metrics []types.FinancialMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		existing := s.metrics[m.DocumentID]
		replaced := false
		for i, old := range existing {
			if old.Year == m.Year && old.Name == m.Name {
				existing[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, m)
		}
		s.metrics[m.DocumentID] = existing
	}
	return nil
}

func (s *MemoryStore) MetricsByYear(ctx context.Context, docID uuid.UUID) (types.MetricsByYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byYear := types.MetricsByYear{}
	for _, m := range s.metrics[docID] {
		if byYear[m.Year] == nil {
			byYear[m.Year] = map[string]float64{}
		}
		byYear[m.Year][m.Name] = m.Value
	}
	return byYear, nil
}

func (s *MemoryStore) SaveChunks(ctx context.Context, chunks []types.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.DocID] = append(s.chunks[c.DocID], c)
	}
	return nil
}

func (s *MemoryStore) SearchChunks(ctx context.Context, docID uuid.UUID, queryVec []float32, limit int) ([]types.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]types.Chunk, 0, len(s.chunks[docID]))
	for _, c := range s.chunks[docID] {
		if len(c.Embedding) == 0 {
			continue
		}
		c.Similarity = cosineSimilarity(queryVec, c.Embedding)
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Ordinal < scored[j].Ordinal
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
