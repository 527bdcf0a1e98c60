package agent

import (
	"context"
	"strings"
	"testing"

	"finrag/store"
	"finrag/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChunks(t *testing.T, storer store.DBStorer, docID uuid.UUID, chunks ...types.Chunk) {
	t.Helper()
	for i := range chunks {
		if chunks[i].ID == uuid.Nil {
			chunks[i].ID = uuid.New()
		}
		chunks[i].DocID = docID
	}
	require.NoError(t, storer.SaveChunks(context.Background(), chunks))
}

func TestRetrieveStaysWithinDocument(t *testing.T) {
	storer := store.NewMemoryStore()
	docA := uuid.New()
	docB := uuid.New()

	seedChunks(t, storer, docA,
		types.Chunk{Ordinal: 0, Page: 1, Content: "revenue grew strongly", Embedding: []float32{1, 0, 0}},
	)
	seedChunks(t, storer, docB,
		types.Chunk{Ordinal: 0, Page: 1, Content: "unrelated company filing", Embedding: []float32{1, 0, 0}},
	)

	r := NewRetriever(storer, &stubEmbedder{}, 5)
	chunks, err := r.Retrieve(context.Background(), docA, "what happened to sales?")
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, docA, chunks[0].DocID)
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	storer := store.NewMemoryStore()
	docID := uuid.New()

	seedChunks(t, storer, docID,
		types.Chunk{Ordinal: 0, Page: 1, Content: "far away content", Embedding: []float32{0, 1, 0}},
		types.Chunk{Ordinal: 1, Page: 2, Content: "close content", Embedding: []float32{1, 0, 0}},
		types.Chunk{Ordinal: 2, Page: 3, Content: "middling content", Embedding: []float32{0.7, 0.7, 0}},
	)

	r := NewRetriever(storer, &stubEmbedder{vec: []float32{1, 0, 0}}, 2)
	chunks, err := r.Retrieve(context.Background(), docID, "what happened here?")
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "close content", chunks[0].Content)
	assert.Equal(t, "middling content", chunks[1].Content)
}

func TestRetrieveBoostsManagementDiscussion(t *testing.T) {
	storer := store.NewMemoryStore()
	docID := uuid.New()

	// Equidistant embeddings; only the keyword boost separates them.
	seedChunks(t, storer, docID,
		types.Chunk{Ordinal: 0, Page: 10, Content: "Report of the independent auditor on the statements", Embedding: []float32{1, 0, 0}},
		types.Chunk{Ordinal: 1, Page: 40, Content: "Management discussion of the year's performance and strategy", Embedding: []float32{1, 0, 0}},
	)

	r := NewRetriever(storer, &stubEmbedder{vec: []float32{1, 0, 0}}, 2)
	chunks, err := r.Retrieve(context.Background(), docID, "why did profit decline, what were the reasons?")
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Content, "Management discussion")
}

func TestRetrieveBreaksTiesByOrdinal(t *testing.T) {
	storer := store.NewMemoryStore()
	docID := uuid.New()

	seedChunks(t, storer, docID,
		types.Chunk{Ordinal: 3, Page: 4, Content: "later chunk", Embedding: []float32{1, 0, 0}},
		types.Chunk{Ordinal: 1, Page: 2, Content: "earlier chunk", Embedding: []float32{1, 0, 0}},
	)

	r := NewRetriever(storer, &stubEmbedder{vec: []float32{1, 0, 0}}, 2)
	chunks, err := r.Retrieve(context.Background(), docID, "what happened here?")
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Ordinal)
	assert.Equal(t, 3, chunks[1].Ordinal)
}

func TestRetrieveDeduplicatesNearIdenticalChunks(t *testing.T) {
	storer := store.NewMemoryStore()
	docID := uuid.New()

	repeated := strings.Repeat("Revenue from operations grew by twelve percent. ", 4)
	seedChunks(t, storer, docID,
		types.Chunk{Ordinal: 0, Page: 1, Content: repeated + "tail one", Embedding: []float32{1, 0, 0}},
		types.Chunk{Ordinal: 1, Page: 1, Content: repeated + "tail two", Embedding: []float32{1, 0, 0}},
		types.Chunk{Ordinal: 2, Page: 2, Content: "a genuinely different passage", Embedding: []float32{0.9, 0.1, 0}},
	)

	r := NewRetriever(storer, &stubEmbedder{vec: []float32{1, 0, 0}}, 5)
	chunks, err := r.Retrieve(context.Background(), docID, "how did revenue do?")
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, 2, chunks[1].Ordinal)
}

func TestRetrieveEmptyQuestion(t *testing.T) {
	r := NewRetriever(store.NewMemoryStore(), &stubEmbedder{}, 5)
	chunks, err := r.Retrieve(context.Background(), uuid.New(), "   ")
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestRetrieveNoChunksStored(t *testing.T) {
	r := NewRetriever(store.NewMemoryStore(), &stubEmbedder{}, 5)
	chunks, err := r.Retrieve(context.Background(), uuid.New(), "anything at all")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestExpandQuestion(t *testing.T) {
	expanded := expandQuestion("Why did margins shrink?")
	assert.Contains(t, expanded, "Why did margins shrink?")
	assert.Contains(t, expanded, "management discussion")

	financial := expandQuestion("What was the revenue in 2024?")
	assert.Contains(t, financial, "balance sheet")

	plain := expandQuestion("Summarize the document")
	assert.Equal(t, "Summarize the document", plain)
}
