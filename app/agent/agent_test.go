package agent

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"finrag/store"
	"finrag/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocument(t *testing.T, storer store.DBStorer) types.Document {
	t.Helper()
	doc := types.Document{
		ID:          uuid.New(),
		Filename:    "report.pdf",
		CompanyName: "Example Corp Ltd",
		FiscalYear:  "FY 2023-24",
		ContentHash: "deadbeef",
		IsFinancial: true,
		Status:      types.StatusProcessed,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, storer.SaveDocument(context.Background(), doc))
	return doc
}

func seedMetrics(t *testing.T, storer store.DBStorer, docID uuid.UUID) {
	t.Helper()
	var metrics []types.FinancialMetric
	for year, byName := range sampleMetrics() {
		for name, value := range byName {
			metrics = append(metrics, types.FinancialMetric{
				DocumentID: docID, Year: year, Name: name, Value: value, Unit: "INR",
			})
		}
	}
	require.NoError(t, storer.SaveMetrics(context.Background(), metrics))
}

func userTurn(content string) []types.ChatMessage {
	return []types.ChatMessage{{Role: types.RoleUser, Content: content}}
}

func TestAnswerGreetingShortCircuit(t *testing.T) {
	storer := store.NewMemoryStore()
	doc := seedDocument(t, storer)

	llm := &stubLLM{chatAnswer: "should never be asked"}
	embedder := &stubEmbedder{}
	a := New(storer, llm, embedder, DefaultTopK)

	resp, err := a.Answer(context.Background(), doc.ID, "analyst", userTurn("Hello!"))
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "Example Corp Ltd")
	assert.Nil(t, resp.ChartData)
	// a greeting costs neither an embedding nor a generation call
	assert.Empty(t, llm.calls)
	assert.Zero(t, embedder.calls)
}

func TestAnswerRejectsUnprocessedDocuments(t *testing.T) {
	for _, status := range []types.DocumentStatus{types.StatusPending, types.StatusFailed} {
		storer := store.NewMemoryStore()
		doc := types.Document{
			ID:          uuid.New(),
			Filename:    "report.pdf",
			ContentHash: "deadbeef",
			Status:      status,
			CreatedAt:   time.Now(),
		}
		require.NoError(t, storer.SaveDocument(context.Background(), doc))
		// a failed ingestion may have saved metrics before embedding broke
		seedMetrics(t, storer, doc.ID)

		llm := &stubLLM{chatAnswer: "should never be asked"}
		embedder := &stubEmbedder{}
		a := New(storer, llm, embedder, DefaultTopK)

		_, err := a.Answer(context.Background(), doc.ID, "analyst", userTurn("What was revenue in 2024?"))
		assert.ErrorIs(t, err, ErrNotReady, "status %s", status)
		assert.Empty(t, llm.calls, "status %s", status)
		assert.Zero(t, embedder.calls, "status %s", status)
	}
}

func TestAnswerUnknownDocument(t *testing.T) {
	a := New(store.NewMemoryStore(), &stubLLM{}, &stubEmbedder{}, DefaultTopK)

	_, err := a.Answer(context.Background(), uuid.New(), "analyst", userTurn("hi"))
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAnswerRequiresUserLastMessage(t *testing.T) {
	storer := store.NewMemoryStore()
	doc := seedDocument(t, storer)
	a := New(storer, &stubLLM{}, &stubEmbedder{}, DefaultTopK)

	messages := []types.ChatMessage{
		{Role: types.RoleUser, Content: "what was revenue?"},
		{Role: types.RoleAssistant, Content: "700,000"},
	}
	_, err := a.Answer(context.Background(), doc.ID, "analyst", messages)
	assert.ErrorIs(t, err, ErrLastNotUser)

	_, err = a.Answer(context.Background(), doc.ID, "analyst", nil)
	assert.ErrorIs(t, err, ErrLastNotUser)
}

func TestAnswerPlainQuestion(t *testing.T) {
	storer := store.NewMemoryStore()
	doc := seedDocument(t, storer)
	seedMetrics(t, storer, doc.ID)
	seedChunks(t, storer, doc.ID,
		types.Chunk{Ordinal: 0, Page: 7, Content: "Revenue from operations was 800,000.", Embedding: []float32{1, 0, 0}},
	)

	llm := &stubLLM{chatAnswer: "Revenue in FY 2024 was 800,000."}
	a := New(storer, llm, &stubEmbedder{}, DefaultTopK)

	resp, err := a.Answer(context.Background(), doc.ID, "analyst", userTurn("What was revenue in 2024?"))
	require.NoError(t, err)

	assert.Equal(t, "Revenue in FY 2024 was 800,000.", resp.Answer)
	assert.Nil(t, resp.ChartData)
	require.Len(t, llm.calls, 1)
	assert.Contains(t, llm.calls[0], "analyst")
}

func TestAnswerDegradesWithoutChunks(t *testing.T) {
	storer := store.NewMemoryStore()
	doc := seedDocument(t, storer)
	seedMetrics(t, storer, doc.ID)

	llm := &stubLLM{chatAnswer: "Based on the available data, revenue was 800,000."}
	a := New(storer, llm, &stubEmbedder{}, DefaultTopK)

	resp, err := a.Answer(context.Background(), doc.ID, "ceo", userTurn("What was revenue in 2024?"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Answer)
}

func TestAnswerGenerationFailure(t *testing.T) {
	storer := store.NewMemoryStore()
	doc := seedDocument(t, storer)
	seedMetrics(t, storer, doc.ID)

	a := New(storer, &stubLLM{err: errStub}, &stubEmbedder{}, DefaultTopK)

	_, err := a.Answer(context.Background(), doc.ID, "analyst", userTurn("What was revenue?"))
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestAnswerEmbeddingFailure(t *testing.T) {
	storer := store.NewMemoryStore()
	doc := seedDocument(t, storer)

	a := New(storer, &stubLLM{chatAnswer: "ok"}, &stubEmbedder{err: errStub}, DefaultTopK)

	_, err := a.Answer(context.Background(), doc.ID, "analyst", userTurn("What was revenue?"))
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestAnswerWithChart(t *testing.T) {
	storer := store.NewMemoryStore()
	doc := seedDocument(t, storer)
	seedMetrics(t, storer, doc.ID)

	llm := &stubLLM{
		chatAnswer:  "Revenue grew from 700,000 to 800,000.",
		plannerJSON: `{"wants_chart": true, "chart_type": "line", "x_axis": "year", "metrics": ["revenue"], "aggregation": "none"}`,
	}
	a := New(storer, llm, &stubEmbedder{}, DefaultTopK)

	resp, err := a.Answer(context.Background(), doc.ID, "analyst", userTurn("Show revenue over the years"))
	require.NoError(t, err)

	require.NotNil(t, resp.ChartData)
	assert.Equal(t, types.ChartLine, resp.ChartData.ChartType)
	assert.Equal(t, []int{2023, 2024}, resp.ChartData.Years)
	require.Len(t, resp.ChartData.Series, 1)
	assert.Equal(t, "Revenue", resp.ChartData.Series[0].Label)
	assert.Equal(t, []float64{700000, 800000}, resp.ChartData.Series[0].Values)
	// one chat call plus one planner call
	assert.Len(t, llm.calls, 2)
}

func TestAnswerChartNotRequested(t *testing.T) {
	storer := store.NewMemoryStore()
	doc := seedDocument(t, storer)
	seedMetrics(t, storer, doc.ID)

	llm := &stubLLM{
		chatAnswer:  "Revenue grew year over year.",
		plannerJSON: `{"wants_chart": true, "chart_type": "line", "x_axis": "year", "metrics": ["revenue"], "aggregation": "none"}`,
	}
	a := New(storer, llm, &stubEmbedder{}, DefaultTopK)

	// No visualization verb, so the planner is never consulted.
	resp, err := a.Answer(context.Background(), doc.ID, "analyst", userTurn("How did revenue develop?"))
	require.NoError(t, err)

	assert.Nil(t, resp.ChartData)
	assert.Len(t, llm.calls, 1)
}
