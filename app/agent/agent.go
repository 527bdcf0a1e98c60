package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finrag/model"
	"finrag/store"
	"finrag/types"

	"github.com/google/uuid"
)

// ErrGeneration marks an external-call failure during a chat turn. The
// turn is not retried; the handler surfaces a generic apology.
var ErrGeneration = errors.New("answer generation failed")

// ErrLastNotUser means the chat history does not end in a user message.
var ErrLastNotUser = errors.New("last message must come from the user")

// ErrNotReady means the document exists but never finished ingestion.
// Pending and failed documents are invisible to chat.
var ErrNotReady = errors.New("document is not ready for querying")

// Agent runs one chat turn: retrieval, prompt assembly, generation and
// chart planning for a single document session.
type Agent struct {
	store     store.DBStorer
	llm       model.TextGenerator
	retriever *Retriever
	planner   *Planner
	logger    *slog.Logger
}

func New(storer store.DBStorer, llm model.TextGenerator, embedder model.Embedder, topK int) *Agent {
	return &Agent{
		store:     storer,
		llm:       llm,
		retriever: NewRetriever(storer, embedder, topK),
		planner:   NewPlanner(llm),
		logger:    slog.Default(),
	}
}

func (a *Agent) Answer(ctx context.Context, docID uuid.UUID, role string, messages []types.ChatMessage) (*types.ChatResponse, error) {
	doc, err := a.store.GetDocumentByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != types.StatusProcessed {
		return nil, fmt.Errorf("%w: status %s", ErrNotReady, doc.Status)
	}

	if len(messages) == 0 {
		return nil, ErrLastNotUser
	}
	last := messages[len(messages)-1]
	if last.Role != types.RoleUser {
		return nil, ErrLastNotUser
	}
	question := last.Content

	// Plain greetings skip retrieval, metrics and the model entirely.
	if isGreeting(question) {
		return &types.ChatResponse{Answer: greetingReply(doc.CompanyName)}, nil
	}

	metrics, err := a.store.MetricsByYear(ctx, docID)
	if err != nil {
		return nil, err
	}

	chunks, err := a.retriever.Retrieve(ctx, docID, question)
	if err != nil {
		a.logger.Error("retrieval failed", "doc", docID, "error", err)
		return nil, fmt.Errorf("%w: retrieval: %v", ErrGeneration, err)
	}
	if len(chunks) == 0 {
		a.logger.Info("no passages retrieved, answering from metrics only", "doc", docID)
	}

	answer, err := a.llm.Generate(ctx,
		buildSystemPrompt(role),
		buildUserPrompt(doc, role, metrics, chunks, renderHistory(messages), question),
	)
	if err != nil {
		a.logger.Error("generation failed", "doc", docID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var chartData *types.ChartData
	if wantsChartRequest(question) {
		plan := a.planner.Plan(ctx, question, metrics)
		chartData = BuildChartData(plan, metrics)
	}

	return &types.ChatResponse{
		Answer:    answer,
		ChartData: chartData,
	}, nil
}
