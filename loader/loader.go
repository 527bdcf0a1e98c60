package loader

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finrag/model"
	"finrag/store"
	"finrag/types"

	"github.com/google/uuid"
)

// Header/footer crop margins in points, tuned for typical annual-report
// layouts.
const (
	cropTop    = 46
	cropBottom = 57
)

// Pipeline runs one upload through classify -> extract -> chunk -> embed
// -> persist. Steps are strictly ordered; a document is either fully
// ingested and marked processed, or marked failed.
type Pipeline struct {
	cfg        types.Config
	store      store.DBStorer
	classifier *Classifier
	extractor  *Extractor
	chunker    *Chunker
	embedder   model.Embedder
	converter  model.Converter
	logger     *slog.Logger

	// pdfcpu steps, swappable in tests that feed synthetic bytes
	validatePDF func([]byte) error
	crop        func(inputPath, outputPath string, top, bottom float64) error
}

func NewPipeline(cfg types.Config, storer store.DBStorer, llm model.TextGenerator, embedder model.Embedder, converter model.Converter) (*Pipeline, error) {
	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	return &Pipeline{
		cfg:        cfg,
		store:      storer,
		classifier: NewClassifier(llm),
		extractor:  NewExtractor(llm),
		chunker:    chunker,
		embedder:   embedder,
		converter:  converter,
		logger:     slog.Default(),

		validatePDF: ValidatePDF,
		crop:        CropHeaderFooter,
	}, nil
}

// Ingest processes one uploaded PDF. On success the returned document is
// processed and queryable. Rejections come back as RejectedError or
// ErrDuplicate; anything else left a failed document behind.
func (p *Pipeline) Ingest(ctx context.Context, filename string, pdf []byte) (*types.Document, error) {
	if err := p.validatePDF(pdf); err != nil {
		return nil, RejectedError{Reason: "the uploaded file is not a readable PDF"}
	}

	sum := sha256.Sum256(pdf)
	hash := hex.EncodeToString(sum[:])

	if existing, err := p.store.GetDocumentByHash(ctx, hash); err == nil && existing != nil {
		if existing.Status != types.StatusFailed {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, existing.Filename)
		}
		// A failed ingestion does not block retrying the same file.
		p.logger.Info("replacing failed ingestion", "doc", existing.ID, "filename", existing.Filename)
		p.discard(ctx, *existing)
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	doc := types.Document{
		ID:          uuid.New(),
		Filename:    filename,
		ContentHash: hash,
		Status:      types.StatusPending,
		CreatedAt:   time.Now(),
	}
	doc.StoragePath = filepath.Join(p.cfg.UploadDir, doc.ID.String()+".pdf")

	if err := os.WriteFile(doc.StoragePath, pdf, 0644); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	if err := p.store.SaveDocument(ctx, doc); err != nil {
		os.Remove(doc.StoragePath)
		return nil, err
	}

	if err := p.crop(doc.StoragePath, doc.StoragePath, cropTop, cropBottom); err != nil {
		// Cropping is cosmetic, chunking works on the uncropped file too.
		p.logger.Warn("header/footer crop failed", "doc", doc.ID, "error", err)
	}

	pages, err := p.converter.Convert(ctx, doc.StoragePath)
	if err != nil {
		p.markFailed(ctx, doc)
		return nil, fmt.Errorf("text conversion failed: %w", err)
	}

	ok, reason := p.classifier.Classify(ctx, leadingText(pages, 3))
	if !ok {
		p.logger.Info("document rejected", "doc", doc.ID, "reason", reason)
		p.discard(ctx, doc)
		return nil, RejectedError{Reason: reason}
	}
	doc.IsFinancial = true

	extracted, err := p.extractor.Extract(ctx, doc.ID, pages)
	if err != nil {
		// The document is still ingested for retrieval even when no
		// metrics could be recovered.
		p.logger.Warn("metric extraction failed", "doc", doc.ID, "error", err)
	} else {
		doc.CompanyName = extracted.CompanyName
		doc.FiscalYear = extracted.FiscalYear
		if len(extracted.Metrics) > 0 {
			if err := p.store.SaveMetrics(ctx, extracted.Metrics); err != nil {
				p.markFailed(ctx, doc)
				return nil, fmt.Errorf("failed to save metrics: %w", err)
			}
		}
	}

	pieces := p.chunker.Split(pages)
	chunks := make([]types.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		embedding, err := p.embedder.Embed(ctx, piece.Text)
		if err != nil {
			p.markFailed(ctx, doc)
			return nil, fmt.Errorf("embedding chunk %d failed: %w", piece.Ordinal, err)
		}
		chunks = append(chunks, types.Chunk{
			ID:        uuid.New(),
			DocID:     doc.ID,
			Ordinal:   piece.Ordinal,
			Page:      piece.Page,
			Content:   piece.Text,
			Embedding: embedding,
		})
	}

	if err := p.store.SaveChunks(ctx, chunks); err != nil {
		p.markFailed(ctx, doc)
		return nil, fmt.Errorf("failed to save chunks: %w", err)
	}

	doc.Status = types.StatusProcessed
	doc.ProcessedAt = time.Now()
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}

	p.logger.Info("document ingested",
		"doc", doc.ID,
		"company", doc.CompanyName,
		"chunks", len(chunks),
	)
	return &doc, nil
}

// markFailed records the abandoned ingestion. The document stays for
// inspection but never becomes queryable.
func (p *Pipeline) markFailed(ctx context.Context, doc types.Document) {
	doc.Status = types.StatusFailed
	if err := p.store.UpdateDocument(ctx, doc); err != nil {
		p.logger.Error("failed to mark document failed", "doc", doc.ID, "error", err)
	}
}

// discard removes a rejected document entirely: non-financial uploads
// must leave no rows and no file behind.
func (p *Pipeline) discard(ctx context.Context, doc types.Document) {
	if err := p.store.DeleteDocument(ctx, doc.ID); err != nil {
		p.logger.Error("failed to delete rejected document", "doc", doc.ID, "error", err)
	}
	if err := os.Remove(doc.StoragePath); err != nil {
		p.logger.Error("failed to remove rejected file", "path", doc.StoragePath, "error", err)
	}
}
