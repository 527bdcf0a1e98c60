package api

import (
	"database/sql"
	"errors"
	"os"

	"finrag/store"
	"finrag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type DocumentHandler struct {
	store store.DBStorer
}

func NewDocumentHandler(s store.DBStorer) *DocumentHandler {
	return &DocumentHandler{
		store: s,
	}
}

// HandleList returns the ingested financial documents, newest first,
// each with its latest year's metric summary.
func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	docs, err := h.store.ListDocuments(c.Context())
	if err != nil {
		return err
	}

	summaries := make([]types.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		summary := types.DocumentSummary{
			DocumentID:  doc.ID.String(),
			CompanyName: doc.CompanyName,
			FiscalYear:  doc.FiscalYear,
			Filename:    doc.Filename,
			CreatedAt:   doc.CreatedAt,
		}

		metrics, err := h.store.MetricsByYear(c.Context(), doc.ID)
		if err != nil {
			return err
		}
		if latest, ok := metrics.LatestYear(); ok {
			summary.LatestYear = latest
			summary.LatestYearMetrics = metrics[latest]
		}

		summaries = append(summaries, summary)
	}

	return c.JSON(types.DocumentListResponse{Documents: summaries})
}

// HandleDelete removes a document with its metrics, chunks and stored
// file.
func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.store.GetDocumentByID(c.Context(), docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound(docID, "document")
		}
		return err
	}

	if err := h.store.DeleteDocument(c.Context(), docID); err != nil {
		return err
	}
	if doc.StoragePath != "" {
		os.Remove(doc.StoragePath)
	}

	return c.JSON(fiber.Map{"result": "deleted"})
}
