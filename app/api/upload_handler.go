package api

import (
	"errors"
	"io"
	"strings"

	"finrag/loader"
	"finrag/types"

	"github.com/gofiber/fiber/v2"
)

type UploadHandler struct {
	pipeline *loader.Pipeline
}

func NewUploadHandler(pipeline *loader.Pipeline) *UploadHandler {
	return &UploadHandler{
		pipeline: pipeline,
	}
}

// HandleUpload ingests one uploaded PDF balance sheet / annual report.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return ErrRejected("only PDF files are allowed")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	doc, err := h.pipeline.Ingest(c.Context(), fileHeader.Filename, data)
	if err != nil {
		var rejected loader.RejectedError
		switch {
		case errors.As(err, &rejected):
			return ErrRejected(rejected.Reason)
		case errors.Is(err, loader.ErrDuplicate):
			return ErrDuplicate()
		default:
			return err
		}
	}

	return c.JSON(types.UploadResponse{
		DocumentID:  doc.ID.String(),
		CompanyName: doc.CompanyName,
		FiscalYear:  doc.FiscalYear,
	})
}
