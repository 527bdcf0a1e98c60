package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// PageText is one page of extracted document text.
type PageText struct {
	Number int
	Text   string
}

// Converter turns a PDF file into per-page plain text. The conversion
// itself runs in an external service (docling-compatible API).
type Converter interface {
	Convert(ctx context.Context, pdfPath string) ([]PageText, error)
}

type HTTPConverter struct {
	url    string
	client *http.Client
}

func NewHTTPConverter(url string) *HTTPConverter {
	return &HTTPConverter{
		url:    url,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type convertResponse struct {
	Document struct {
		MdContent string `json:"md_content"`
		Pages     []struct {
			PageNo    int    `json:"page_no"`
			MdContent string `json:"md_content"`
		} `json:"pages"`
	} `json:"document"`
}

func (c *HTTPConverter) Convert(ctx context.Context, pdfPath string) ([]PageText, error) {
	file, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", filepath.Base(pdfPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy pdf into request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("converter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("converter API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var converted convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&converted); err != nil {
		return nil, fmt.Errorf("failed to decode converter response: %w", err)
	}

	if len(converted.Document.Pages) > 0 {
		pages := make([]PageText, 0, len(converted.Document.Pages))
		for _, p := range converted.Document.Pages {
			pages = append(pages, PageText{Number: p.PageNo, Text: p.MdContent})
		}
		return pages, nil
	}

	// Older converter versions return the whole document as one blob.
	if converted.Document.MdContent != "" {
		return []PageText{{Number: 1, Text: converted.Document.MdContent}}, nil
	}

	return nil, fmt.Errorf("converter returned no content")
}
