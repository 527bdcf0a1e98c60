package loader

import (
	"fmt"
	"strings"

	"finrag/model"
)

// Chunker splits extracted document text into fixed-size character
// windows with a fixed overlap. Windows never cross page boundaries, so
// a retrieved chunk always has a single page to attribute.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0")
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be >= 0 and < size")
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Overlap() int { return c.overlap }

// Piece is one chunk of text before embedding.
type Piece struct {
	Ordinal int
	Page    int
	Text    string
}

// Split windows each page separately. Ordinals run across the whole
// document. Concatenating a page's pieces with the first overlap runes
// of every piece after the first removed yields the page text exactly.
func (c *Chunker) Split(pages []model.PageText) []Piece {
	var pieces []Piece
	ordinal := 0
	step := c.size - c.overlap

	for _, page := range pages {
		runes := []rune(page.Text)
		if len(strings.TrimSpace(page.Text)) == 0 {
			continue
		}

		for i := 0; i < len(runes); i += step {
			end := i + c.size
			if end > len(runes) {
				end = len(runes)
			}

			pieces = append(pieces, Piece{
				Ordinal: ordinal,
				Page:    page.Number,
				Text:    string(runes[i:end]),
			})
			ordinal++

			if end == len(runes) {
				break
			}
		}
	}
	return pieces
}

// Reconstruct inverts Split for a single page's pieces, dropping the
// leading overlap of every piece after the first.
func Reconstruct(pieces []Piece, overlap int) string {
	var sb strings.Builder
	for i, p := range pieces {
		runes := []rune(p.Text)
		if i == 0 {
			sb.WriteString(p.Text)
			continue
		}
		if len(runes) > overlap {
			sb.WriteString(string(runes[overlap:]))
		}
	}
	return sb.String()
}
