package loader

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ValidatePDF rejects uploads that are not well-formed PDFs before any
// external calls are made.
func ValidatePDF(data []byte) error {
	if err := api.Validate(bytes.NewReader(data), api.LoadConfiguration()); err != nil {
		return fmt.Errorf("not a valid PDF: %w", err)
	}
	return nil
}

// CropHeaderFooter trims running headers and footers so they do not end
// up inside chunks. top and bottom are in points (1 pt = 1/72 inch).
func CropHeaderFooter(inputPath, outputPath string, top, bottom float64) error {
	conf := api.LoadConfiguration()

	pages := []string{"1-"}

	cropStr := fmt.Sprintf("%.2f 0 %.2f 0", top, bottom)

	box, err := pdfmodel.ParseBox(cropStr, pdftypes.POINTS)
	if err != nil {
		return fmt.Errorf("failed to parse crop box: %w", err)
	}

	if err := api.CropFile(inputPath, outputPath, pages, box, conf); err != nil {
		return fmt.Errorf("failed to crop PDF: %w", err)
	}

	return nil
}
