package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"finrag/model"
	"finrag/types"

	"github.com/google/uuid"
)

// ExtractionResult carries whatever the extractor managed to recover.
// Missing metrics are omitted, never zeroed.
type ExtractionResult struct {
	CompanyName string
	FiscalYear  string
	Metrics     []types.FinancialMetric
}

// Extractor pulls company metadata and the four core metrics out of a
// report via the text-generation service. Every step is best effort: a
// failed call loses that step's output and nothing else.
type Extractor struct {
	llm model.TextGenerator
}

func NewExtractor(llm model.TextGenerator) *Extractor {
	return &Extractor{llm: llm}
}

const metaSystem = "You are reading the cover/intro pages of an annual report or balance sheet. " +
	"Extract structured metadata."

const metaPrompt = `Here is the text from the first pages of an annual report:

"""%s"""

Return ONLY valid JSON with the following keys:
- company_name: string
- financial_year: string (e.g. "FY 2023-24" or "Year ended 31 March 2024")

Example:
{
  "company_name": "Example Corp Ltd",
  "financial_year": "Year ended 31 March 2024"
}`

const pnlSystem = "You are extracting structured financial metrics from a company's " +
	"consolidated statement of profit and loss."

const pnlPrompt = `You are given text/tables from a company's consolidated statement of profit and loss:

"""%s"""

From this text, identify for each financial year where data is clearly reported:
- total revenue (or 'Revenue from operations' / 'Total income')
- net profit (PAT) (profit for the year attributable to owners, or consolidated profit)

Return ONLY valid JSON of the form:
{
  "metrics": [
    {"year": 2022, "revenue": 123456.0, "net_profit": 7890.0, "unit": "crore"},
    {"year": 2023, "revenue": 234567.0, "net_profit": 8901.0, "unit": "crore"}
  ]
}

Use integer years (e.g., 2022). If a value is not clearly available, omit that key for that year.
Values must be numeric, no commas or currency symbols, exactly as printed in the statement.
"unit" is the scale the statement reports in: one of "absolute", "thousand", "lakh", "million", "crore", "billion".`

const bsSystem = "You are extracting structured financial metrics from a company's " +
	"consolidated balance sheet."

const bsPrompt = `You are given text/tables from a company's consolidated balance sheet:

"""%s"""

From this text, identify for each financial year where data is clearly reported:
- total assets
- total liabilities (including non-current and current, but not equity)

Return ONLY valid JSON of the form:
{
  "metrics": [
    {"year": 2022, "total_assets": 111111.0, "total_liabilities": 99999.0, "unit": "crore"},
    {"year": 2023, "total_assets": 222222.0, "total_liabilities": 88888.0, "unit": "crore"}
  ]
}

Use integer years (e.g., 2022). If a value is not clearly available, omit that key for that year.
Values must be numeric, no commas or currency symbols, exactly as printed in the statement.
"unit" is the scale the statement reports in: one of "absolute", "thousand", "lakh", "million", "crore", "billion".`

func (e *Extractor) Extract(ctx context.Context, docID uuid.UUID, pages []model.PageText) (*ExtractionResult, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to extract from")
	}

	result := &ExtractionResult{}

	e.extractMeta(ctx, pages, result)

	pnlText := textForKeywords(pages, []string{
		"statement of profit and loss", "profit and loss", "statement of profit",
	})
	bsText := textForKeywords(pages, []string{
		"balance sheet", "statement of financial position",
	})

	pnlRows := e.extractMetricRows(ctx, pnlSystem, fmt.Sprintf(pnlPrompt, pnlText), "P&L metrics")
	for _, row := range pnlRows {
		appendMetric(&result.Metrics, docID, row.Year, types.MetricRevenue, row.Revenue, row.Unit)
		appendMetric(&result.Metrics, docID, row.Year, types.MetricNetProfit, row.NetProfit, row.Unit)
	}

	bsRows := e.extractMetricRows(ctx, bsSystem, fmt.Sprintf(bsPrompt, bsText), "Balance Sheet metrics")
	for _, row := range bsRows {
		appendMetric(&result.Metrics, docID, row.Year, types.MetricTotalAssets, row.TotalAssets, row.Unit)
		appendMetric(&result.Metrics, docID, row.Year, types.MetricTotalLiabilities, row.TotalLiabilities, row.Unit)
	}

	if result.CompanyName == "" && len(result.Metrics) == 0 {
		return nil, fmt.Errorf("extraction recovered nothing")
	}
	return result, nil
}

func (e *Extractor) extractMeta(ctx context.Context, pages []model.PageText, result *ExtractionResult) {
	firstPages := leadingText(pages, 3)

	raw, err := e.llm.Generate(ctx, metaSystem, fmt.Sprintf(metaPrompt, firstPages))
	if err != nil {
		slog.Warn("meta extraction call failed", "error", err)
		return
	}

	jsonStr, err := model.ExtractJSON(raw)
	if err != nil {
		slog.Warn("meta JSON not found", "raw", truncate(raw, 200))
		return
	}

	var meta struct {
		CompanyName   string `json:"company_name"`
		FinancialYear string `json:"financial_year"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &meta); err != nil {
		slog.Warn("meta JSON not parsed", "error", err)
		return
	}
	result.CompanyName = meta.CompanyName
	result.FiscalYear = meta.FinancialYear
}

type metricRow struct {
	Year             int      `json:"year"`
	Revenue          *float64 `json:"revenue"`
	NetProfit        *float64 `json:"net_profit"`
	TotalAssets      *float64 `json:"total_assets"`
	TotalLiabilities *float64 `json:"total_liabilities"`
	Unit             string   `json:"unit"`
}

func (e *Extractor) extractMetricRows(ctx context.Context, system, prompt, what string) []metricRow {
	raw, err := e.llm.Generate(ctx, system, prompt)
	if err != nil {
		slog.Warn("metric extraction call failed", "what", what, "error", err)
		return nil
	}

	jsonStr, err := model.ExtractJSON(raw)
	if err != nil {
		slog.Warn("metric JSON not found", "what", what, "raw", truncate(raw, 200))
		return nil
	}

	var parsed struct {
		Metrics []metricRow `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		slog.Warn("metric JSON not parsed", "what", what, "error", err)
		return nil
	}

	rows := parsed.Metrics[:0]
	for _, row := range parsed.Metrics {
		if row.Year < 1900 || row.Year > 2200 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func appendMetric(metrics *[]types.FinancialMetric, docID uuid.UUID, year int, name string, value *float64, unit string) {
	if value == nil {
		return
	}
	*metrics = append(*metrics, types.FinancialMetric{
		DocumentID: docID,
		Year:       year,
		Name:       name,
		Value:      *value * unitFactor(unit),
		Unit:       "INR",
	})
}

// unitFactor converts a reported scale label to a multiplier. The label
// comes from the model, so this stays best effort: unknown labels pass
// values through unchanged.
func unitFactor(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "thousand", "thousands":
		return 1e3
	case "lakh", "lakhs", "lac", "lacs":
		return 1e5
	case "million", "millions", "mn":
		return 1e6
	case "crore", "crores", "cr":
		return 1e7
	case "billion", "billions", "bn":
		return 1e9
	default:
		return 1
	}
}

// textForKeywords collects the pages matching any keyword plus one
// following page each, falling back to the first 10 pages when nothing
// matches.
func textForKeywords(pages []model.PageText, keywords []string) string {
	matched := map[int]bool{}
	for i, page := range pages {
		lower := strings.ToLower(page.Text)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched[i] = true
				if i+1 < len(pages) {
					matched[i+1] = true
				}
				break
			}
		}
	}

	if len(matched) == 0 {
		return leadingText(pages, 10)
	}

	var sb strings.Builder
	for i, page := range pages {
		if matched[i] {
			sb.WriteString(page.Text)
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func leadingText(pages []model.PageText, n int) string {
	if n > len(pages) {
		n = len(pages)
	}
	parts := make([]string, 0, n)
	for _, page := range pages[:n] {
		parts = append(parts, page.Text)
	}
	return strings.Join(parts, "\n\n")
}
