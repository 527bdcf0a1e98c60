package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"finrag/model"
)

const classifierSystem = "You classify documents for a financial analysis system. " +
	"Decide whether the given text is from a financial report (annual report, " +
	"balance sheet, statement of profit and loss, or similar filing)."

const classifierPrompt = `Here is the text from the first pages of an uploaded document:

"""%s"""

Return ONLY valid JSON with the following keys:
- is_financial_report: boolean
- reason: string, one short sentence

Example:
{
  "is_financial_report": true,
  "reason": "Contains a consolidated balance sheet and auditor's report."
}`

// Classifier labels a document as financial-report or other based on its
// leading pages. Any service or parse failure classifies as non-financial:
// a rejected upload is recoverable, a silently accepted resume is not.
type Classifier struct {
	llm model.TextGenerator
}

func NewClassifier(llm model.TextGenerator) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) Classify(ctx context.Context, leadingText string) (bool, string) {
	raw, err := c.llm.Generate(ctx, classifierSystem, fmt.Sprintf(classifierPrompt, leadingText))
	if err != nil {
		slog.Error("classification call failed", "error", err)
		return false, "classification failed"
	}

	jsonStr, err := model.ExtractJSON(raw)
	if err != nil {
		slog.Error("classifier returned no JSON", "raw", truncate(raw, 200))
		return false, "classification failed"
	}

	var verdict struct {
		IsFinancialReport bool   `json:"is_financial_report"`
		Reason            string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		slog.Error("classifier JSON not parsed", "error", err)
		return false, "classification failed"
	}

	if verdict.Reason == "" {
		verdict.Reason = "no reason given"
	}
	return verdict.IsFinancialReport, verdict.Reason
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
