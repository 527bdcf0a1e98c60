package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFinancialReport(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		"classify documents": `{"is_financial_report": true, "reason": "Contains a consolidated balance sheet."}`,
	}}

	ok, reason := NewClassifier(llm).Classify(context.Background(), "Consolidated Balance Sheet ...")

	assert.True(t, ok)
	assert.Equal(t, "Contains a consolidated balance sheet.", reason)
}

func TestClassifyOther(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		"classify documents": `{"is_financial_report": false, "reason": "This is a resume."}`,
	}}

	ok, reason := NewClassifier(llm).Classify(context.Background(), "Curriculum vitae ...")

	assert.False(t, ok)
	assert.Equal(t, "This is a resume.", reason)
}

func TestClassifyHandlesMarkdownFence(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		"classify documents": "Sure, here you go:\n```json\n{\"is_financial_report\": true, \"reason\": \"Annual report.\"}\n```",
	}}

	ok, _ := NewClassifier(llm).Classify(context.Background(), "Annual Report 2024")

	assert.True(t, ok)
}

func TestClassifyServiceErrorRejects(t *testing.T) {
	llm := &stubLLM{err: errors.New("boom")}

	ok, reason := NewClassifier(llm).Classify(context.Background(), "anything")

	assert.False(t, ok)
	assert.Equal(t, "classification failed", reason)
}

func TestClassifyMalformedResponseRejects(t *testing.T) {
	llm := &stubLLM{responses: map[string]string{
		"classify documents": "definitely a financial report, trust me",
	}}

	ok, reason := NewClassifier(llm).Classify(context.Background(), "anything")

	assert.False(t, ok)
	assert.Equal(t, "classification failed", reason)
}
