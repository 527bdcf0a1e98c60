package agent

import (
	"fmt"
	"sort"
	"strings"

	"finrag/types"

	"github.com/pkoukk/tiktoken-go"
)

// passageTokenBudget caps the retrieved-passage block of the prompt.
const passageTokenBudget = 6000

const baseSystemPrompt = "You are a financial analyst assistant for balance sheet and P&L analysis. " +
	"You MUST base your answer ONLY on the data and passages provided in the context. " +
	"If a specific number, year or fact is not provided, say you don't have that information. " +
	"Never invent figures."

// roleTones is plain configuration: adding a role is adding a row.
var roleTones = map[string]string{
	"ceo": " The user is a CEO. Be concise, focus on key trends, risks, and actions, " +
		"not too much raw detail.",
	"analyst": " The user is an analyst. Be detailed, mention actual figures, explain the trends " +
		"and note caveats in the data.",
	"management": " The user is senior management. Provide an executive summary with some key numbers.",
}

func toneFor(role string) string {
	rl := strings.ToLower(role)
	for key, tone := range roleTones {
		if key != "management" && strings.Contains(rl, key) {
			return tone
		}
	}
	return roleTones["management"]
}

func buildSystemPrompt(role string) string {
	return baseSystemPrompt + toneFor(role)
}

var greetingKeywords = []string{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
}

// isGreeting matches short turns that are just a salutation, so the
// pipeline can answer without burning a retrieval and a generation call.
func isGreeting(message string) bool {
	var b strings.Builder
	for _, ch := range strings.ToLower(message) {
		if ch == ' ' || (ch >= 'a' && ch <= 'z') {
			b.WriteRune(ch)
		}
	}
	normalized := strings.TrimSpace(b.String())
	if normalized == "" || len(strings.Fields(normalized)) > 5 {
		return false
	}

	for _, kw := range greetingKeywords {
		if normalized == kw || strings.HasPrefix(normalized, kw+" ") {
			return true
		}
	}
	return false
}

func greetingReply(companyName string) string {
	company := companyName
	if company == "" {
		company = "this company"
	}
	return fmt.Sprintf(
		"Hi! I'm your financial copilot for %s. "+
			"You can ask me about revenue, profit, assets, liabilities, trends, "+
			"or ratios based on the company's published balance sheet.", company)
}

// renderMetricsTable lays metrics out year by year for grounding.
func renderMetricsTable(metrics types.MetricsByYear) string {
	years := metrics.Years()
	if len(years) == 0 {
		return "No financial data available."
	}

	var sb strings.Builder
	for _, year := range years {
		names := make([]string, 0, len(metrics[year]))
		for name := range metrics[year] {
			names = append(names, name)
		}
		sort.Strings(names)

		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%.2f", name, metrics[year][name]))
		}
		sb.WriteString(fmt.Sprintf("FY %d: %s\n", year, strings.Join(parts, ", ")))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderPassages prints retrieved chunks verbatim with page attribution,
// trimmed to the token budget.
func renderPassages(chunks []types.Chunk) string {
	if len(chunks) == 0 {
		return "No passages retrieved."
	}

	var sb strings.Builder
	for i, ch := range chunks {
		sb.WriteString(fmt.Sprintf("[Passage %d, page %d]\n%s\n\n", i+1, ch.Page, ch.Content))
	}
	return trimToTokenBudget(strings.TrimRight(sb.String(), "\n"), passageTokenBudget)
}

func trimToTokenBudget(text string, budget int) string {
	// A token is at least one byte, so short text can't be over budget.
	if len(text) <= budget {
		return text
	}

	enc, err := tiktoken.EncodingForModel("gpt-4o")
	if err != nil {
		// Without a tokenizer fall back to a rough character cap.
		if len(text) > budget*4 {
			return text[:budget*4]
		}
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}

// renderHistory includes the last few prior turns so follow-up questions
// keep their referents.
func renderHistory(messages []types.ChatMessage) string {
	if len(messages) <= 1 {
		return ""
	}
	prior := messages[:len(messages)-1]
	if len(prior) > 6 {
		prior = prior[len(prior)-6:]
	}

	var sb strings.Builder
	for _, msg := range prior {
		speaker := "User"
		if msg.Role == types.RoleAssistant {
			speaker = "Assistant"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", speaker, msg.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func buildUserPrompt(doc *types.Document, role string, metrics types.MetricsByYear, chunks []types.Chunk, history, question string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Company: %s\n", doc.CompanyName)
	fmt.Fprintf(&sb, "Fiscal period: %s\n", doc.FiscalYear)
	fmt.Fprintf(&sb, "Role: %s\n\n", role)

	sb.WriteString("Available financial data:\n")
	sb.WriteString(renderMetricsTable(metrics))
	sb.WriteString("\n\nRelevant passages from the report:\n")
	sb.WriteString(renderPassages(chunks))

	if history != "" {
		sb.WriteString("\n\nConversation so far:\n")
		sb.WriteString(history)
	}

	fmt.Fprintf(&sb, "\n\nUser question:\n%s\n\n", question)
	sb.WriteString("Using ONLY the data and passages above, answer the question. " +
		"Do not invent years or numbers you do not see.")
	return sb.String()
}
