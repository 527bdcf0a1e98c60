package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"finrag/model"
	"finrag/types"
)

var chartRequestWords = []string{"show", "plot", "visualize", "visualise", "graph", "chart", "draw"}

var chartTypeWord = regexp.MustCompile(`\b(line|bar|pie)\b`)

var flowChartWord = regexp.MustCompile(`\bflow\s?chart\b`)

// wantsChartRequest gates the planner: no explicit visualization verb in
// the question, no planner call at all.
func wantsChartRequest(question string) bool {
	lower := strings.ToLower(question)
	for _, w := range chartRequestWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

const plannerSystem = `You are a chart planning assistant for a financial dashboard.

You receive:
1) A user's question about financial performance.
2) A summary of what metrics are available by year, such as:
   2023: net_profit, revenue, total_assets, total_liabilities
   2024: net_profit, revenue, total_assets, total_liabilities

Your job is to decide IF a chart should be shown, WHAT metrics to plot, and WHAT chart type is appropriate.

Chart types you can choose:
- "line": for trends over time (e.g. revenue by year).
- "bar": for comparing values across years or across metrics.
- "pie": for showing composition of one year's metrics (e.g. assets vs liabilities).

If the user asks for a "flow chart" or "flowchart", you MUST set chart_type to "none".
We do NOT support flowchart visuals; the main assistant will answer with text steps instead.

Rules:
- Only use metrics that actually exist in the metrics summary.
- If the user mentions a specific chart type (bar, line, pie), prefer that type.
- If the question is about trends over years, a line chart is usually best.
- If the question is about comparing a few values in specific years, a bar chart is good.
- If the question is about showing share or distribution for a single year, a pie chart is good.
- If a chart would add no value, set "wants_chart" to false.

Return ONLY valid JSON with keys:
  "wants_chart": boolean,
  "chart_type": string, one of "line", "bar", "pie", "none"
  "x_axis": string, either "year" or "metric"
  "metrics": array of metric names (like ["revenue", "net_profit"])
  "aggregation": string, e.g. "none" or "latest_year"`

// Planner asks the model how to visualize, then applies deterministic
// overrides on top of its judgment.
type Planner struct {
	llm model.TextGenerator
}

func NewPlanner(llm model.TextGenerator) *Planner {
	return &Planner{llm: llm}
}

func noChartPlan() types.ChartPlan {
	return types.ChartPlan{
		WantsChart:  false,
		ChartType:   types.ChartNone,
		XAxis:       "year",
		Metrics:     []string{},
		Aggregation: "none",
	}
}

// Plan never fails: any model error or malformed output degrades to a
// no-chart plan and the turn continues as plain text.
func (p *Planner) Plan(ctx context.Context, question string, metrics types.MetricsByYear) types.ChartPlan {
	userPrompt := fmt.Sprintf("User's question:\n\"\"\"%s\"\"\"\n\nAvailable metrics by year:\n%s\n\nReturn JSON only.",
		question, metricsSummary(metrics))

	raw, err := p.llm.Generate(ctx, plannerSystem, userPrompt)
	if err != nil {
		slog.Warn("chart planner call failed", "error", err)
		return noChartPlan()
	}

	jsonStr, err := model.ExtractJSON(raw)
	if err != nil {
		slog.Warn("chart planner returned no JSON", "raw", raw)
		return noChartPlan()
	}

	var plan types.ChartPlan
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		slog.Warn("chart planner JSON not parsed", "error", err)
		return noChartPlan()
	}

	if plan.XAxis == "" {
		plan.XAxis = "year"
	}
	if plan.Aggregation == "" {
		plan.Aggregation = "none"
	}

	applyOverrides(&plan, question)

	switch plan.ChartType {
	case types.ChartLine, types.ChartBar, types.ChartPie:
	default:
		plan.ChartType = types.ChartNone
		plan.WantsChart = false
	}
	return plan
}

// applyOverrides enforces the explicit wishes in the question over
// whatever the model decided. Flow-diagram requests are text answers,
// never data charts.
func applyOverrides(plan *types.ChartPlan, question string) {
	lower := strings.ToLower(question)

	if flowChartWord.MatchString(lower) {
		plan.WantsChart = false
		plan.ChartType = types.ChartNone
		return
	}

	if m := chartTypeWord.FindString(lower); m != "" {
		plan.ChartType = types.ChartType(m)
		plan.WantsChart = true
		if plan.ChartType == types.ChartPie {
			plan.Aggregation = "latest_year"
		}
	}
}

// metricsSummary renders what the planner is allowed to pick from, one
// line per year.
func metricsSummary(metrics types.MetricsByYear) string {
	years := metrics.Years()
	if len(years) == 0 {
		return "No metrics available."
	}

	var lines []string
	for _, year := range years {
		names := make([]string, 0, len(metrics[year]))
		for name := range metrics[year] {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 0 {
			lines = append(lines, fmt.Sprintf("%d: %s", year, strings.Join(names, ", ")))
		}
	}
	if len(lines) == 0 {
		return "No metrics available."
	}
	return strings.Join(lines, "\n")
}

// metricAliases maps the planner's loose metric names onto stored ones.
var metricAliases = map[string]string{
	"revenue":           types.MetricRevenue,
	"net_profit":        types.MetricNetProfit,
	"net profit":        types.MetricNetProfit,
	"profit":            types.MetricNetProfit,
	"pat":               types.MetricNetProfit,
	"total_assets":      types.MetricTotalAssets,
	"total assets":      types.MetricTotalAssets,
	"assets":            types.MetricTotalAssets,
	"total_liabilities": types.MetricTotalLiabilities,
	"total liabilities": types.MetricTotalLiabilities,
	"liabilities":       types.MetricTotalLiabilities,
}

func normalizeMetricNames(requested []string) []string {
	seen := make(map[string]struct{}, len(requested))
	var result []string
	for _, name := range requested {
		canonical, ok := metricAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		result = append(result, canonical)
	}
	return result
}

func seriesLabel(metricName string) string {
	words := strings.Fields(strings.ReplaceAll(metricName, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// BuildChartData turns an accepted plan plus metrics into the renderable
// series structure. Series values are always aligned to the years array,
// missing combinations fill with 0.
func BuildChartData(plan types.ChartPlan, metrics types.MetricsByYear) *types.ChartData {
	if !plan.WantsChart || plan.ChartType == types.ChartNone {
		return nil
	}

	names := normalizeMetricNames(plan.Metrics)
	years := metrics.Years()
	if len(names) == 0 || len(years) == 0 {
		return nil
	}

	if plan.ChartType == types.ChartPie {
		// Single-year composition: latest year only.
		latest := years[len(years)-1]
		var series []types.ChartSeries
		for _, name := range names {
			if val, ok := metrics[latest][name]; ok {
				series = append(series, types.ChartSeries{
					Label:  seriesLabel(name),
					Values: []float64{val},
				})
			}
		}
		if len(series) == 0 {
			return nil
		}
		return &types.ChartData{
			ChartType: types.ChartPie,
			Years:     []int{latest},
			Series:    series,
		}
	}

	var series []types.ChartSeries
	for _, name := range names {
		values := make([]float64, 0, len(years))
		nonZero := false
		for _, year := range years {
			val := metrics[year][name]
			if val != 0 {
				nonZero = true
			}
			values = append(values, val)
		}
		if nonZero {
			series = append(series, types.ChartSeries{
				Label:  seriesLabel(name),
				Values: values,
			})
		}
	}
	if len(series) == 0 {
		return nil
	}

	return &types.ChartData{
		ChartType: plan.ChartType,
		Years:     years,
		Series:    series,
	}
}
