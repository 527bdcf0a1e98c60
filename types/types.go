package types

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusProcessed DocumentStatus = "processed"
	StatusFailed    DocumentStatus = "failed"
)

// Metric names the extractor is allowed to persist.
const (
	MetricRevenue          = "revenue"
	MetricNetProfit        = "net_profit"
	MetricTotalAssets      = "total_assets"
	MetricTotalLiabilities = "total_liabilities"
)

func KnownMetrics() []string {
	return []string{MetricRevenue, MetricNetProfit, MetricTotalAssets, MetricTotalLiabilities}
}

type Document struct {
	ID          uuid.UUID
	Filename    string
	StoragePath string
	CompanyName string
	FiscalYear  string
	ContentHash string
	IsFinancial bool
	Status      DocumentStatus
	CreatedAt   time.Time
	ProcessedAt time.Time
}

type FinancialMetric struct {
	DocumentID uuid.UUID
	Year       int
	Name       string
	Value      float64
	Unit       string
}

type Chunk struct {
	ID         uuid.UUID
	DocID      uuid.UUID
	Ordinal    int
	Page       int
	Content    string
	Embedding  []float32
	Similarity float64
}

// MetricsByYear maps year -> metric name -> value in absolute units.
type MetricsByYear map[int]map[string]float64

func (m MetricsByYear) Years() []int {
	years := make([]int, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func (m MetricsByYear) LatestYear() (int, bool) {
	years := m.Years()
	if len(years) == 0 {
		return 0, false
	}
	return years[len(years)-1], true
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

type ChartType string

const (
	ChartLine ChartType = "line"
	ChartBar  ChartType = "bar"
	ChartPie  ChartType = "pie"
	ChartNone ChartType = "none"
)

// ChartPlan is the planner's decision for one chat turn. Transient,
// never persisted.
type ChartPlan struct {
	WantsChart  bool      `json:"wants_chart"`
	ChartType   ChartType `json:"chart_type"`
	XAxis       string    `json:"x_axis"`
	Metrics     []string  `json:"metrics"`
	Aggregation string    `json:"aggregation"`
}

type ChartSeries struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// ChartData is the wire shape consumed by the chart widgets. Field names
// must stay as they are, the frontend depends on them.
type ChartData struct {
	ChartType ChartType     `json:"chart_type"`
	Years     []int         `json:"years"`
	Series    []ChartSeries `json:"series"`
}

// Config groups the ingestion settings read once at startup.
type Config struct {
	UploadDir    string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}
