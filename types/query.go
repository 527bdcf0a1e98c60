package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

type ChatParams struct {
	DocumentID string        `json:"document_id" validate:"required,uuid4"`
	Role       string        `json:"role" validate:"required"`
	Messages   []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

type ChatResponse struct {
	Answer    string     `json:"answer"`
	ChartData *ChartData `json:"chart_data"`
}

type UploadResponse struct {
	DocumentID  string `json:"document_id"`
	CompanyName string `json:"company_name"`
	FiscalYear  string `json:"fiscal_year"`
}

type DocumentSummary struct {
	DocumentID        string             `json:"document_id"`
	CompanyName       string             `json:"company_name"`
	FiscalYear        string             `json:"fiscal_year"`
	Filename          string             `json:"filename"`
	CreatedAt         time.Time          `json:"created_at"`
	LatestYear        int                `json:"latest_year,omitempty"`
	LatestYearMetrics map[string]float64 `json:"latest_year_metrics,omitempty"`
}

type DocumentListResponse struct {
	Documents []DocumentSummary `json:"documents"`
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
