// backend/src/models/analytics.go
package models

import "time"

// ValidationSummary is the diagnostic roll-up returned with every validation.
type ValidationSummary struct {
	TotalRows          int            `json:"totalRows"`
	ValidRows          int            `json:"validRows"`
	ErrorRows          int            `json:"errorRows"`
	WarningCount       int            `json:"warningCount"`
	StatusCounts       map[string]int `json:"statusCounts"`
	MissingFieldCounts map[string]int `json:"missingFieldCounts"`
}

// ValidationResult is the outcome of validating a batch of raw records.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []string          `json:"errors"`
	Warnings []string          `json:"warnings"`
	Summary  ValidationSummary `json:"summary"`
}

// AnalyticsMeta describes how a response was produced.
type AnalyticsMeta struct {
	RunID          string                  `json:"runId"`
	AsOf           time.Time               `json:"asOf"`
	Source         string                  `json:"source"`
	RowCount       int                     `json:"rowCount"`
	InflationRate  float64                 `json:"inflationRate"`
	RegionCounts   map[string]int          `json:"regionCounts"`
	PriceSources   map[PriceSourceKind]int `json:"priceSources"`
	LookupFailures int                     `json:"lookupFailures"`
	Warnings       []string                `json:"warnings"`
	Display        map[string]string       `json:"display"`
}

// AnalyticsData is the payload of a successful analytics response.
type AnalyticsData struct {
	Region             Region           `json:"region"`
	BaseCurrency       string           `json:"baseCurrency"`
	FXRate             float64          `json:"fxRate"`
	Totals             PortfolioTotals  `json:"totals"`
	PerRowCalculations []RowCalculation `json:"perRowCalculations"`
	Charts             ChartSeries      `json:"charts"`
	Meta               AnalyticsMeta    `json:"meta"`
}

const (
	EnvelopeSuccess = "success"
	EnvelopeError   = "error"
)

// Envelope is the response shape every API endpoint answers with.
type Envelope struct {
	Status   string   `json:"status"`
	Data     any      `json:"data,omitempty"`
	Message  string   `json:"message,omitempty"`
	Code     string   `json:"code,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
