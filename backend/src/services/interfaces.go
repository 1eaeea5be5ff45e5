package services

import (
	"context"
	"io"

	"github.com/username/esopfolio/backend/src/model"
	"github.com/username/esopfolio/backend/src/models"
)

// UploadResult is the outcome of a stored upload.
type UploadResult struct {
	BatchID    string                  `json:"batchId"`
	RowCount   int                     `json:"rowCount"`
	Validation models.ValidationResult `json:"validation"`
}

// GrantBatch is a user's stored batch.
type GrantBatch struct {
	Upload  *model.GrantUpload        `json:"upload"`
	Records []models.NormalizedRecord `json:"records"`
}

// GrantService validates, stores and serves uploaded grant batches.
type GrantService interface {
	ValidateUpload(file io.Reader, format string) (*models.ValidationResult, error)
	ParseAndValidate(file io.Reader, format string) ([]models.RawRecord, models.ValidationResult, error)
	ProcessUpload(ctx context.Context, file io.Reader, userID, filename, format string) (*UploadResult, error)
	GetGrants(ctx context.Context, userID string) (*GrantBatch, error)
	DeleteGrants(ctx context.Context, userID string) (int64, error)
	InvalidateUserCache(userID string)
}

// AnalyzeOptions tune a single analysis run. Zero values use the service defaults.
type AnalyzeOptions struct {
	Region        models.Region
	InflationRate *float64
	Source        string
}

// AnalyticsService runs the analytics pipeline over uploaded or stored grants.
type AnalyticsService interface {
	Analyze(ctx context.Context, raws []models.RawRecord, opts AnalyzeOptions) (*models.AnalyticsData, error)
	AnalyzeUpload(ctx context.Context, file io.Reader, format string, opts AnalyzeOptions) (*models.AnalyticsData, error)
	AnalyzeStored(ctx context.Context, userID string, opts AnalyzeOptions) (*models.AnalyticsData, error)
}

// QuoteProvider fetches a live market quote for a ticker.
type QuoteProvider interface {
	GetQuote(ctx context.Context, ticker string) (models.Quote, error)
}

// ExportService writes per-row calculations in a portable format and reads them back.
type ExportService interface {
	ExportRows(w io.Writer, rows []models.RowCalculation, format string) error
	ImportRows(r io.Reader, format string) ([]models.RowCalculation, error)
}

// PriceResolver resolves live prices for many tickers in one call.
type PriceResolver interface {
	Resolve(ctx context.Context, tickers []string, baseCurrency string) map[string]ResolvedQuote
}
