package processors

import (
	"time"

	"github.com/username/esopfolio/backend/src/models"
)

// CSVValidator checks a batch of raw records before normalization.
type CSVValidator interface {
	Validate(records []models.RawRecord) models.ValidationResult
	ValidateHeader(header []string) (errs []string, warnings []string)
}

// RecordNormalizer turns validated raw records into canonical records.
type RecordNormalizer interface {
	Normalize(raw models.RawRecord) models.NormalizedRecord
	NormalizeAll(raws []models.RawRecord) []models.NormalizedRecord
}

// PnLCalculator derives the figures of a single priced row.
type PnLCalculator interface {
	Calculate(row models.PricedRecord, region models.Region, asOf time.Time) models.RowCalculation
}

// TaxCalculator computes tax owed on a realized leg.
type TaxCalculator interface {
	Tax(in TaxInput, region models.Region) models.TaxBreakdown
}

// PortfolioAggregator folds row calculations into totals and chart series.
type PortfolioAggregator interface {
	Aggregate(rows []models.RowCalculation) (models.PortfolioTotals, models.ChartSeries)
}
