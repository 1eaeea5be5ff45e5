// backend/src/models/calculation.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSourceKind tells which basis produced the price a row was valued at.
type PriceSourceKind string

const (
	PriceSourceLive     PriceSourceKind = "live"     // quote provider
	PriceSourceCSV      PriceSourceKind = "csv"      // currentPrice column, or salePrice for Sold rows
	PriceSourceFallback PriceSourceKind = "fallback" // fmv column used in place of currentPrice
)

// PriceSource is the resolved price for a row together with its origin.
type PriceSource struct {
	Kind     PriceSourceKind `json:"kind"`
	Value    decimal.Decimal `json:"value"`
	QuotedAt *time.Time      `json:"quotedAt,omitempty"`
}

// PricedRecord pairs a normalized row with the outcome of price resolution.
// Price is nil when no price applies or none could be found; PriceError
// explains the latter.
type PricedRecord struct {
	Index      int
	Record     NormalizedRecord
	Price      *PriceSource
	PriceError string
}

// Region selects the tax regime and base currency.
type Region string

const (
	RegionIndia   Region = "IN"
	RegionUS      Region = "US"
	RegionUnknown Region = ""
)

// Currency returns the ISO code amounts are reported in for the region.
func (r Region) Currency() string {
	if r == RegionIndia {
		return "INR"
	}
	return "USD"
}

// TaxBreakdown is the output of the tax calculator for one realized leg.
type TaxBreakdown struct {
	BargainElement decimal.Decimal `json:"bargainElement"`
	ShortTermGain  decimal.Decimal `json:"shortTermGain"`
	LongTermGain   decimal.Decimal `json:"longTermGain"`
	Tax            decimal.Decimal `json:"tax"`
}

// RowCalculation holds every derived figure for one row. It also carries the
// row identity the aggregator and exporters need.
type RowCalculation struct {
	Index         int             `json:"index"`
	Ticker        string          `json:"ticker"`
	Company       string          `json:"company"`
	Status        Status          `json:"status"`
	GrantDate     time.Time       `json:"grantDate"`
	SaleDate      *time.Time      `json:"saleDate,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	Vested        decimal.Decimal `json:"vested"`
	Units         decimal.Decimal `json:"units"`
	ExercisePrice decimal.Decimal `json:"exercisePrice"`
	PriceSource   *PriceSource    `json:"priceSource,omitempty"`

	CostBasis            decimal.Decimal `json:"costBasis"`
	CurrentValue         decimal.Decimal `json:"currentValue"`
	UnrealizedPnL        decimal.Decimal `json:"unrealizedPnL"`
	RealizedPnL          decimal.Decimal `json:"realizedPnL"`
	TaxDetail            TaxBreakdown    `json:"taxDetail"`
	Tax                  decimal.Decimal `json:"tax"`
	PostTaxPnL           decimal.Decimal `json:"postTaxPnL"`
	InflationAdjustedPnL decimal.Decimal `json:"inflationAdjustedPnL"`
	HoldingPeriodDays    int             `json:"holdingPeriodDays"`
	HoldingPeriodYears   float64         `json:"holdingPeriodYears"`
	CAGR                 *float64        `json:"cagr"`
	IsActive             bool            `json:"isActive"`
	Error                string          `json:"error,omitempty"`
}

// PortfolioTotals sums the active rows.
type PortfolioTotals struct {
	TotalCostBasis            decimal.Decimal `json:"totalCostBasis"`
	TotalCurrentValue         decimal.Decimal `json:"totalCurrentValue"`
	TotalRealizedPnL          decimal.Decimal `json:"totalRealizedPnL"`
	TotalUnrealizedPnL        decimal.Decimal `json:"totalUnrealizedPnL"`
	TotalPnL                  decimal.Decimal `json:"totalPnL"`
	TotalTax                  decimal.Decimal `json:"totalTax"`
	TotalPostTaxPnL           decimal.Decimal `json:"totalPostTaxPnL"`
	TotalInflationAdjustedPnL decimal.Decimal `json:"totalInflationAdjustedPnL"`
	PortfolioCAGR             *float64        `json:"portfolioCAGR"`
	PortfolioYears            float64         `json:"portfolioYears"`
	ActiveRows                int             `json:"activeRows"`
	InactiveRows              int             `json:"inactiveRows"`
}

// YearQuantity is one bar of the grants-per-year chart.
type YearQuantity struct {
	Year     string          `json:"year"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MonthAmount is one point of the realized PnL timeline.
type MonthAmount struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// YearPnLTriple compares raw, post-tax and inflation-adjusted PnL per year.
type YearPnLTriple struct {
	Year              string          `json:"year"`
	Unrealized        decimal.Decimal `json:"unrealized"`
	PostTax           decimal.Decimal `json:"postTax"`
	InflationAdjusted decimal.Decimal `json:"inflationAdjusted"`
}

// ChartSeries groups the time-bucketed series in first-seen key order.
type ChartSeries struct {
	ESOPsPerYear                   []YearQuantity  `json:"esopsPerYear"`
	RealizedPnLTimeline            []MonthAmount   `json:"realizedPnLTimeline"`
	UnrealizedVsPostTaxVsInflation []YearPnLTriple `json:"unrealizedVsPostTaxVsInflation"`
}

// Quote is a market price as reported by a quote provider.
type Quote struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}
