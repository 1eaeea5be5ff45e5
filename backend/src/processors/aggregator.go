package processors

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/utils"
)

// portfolioAggregatorImpl implements the PortfolioAggregator interface.
type portfolioAggregatorImpl struct {
	asOf time.Time
}

// NewPortfolioAggregator creates an aggregator that measures the portfolio
// holding period up to asOf.
func NewPortfolioAggregator(asOf time.Time) PortfolioAggregator {
	return &portfolioAggregatorImpl{asOf: asOf}
}

// Aggregate sums the active rows and builds the chart series. Inactive rows
// are counted but contribute nothing. Series keep first-seen key order.
func (a *portfolioAggregatorImpl) Aggregate(rows []models.RowCalculation) (models.PortfolioTotals, models.ChartSeries) {
	totals := models.PortfolioTotals{
		TotalCostBasis:            decimal.Zero,
		TotalCurrentValue:         decimal.Zero,
		TotalRealizedPnL:          decimal.Zero,
		TotalUnrealizedPnL:        decimal.Zero,
		TotalPnL:                  decimal.Zero,
		TotalTax:                  decimal.Zero,
		TotalPostTaxPnL:           decimal.Zero,
		TotalInflationAdjustedPnL: decimal.Zero,
	}

	perYear := newOrderedSums()
	timeline := newOrderedSums()
	yearUnrealized := newOrderedSums()
	yearPostTax := newOrderedSums()
	yearInflation := newOrderedSums()

	var earliest time.Time
	for _, row := range rows {
		if !row.IsActive {
			totals.InactiveRows++
			continue
		}
		totals.ActiveRows++

		totals.TotalCostBasis = totals.TotalCostBasis.Add(row.CostBasis)
		totals.TotalCurrentValue = totals.TotalCurrentValue.Add(row.CurrentValue)
		totals.TotalRealizedPnL = totals.TotalRealizedPnL.Add(row.RealizedPnL)
		totals.TotalUnrealizedPnL = totals.TotalUnrealizedPnL.Add(row.UnrealizedPnL)
		totals.TotalTax = totals.TotalTax.Add(row.Tax)
		totals.TotalPostTaxPnL = totals.TotalPostTaxPnL.Add(row.PostTaxPnL)
		totals.TotalInflationAdjustedPnL = totals.TotalInflationAdjustedPnL.Add(row.InflationAdjustedPnL)

		if !row.GrantDate.IsZero() && (earliest.IsZero() || row.GrantDate.Before(earliest)) {
			earliest = row.GrantDate
		}

		year := row.GrantDate.Format("2006")
		perYear.add(year, row.Quantity)
		yearUnrealized.add(year, row.UnrealizedPnL)
		yearPostTax.add(year, row.PostTaxPnL)
		yearInflation.add(year, row.InflationAdjustedPnL)

		if row.SaleDate != nil {
			timeline.add(row.SaleDate.Format("2006-01"), row.RealizedPnL)
		}
	}
	totals.TotalPnL = totals.TotalRealizedPnL.Add(totals.TotalUnrealizedPnL)

	if !earliest.IsZero() {
		totals.PortfolioYears = float64(utils.DaysBetween(earliest, a.asOf)) / daysPerYear
	}
	totals.PortfolioCAGR = CAGR(totals.TotalCurrentValue, totals.TotalCostBasis, totals.PortfolioYears)

	charts := models.ChartSeries{
		ESOPsPerYear:                   make([]models.YearQuantity, 0, len(perYear.keys)),
		RealizedPnLTimeline:            make([]models.MonthAmount, 0, len(timeline.keys)),
		UnrealizedVsPostTaxVsInflation: make([]models.YearPnLTriple, 0, len(yearUnrealized.keys)),
	}
	for _, year := range perYear.keys {
		charts.ESOPsPerYear = append(charts.ESOPsPerYear, models.YearQuantity{Year: year, Quantity: perYear.sums[year]})
	}
	for _, month := range timeline.keys {
		charts.RealizedPnLTimeline = append(charts.RealizedPnLTimeline, models.MonthAmount{Month: month, Amount: timeline.sums[month]})
	}
	for _, year := range yearUnrealized.keys {
		charts.UnrealizedVsPostTaxVsInflation = append(charts.UnrealizedVsPostTaxVsInflation, models.YearPnLTriple{
			Year:              year,
			Unrealized:        yearUnrealized.sums[year],
			PostTax:           yearPostTax.sums[year],
			InflationAdjusted: yearInflation.sums[year],
		})
	}

	return totals, charts
}

// orderedSums accumulates decimals per key, remembering insertion order.
type orderedSums struct {
	keys []string
	sums map[string]decimal.Decimal
}

func newOrderedSums() *orderedSums {
	return &orderedSums{sums: make(map[string]decimal.Decimal)}
}

func (o *orderedSums) add(key string, v decimal.Decimal) {
	cur, ok := o.sums[key]
	if !ok {
		o.keys = append(o.keys, key)
		cur = decimal.Zero
	}
	o.sums[key] = cur.Add(v)
}
