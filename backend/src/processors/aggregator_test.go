package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/esopfolio/backend/src/models"
)

func TestAggregate_WorkedExample(t *testing.T) {
	rows := calculateAll(t, workedExample(), models.RegionUS, 0)

	totals, charts := NewPortfolioAggregator(testAsOf).Aggregate(rows)

	assert.Equal(t, "740000", totals.TotalCostBasis.String())
	assert.Equal(t, "263435", totals.TotalCurrentValue.String())
	assert.Equal(t, "-476565", totals.TotalUnrealizedPnL.String())
	assert.True(t, totals.TotalRealizedPnL.IsZero())
	assert.True(t, totals.TotalTax.IsZero())
	assert.Equal(t, "-476565", totals.TotalPnL.String())
	assert.Equal(t, 4, totals.ActiveRows)
	assert.Equal(t, 0, totals.InactiveRows)
	require.NotNil(t, totals.PortfolioCAGR)
	assert.Less(t, *totals.PortfolioCAGR, 0.0)

	require.Len(t, charts.ESOPsPerYear, 4)
	assert.Equal(t, "2022", charts.ESOPsPerYear[0].Year)
	assert.Equal(t, "1000", charts.ESOPsPerYear[0].Quantity.String())
	assert.Equal(t, "2020", charts.ESOPsPerYear[3].Year)
	assert.Empty(t, charts.RealizedPnLTimeline)
}

func TestAggregate_WithSoldRow(t *testing.T) {
	recs := append(workedExample(), soldTSLA("2019-06-01", "2023-06-01"))
	rows := calculateAll(t, recs, models.RegionUS, 0)

	totals, charts := NewPortfolioAggregator(testAsOf).Aggregate(rows)

	assert.Equal(t, "7000", totals.TotalRealizedPnL.String())
	assert.Equal(t, "-469565", totals.TotalPnL.String())
	assert.True(t, totals.TotalTax.Equal(dec("1050")))
	assert.True(t, totals.TotalPostTaxPnL.Equal(dec("-470615")))
	require.Len(t, charts.RealizedPnLTimeline, 1)
	assert.Equal(t, "2023-06", charts.RealizedPnLTimeline[0].Month)
	assert.Equal(t, "7000", charts.RealizedPnLTimeline[0].Amount.String())
}

func TestAggregate_InactiveRowsAreCountedOnly(t *testing.T) {
	recs := workedExample()
	recs[1].Status = models.StatusExpired
	rows := calculateAll(t, recs, models.RegionUS, 0)

	totals, charts := NewPortfolioAggregator(testAsOf).Aggregate(rows)

	assert.Equal(t, 3, totals.ActiveRows)
	assert.Equal(t, 1, totals.InactiveRows)
	assert.Equal(t, "630000", totals.TotalCostBasis.String())
	for _, bar := range charts.ESOPsPerYear {
		assert.NotEqual(t, "2021", bar.Year)
	}
}

func TestAggregate_AllUnvested(t *testing.T) {
	recs := workedExample()
	rows := calculateAll(t, []models.NormalizedRecord{recs[0], recs[2]}, models.RegionUS, 0)

	totals, _ := NewPortfolioAggregator(testAsOf).Aggregate(rows)

	assert.True(t, totals.TotalCostBasis.IsZero())
	assert.True(t, totals.TotalPnL.IsZero())
	assert.Nil(t, totals.PortfolioCAGR)
	assert.Greater(t, totals.PortfolioYears, 0.0)
}

func TestAggregate_Empty(t *testing.T) {
	totals, charts := NewPortfolioAggregator(testAsOf).Aggregate(nil)

	assert.True(t, totals.TotalPnL.IsZero())
	assert.Nil(t, totals.PortfolioCAGR)
	assert.Zero(t, totals.PortfolioYears)
	assert.NotNil(t, charts.ESOPsPerYear)
	assert.Empty(t, charts.UnrealizedVsPostTaxVsInflation)
}

func TestAggregate_RowSumsMatchTotalsAndIsIdempotent(t *testing.T) {
	recs := append(workedExample(), soldTSLA("2022-01-01", "2022-08-01"))
	recs[0].Status = models.StatusLapsed
	rows := calculateAll(t, recs, models.RegionIndia, 0.06)
	agg := NewPortfolioAggregator(testAsOf)

	first, firstCharts := agg.Aggregate(rows)
	second, secondCharts := agg.Aggregate(rows)

	sum := dec("0")
	for _, r := range rows {
		if r.IsActive {
			sum = sum.Add(r.UnrealizedPnL)
		}
	}
	assert.True(t, sum.Equal(first.TotalUnrealizedPnL))
	assert.Equal(t, first, second)
	assert.Equal(t, firstCharts, secondCharts)
}
