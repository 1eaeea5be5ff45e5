package processors

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/utils"
)

const daysPerYear = 365.0

// ComputationError marks a row the calculator could not process even though
// it passed validation. It indicates a defect, not bad user input.
type ComputationError struct {
	Index  int
	Ticker string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation error on row %d (%s): %s", e.Index+1, e.Ticker, e.Reason)
}

// pnlCalculatorImpl implements the PnLCalculator interface using the unified
// investment-based model: PnL = (price_used - exercisePrice) * units.
type pnlCalculatorImpl struct {
	tax           TaxCalculator
	inflationRate float64
}

// NewPnLCalculator creates a calculator that taxes realized legs with tax and
// deflates post-tax PnL by inflationRate per year.
func NewPnLCalculator(tax TaxCalculator, inflationRate float64) PnLCalculator {
	return &pnlCalculatorImpl{tax: tax, inflationRate: inflationRate}
}

// Calculate derives every figure of one row. Rows that cannot be valued are
// returned inactive with zero figures so they never leak into totals.
func (c *pnlCalculatorImpl) Calculate(row models.PricedRecord, region models.Region, asOf time.Time) models.RowCalculation {
	rec := row.Record
	calc := models.RowCalculation{
		Index:         row.Index,
		Ticker:        rec.Ticker,
		Company:       rec.Company,
		Status:        rec.Status,
		GrantDate:     rec.GrantDate,
		Quantity:      rec.Quantity,
		Vested:        rec.Vested,
		ExercisePrice: rec.ExercisePrice,
		IsActive:      true,
	}
	zeroFigures(&calc)

	end := asOf
	if rec.Status == models.StatusSold && rec.SaleDate != nil {
		sd := *rec.SaleDate
		calc.SaleDate = &sd
		end = sd
	}
	calc.HoldingPeriodDays = utils.DaysBetween(rec.GrantDate, end)
	calc.HoldingPeriodYears = float64(calc.HoldingPeriodDays) / daysPerYear

	var err error
	switch rec.Status {
	case models.StatusUnvested:
		c.unvested(&calc, row)
	case models.StatusVested, models.StatusExercised:
		c.held(&calc, row)
	case models.StatusSold:
		err = c.sold(&calc, row, region)
	case models.StatusExpired, models.StatusLapsed:
		c.lapsed(&calc)
	default:
		err = &ComputationError{Index: row.Index, Ticker: rec.Ticker, Reason: fmt.Sprintf("unhandled status %q", rec.Status)}
	}
	if err != nil {
		logger.L.Error("Row excluded after computation error", "row", row.Index+1, "ticker", rec.Ticker, "error", err)
		zeroFigures(&calc)
		calc.IsActive = false
		calc.Error = err.Error()
		return calc
	}
	if !calc.IsActive {
		return calc
	}

	calc.PostTaxPnL = calc.RealizedPnL.Sub(calc.Tax).Add(calc.UnrealizedPnL)
	calc.InflationAdjustedPnL = Deflate(calc.PostTaxPnL, c.inflationRate, calc.HoldingPeriodYears)
	calc.CAGR = CAGR(calc.CurrentValue, calc.CostBasis, calc.HoldingPeriodYears)
	return calc
}

// Unvested shares never contribute; a known price is still reported.
func (c *pnlCalculatorImpl) unvested(calc *models.RowCalculation, row models.PricedRecord) {
	calc.PriceSource = row.Price
}

// Vested and exercised-but-unsold shares are held positions valued at the
// market price. Underwater positions keep their negative PnL.
func (c *pnlCalculatorImpl) held(calc *models.RowCalculation, row models.PricedRecord) {
	if row.Price == nil {
		calc.IsActive = false
		calc.Error = row.PriceError
		if calc.Error == "" {
			calc.Error = fmt.Sprintf("no price available for %s", row.Record.Ticker)
		}
		return
	}
	rec := row.Record
	units := rec.Vested
	calc.PriceSource = row.Price
	calc.Units = units
	calc.CostBasis = rec.ExercisePrice.Mul(units)
	calc.CurrentValue = row.Price.Value.Mul(units)
	calc.UnrealizedPnL = row.Price.Value.Sub(rec.ExercisePrice).Mul(units)
}

// Sold rows realize the whole granted quantity at the sale price.
func (c *pnlCalculatorImpl) sold(calc *models.RowCalculation, row models.PricedRecord, region models.Region) error {
	rec := row.Record
	if !rec.SalePrice.Valid {
		return &ComputationError{Index: row.Index, Ticker: rec.Ticker, Reason: "sold row has no sale price"}
	}
	sale := rec.SalePrice.Decimal
	units := rec.Quantity
	calc.PriceSource = &models.PriceSource{Kind: models.PriceSourceCSV, Value: sale}
	calc.Units = units
	calc.CostBasis = rec.ExercisePrice.Mul(units)
	calc.CurrentValue = sale.Mul(units)
	calc.RealizedPnL = sale.Sub(rec.ExercisePrice).Mul(units)

	fmv := rec.ExercisePrice
	if rec.FMV.Valid {
		fmv = rec.FMV.Decimal
	}
	calc.TaxDetail = c.tax.Tax(TaxInput{
		Quantity:      units,
		ExercisePrice: rec.ExercisePrice,
		FMV:           fmv,
		SalePrice:     sale,
		HoldingDays:   calc.HoldingPeriodDays,
	}, region)
	calc.Tax = calc.TaxDetail.Tax
	return nil
}

// Expired and lapsed grants are excluded from every denominator.
func (c *pnlCalculatorImpl) lapsed(calc *models.RowCalculation) {
	calc.IsActive = false
}

func zeroFigures(calc *models.RowCalculation) {
	calc.Units = decimal.Zero
	calc.CostBasis = decimal.Zero
	calc.CurrentValue = decimal.Zero
	calc.UnrealizedPnL = decimal.Zero
	calc.RealizedPnL = decimal.Zero
	calc.TaxDetail = models.TaxBreakdown{BargainElement: decimal.Zero, ShortTermGain: decimal.Zero, LongTermGain: decimal.Zero, Tax: decimal.Zero}
	calc.Tax = decimal.Zero
	calc.PostTaxPnL = decimal.Zero
	calc.InflationAdjustedPnL = decimal.Zero
	calc.CAGR = nil
}

// CAGR returns (end/start)^(1/years) - 1, or nil when it is undefined:
// no positive start value, no elapsed time, or a negative end value.
func CAGR(end, start decimal.Decimal, years float64) *float64 {
	if !start.IsPositive() || years <= 0 || end.IsNegative() {
		return nil
	}
	ratio, _ := end.Div(start).Float64()
	v := math.Pow(ratio, 1/years) - 1
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Deflate discounts amount by rate compounded over years. The result is
// always rounded to cents.
func Deflate(amount decimal.Decimal, rate, years float64) decimal.Decimal {
	if rate == 0 || years <= 0 {
		return amount.Round(2)
	}
	factor := math.Pow(1+rate, years)
	return amount.Div(decimal.NewFromFloat(factor)).Round(2)
}
