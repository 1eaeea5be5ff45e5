package processors

import (
	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/utils"
)

// TaxRegime holds the flat rates of one jurisdiction. These are simplified
// approximations, not bracket-aware tax law.
type TaxRegime struct {
	BargainRate       float64 `toml:"bargain_rate"`
	ShortTermRate     float64 `toml:"short_term_rate"`
	LongTermRate      float64 `toml:"long_term_rate"`
	LongTermExemption float64 `toml:"long_term_exemption"`
	LongTermDays      int     `toml:"long_term_days"`
}

// TaxRules maps each supported region to its regime.
type TaxRules struct {
	India TaxRegime `toml:"india"`
	US    TaxRegime `toml:"us"`
}

// DefaultTaxRules returns the built-in regimes.
func DefaultTaxRules() TaxRules {
	return TaxRules{
		India: TaxRegime{BargainRate: 0.30, ShortTermRate: 0.15, LongTermRate: 0.10, LongTermExemption: 100000, LongTermDays: 365},
		US:    TaxRegime{BargainRate: 0.24, ShortTermRate: 0.24, LongTermRate: 0.15, LongTermExemption: 0, LongTermDays: 365},
	}
}

// Regime returns the regime for a region; anything but India is taxed as US.
func (r TaxRules) Regime(region models.Region) TaxRegime {
	if region == models.RegionIndia {
		return r.India
	}
	return r.US
}

// TaxInput describes one realized sale. FMV is the fair market value at
// exercise; callers pass the exercise price when it is unknown.
type TaxInput struct {
	Quantity      decimal.Decimal
	ExercisePrice decimal.Decimal
	FMV           decimal.Decimal
	SalePrice     decimal.Decimal
	HoldingDays   int
}

// taxCalculatorImpl implements the TaxCalculator interface.
type taxCalculatorImpl struct {
	rules TaxRules
}

// NewTaxCalculator creates a TaxCalculator for the given rules.
func NewTaxCalculator(rules TaxRules) TaxCalculator {
	return &taxCalculatorImpl{rules: rules}
}

func (c *taxCalculatorImpl) Tax(in TaxInput, region models.Region) models.TaxBreakdown {
	return CalculateTax(in, c.rules.Regime(region))
}

// CalculateTax splits a sale into bargain element, short-term and long-term
// gain and applies the regime's flat rates.
//
//	bargain   = max(0, (fmv - exercise) * q)
//	shortTerm = max(0, (sale - fmv) * q) when held under LongTermDays, else 0
//	longTerm  = max(0, (sale - exercise) * q - bargain - shortTerm)
//	tax       = bargainRate*bargain + shortRate*shortTerm + longRate*max(0, longTerm - exemption)
func CalculateTax(in TaxInput, regime TaxRegime) models.TaxBreakdown {
	q := in.Quantity
	bargain := utils.MaxDecimal(decimal.Zero, in.FMV.Sub(in.ExercisePrice).Mul(q))

	shortTerm := decimal.Zero
	if in.HoldingDays < regime.LongTermDays {
		shortTerm = utils.MaxDecimal(decimal.Zero, in.SalePrice.Sub(in.FMV).Mul(q))
	}

	totalGain := in.SalePrice.Sub(in.ExercisePrice).Mul(q)
	longTerm := utils.MaxDecimal(decimal.Zero, totalGain.Sub(bargain).Sub(shortTerm))
	taxableLongTerm := utils.MaxDecimal(decimal.Zero, longTerm.Sub(decimal.NewFromFloat(regime.LongTermExemption)))

	tax := decimal.NewFromFloat(regime.BargainRate).Mul(bargain).
		Add(decimal.NewFromFloat(regime.ShortTermRate).Mul(shortTerm)).
		Add(decimal.NewFromFloat(regime.LongTermRate).Mul(taxableLongTerm))

	return models.TaxBreakdown{
		BargainElement: bargain,
		ShortTermGain:  shortTerm,
		LongTermGain:   longTerm,
		Tax:            tax,
	}
}
