package processors

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/utils"
)

const DefaultGrantType = "ESOP"

// recordNormalizerImpl implements the RecordNormalizer interface.
type recordNormalizerImpl struct{}

// NewRecordNormalizer creates a new instance of RecordNormalizer.
func NewRecordNormalizer() RecordNormalizer {
	return &recordNormalizerImpl{}
}

// Normalize coerces a validated raw record into its canonical form. It never
// fails: the validator has already guaranteed required fields exist and
// parse, so anything left unparseable degrades to its zero value.
func (n *recordNormalizerImpl) Normalize(raw models.RawRecord) models.NormalizedRecord {
	status, _ := models.ParseStatus(raw.Status)
	grantDate, _ := utils.ParseDate(raw.GrantDate)

	rec := models.NormalizedRecord{
		Ticker:       strings.ToUpper(strings.TrimSpace(raw.Ticker)),
		Company:      strings.TrimSpace(raw.Company),
		GrantDate:    grantDate,
		Quantity:     amountOrZero(raw.Quantity),
		Vested:       amountOrZero(raw.Vested),
		StrikePrice:  utils.ParseOptionalAmount(raw.StrikePrice),
		CurrentPrice: utils.ParseOptionalAmount(raw.CurrentPrice),
		FMV:          utils.ParseOptionalAmount(raw.FMV),
		Status:       status,
		Type:         strings.TrimSpace(raw.Type),
		Notes:        strings.TrimSpace(raw.Notes),
	}

	// exercisePrice <- strikePrice <- 0
	if ex := utils.ParseOptionalAmount(raw.ExercisePrice); ex.Valid {
		rec.ExercisePrice = ex.Decimal
	} else if rec.StrikePrice.Valid {
		rec.ExercisePrice = rec.StrikePrice.Decimal
	} else {
		rec.ExercisePrice = decimal.Zero
	}

	rec.VestingStartDate = grantDate
	if t, ok := optionalDate(raw.VestingStartDate); ok {
		rec.VestingStartDate = *t
	}
	if t, ok := optionalDate(raw.VestingEndDate); ok {
		rec.VestingEndDate = t
	}

	if rec.Type == "" {
		rec.Type = DefaultGrantType
	}

	if rec.Vested.GreaterThan(rec.Quantity) {
		rec.Vested = rec.Quantity
	}

	// Sale fields only exist on Sold rows.
	if status == models.StatusSold {
		rec.SalePrice = utils.ParseOptionalAmount(raw.SalePrice)
		if t, ok := optionalDate(raw.SaleDate); ok {
			rec.SaleDate = t
		}
	}

	return rec
}

// NormalizeAll normalizes a batch, preserving order.
func (n *recordNormalizerImpl) NormalizeAll(raws []models.RawRecord) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, len(raws))
	for i, raw := range raws {
		out[i] = n.Normalize(raw)
	}
	return out
}

func amountOrZero(s string) decimal.Decimal {
	d, err := utils.ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func optionalDate(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := utils.ParseDate(s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
