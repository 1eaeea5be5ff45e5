package processors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/esopfolio/backend/src/models"
)

func validRow() models.RawRecord {
	return models.RawRecord{
		Ticker:        "MSFT",
		Company:       "Microsoft",
		GrantDate:     "2021-03-15",
		Quantity:      "500",
		Vested:        "500",
		ExercisePrice: "220",
		CurrentPrice:  "415.75",
		Status:        "Vested",
	}
}

func TestValidate_EmptyBatch(t *testing.T) {
	result := NewCSVValidator().Validate(nil)

	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"No records found"}, result.Errors)
	assert.Equal(t, 0, result.Summary.TotalRows)
}

func TestValidate_ValidBatch(t *testing.T) {
	result := NewCSVValidator().Validate([]models.RawRecord{validRow()})

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Summary.ValidRows)
	assert.Equal(t, 1, result.Summary.StatusCounts["Vested"])
}

func TestValidate_RowErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.RawRecord)
		wantErr string
	}{
		{"missing ticker", func(r *models.RawRecord) { r.Ticker = " " }, "Row 1: Missing required field 'ticker'"},
		{"bad status", func(r *models.RawRecord) { r.Status = "Pending" }, "Row 1: Invalid status 'Pending'"},
		{"negative quantity", func(r *models.RawRecord) { r.Quantity = "-5" }, "Row 1: Field 'quantity' must be a non-negative number"},
		{"non numeric price", func(r *models.RawRecord) { r.CurrentPrice = "abc" }, "Row 1: Field 'currentPrice' must be a non-negative number"},
		{"vested above quantity", func(r *models.RawRecord) { r.Vested = "600" }, "Row 1: Vested quantity (600) cannot exceed total quantity (500)"},
		{"bad grant date", func(r *models.RawRecord) { r.GrantDate = "15th March" }, "Row 1: Invalid date format for 'grantDate'"},
		{"exercised without exercise price", func(r *models.RawRecord) {
			r.Status = "Exercised"
			r.ExercisePrice = ""
		}, "Row 1: Field 'exercisePrice' is required when status is 'Exercised'"},
		{"sold without sale price", func(r *models.RawRecord) { r.Status = "Sold" }, "Row 1: Field 'salePrice' is required when status is 'Sold'"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row := validRow()
			tc.mutate(&row)

			result := NewCSVValidator().Validate([]models.RawRecord{row})

			assert.False(t, result.IsValid)
			require.NotEmpty(t, result.Errors)
			found := false
			for _, e := range result.Errors {
				if strings.HasPrefix(e, tc.wantErr) {
					found = true
				}
			}
			assert.True(t, found, "expected an error starting with %q, got %v", tc.wantErr, result.Errors)
			assert.Equal(t, 1, result.Summary.ErrorRows)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	row := validRow()
	row.CurrentPrice = ""
	row.ExercisePrice = ""
	row.StrikePrice = "200"
	row.SalePrice = "10"

	result := NewCSVValidator().Validate([]models.RawRecord{row})

	assert.True(t, result.IsValid)
	assert.Len(t, result.Warnings, 3)
	assert.Contains(t, result.Warnings[0], "live price lookup will be attempted for 'MSFT'")
	assert.Contains(t, result.Warnings[1], "'strikePrice' (200) will be used as fallback")
	assert.Contains(t, result.Warnings[2], "will be ignored")
	assert.Equal(t, 3, result.Summary.WarningCount)
}

func TestValidate_VestedStatusWarnings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(r *models.RawRecord)
		wantWarn string
	}{
		{"unvested with vested units", func(r *models.RawRecord) {
			r.Status = "Unvested"
			r.Vested = "100"
		}, "Row 1: Status is 'Unvested' but vested is 100"},
		{"vested with nothing vested", func(r *models.RawRecord) { r.Vested = "0" }, "Row 1: Status is 'Vested' but vested is 0"},
		{"exercised with nothing vested", func(r *models.RawRecord) {
			r.Status = "Exercised"
			r.Vested = "0"
		}, "Row 1: Status is 'Exercised' but vested is 0"},
		{"sold with nothing vested", func(r *models.RawRecord) {
			r.Status = "Sold"
			r.Vested = "0"
			r.SalePrice = "430"
			r.SaleDate = "2024-02-01"
		}, "Row 1: Status is 'Sold' but vested is 0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row := validRow()
			tc.mutate(&row)

			result := NewCSVValidator().Validate([]models.RawRecord{row})

			assert.True(t, result.IsValid, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Contains(t, result.Warnings, tc.wantWarn)
			assert.Equal(t, 1, result.Summary.ValidRows)
		})
	}
}

func TestValidate_OneOverVestedRowRejectsBatch(t *testing.T) {
	over := validRow()
	over.Ticker = "GOOG"
	over.Vested = "501"

	result := NewCSVValidator().Validate([]models.RawRecord{validRow(), validRow(), over, validRow()})

	assert.False(t, result.IsValid)
	assert.Equal(t, 4, result.Summary.TotalRows)
	assert.Equal(t, 3, result.Summary.ValidRows)
	assert.Equal(t, 1, result.Summary.ErrorRows)
	assert.Equal(t, []string{"Row 3: Vested quantity (501) cannot exceed total quantity (500)"}, result.Errors)
}

func TestValidate_CountsEveryRow(t *testing.T) {
	bad := validRow()
	bad.Status = ""
	result := NewCSVValidator().Validate([]models.RawRecord{validRow(), bad, validRow()})

	assert.False(t, result.IsValid)
	assert.Equal(t, 3, result.Summary.TotalRows)
	assert.Equal(t, 2, result.Summary.ValidRows)
	assert.Equal(t, 1, result.Summary.ErrorRows)
	assert.Equal(t, 1, result.Summary.MissingFieldCounts["status"])
	assert.Contains(t, result.Errors, "Row 2: Missing required field 'status'")
}

func TestValidateHeader(t *testing.T) {
	errs, warnings := NewCSVValidator().ValidateHeader([]string{"Ticker", "company", "grant_date", "Quantity", "vested", "Extra"})

	assert.Equal(t, []string{"Missing required column 'status'"}, errs)
	assert.Contains(t, warnings, "Unrecognized column 'Extra' will be ignored")
	assert.Contains(t, warnings, "Column 'fmv' not present")
}

func TestCanonicalFieldName(t *testing.T) {
	tests := map[string]string{
		"\ufeffticker":   "ticker",
		"Grant Date":     "grantDate",
		"exercise_price": "exercisePrice",
		"FMV":            "fmv",
		"grantType":      "type",
		"sale-date":      "saleDate",
	}
	for in, want := range tests {
		got, ok := CanonicalFieldName(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := CanonicalFieldName("broker")
	assert.False(t, ok)
}
