package processors

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/utils"
)

// Upload column names, in the canonical header order.
var (
	RecognizedFields = []string{
		"ticker", "company", "grantDate", "vestingStartDate", "vestingEndDate",
		"quantity", "vested", "strikePrice", "exercisePrice", "currentPrice", "fmv",
		"status", "type", "salePrice", "saleDate", "notes",
	}
	RequiredFields = []string{"ticker", "company", "grantDate", "quantity", "vested", "status"}
	NumericFields  = []string{"quantity", "vested", "strikePrice", "exercisePrice", "currentPrice", "fmv", "salePrice"}
	optionalDates  = []string{"vestingStartDate", "vestingEndDate", "saleDate"}
)

// csvValidatorImpl implements the CSVValidator interface.
type csvValidatorImpl struct{}

// NewCSVValidator creates a new instance of CSVValidator.
func NewCSVValidator() CSVValidator {
	return &csvValidatorImpl{}
}

// ValidateHeader compares an upload header against the recognized columns.
// Missing required columns are errors; missing optional and unknown columns
// are reported as warnings.
func (v *csvValidatorImpl) ValidateHeader(header []string) ([]string, []string) {
	var errs, warnings []string
	present := make(map[string]bool, len(header))
	for _, col := range header {
		name, ok := CanonicalFieldName(col)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("Unrecognized column '%s' will be ignored", strings.TrimSpace(col)))
			continue
		}
		present[name] = true
	}
	for _, f := range RecognizedFields {
		if present[f] {
			continue
		}
		if isRequired(f) {
			errs = append(errs, fmt.Sprintf("Missing required column '%s'", f))
		} else {
			warnings = append(warnings, fmt.Sprintf("Column '%s' not present", f))
		}
	}
	return errs, warnings
}

// Validate checks every record and returns all problems found. The batch is
// valid only when no record has an error.
func (v *csvValidatorImpl) Validate(records []models.RawRecord) models.ValidationResult {
	result := models.ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
		Summary: models.ValidationSummary{
			TotalRows:          len(records),
			StatusCounts:       make(map[string]int),
			MissingFieldCounts: make(map[string]int),
		},
	}

	if len(records) == 0 {
		result.Errors = append(result.Errors, "No records found")
		return result
	}

	for i, raw := range records {
		before := len(result.Errors)
		v.validateRow(i+1, raw, &result)
		if len(result.Errors) > before {
			result.Summary.ErrorRows++
		} else {
			result.Summary.ValidRows++
		}
	}

	result.Summary.WarningCount = len(result.Warnings)
	result.IsValid = len(result.Errors) == 0
	return result
}

func (v *csvValidatorImpl) validateRow(row int, raw models.RawRecord, result *models.ValidationResult) {
	errorf := func(format string, args ...any) {
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: ", row)+fmt.Sprintf(format, args...))
	}
	warnf := func(format string, args ...any) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Row %d: ", row)+fmt.Sprintf(format, args...))
	}

	for _, f := range RecognizedFields {
		if isBlank(raw.Field(f)) {
			result.Summary.MissingFieldCounts[f]++
		}
	}

	for _, f := range RequiredFields {
		if isBlank(raw.Field(f)) {
			errorf("Missing required field '%s'", f)
		}
	}

	status, statusOK := models.ParseStatus(raw.Status)
	if !isBlank(raw.Status) {
		if statusOK {
			result.Summary.StatusCounts[status.String()]++
		} else {
			result.Summary.StatusCounts["Invalid"]++
			errorf("Invalid status '%s'. Must be one of: %s", strings.TrimSpace(raw.Status), models.StatusNames())
		}
	}

	nums := make(map[string]decimal.Decimal, len(NumericFields))
	for _, f := range NumericFields {
		value := raw.Field(f)
		if isBlank(value) {
			continue
		}
		d, err := utils.ParseAmount(value)
		if err != nil || d.IsNegative() {
			errorf("Field '%s' must be a non-negative number (got '%s')", f, strings.TrimSpace(value))
			continue
		}
		nums[f] = d
	}

	if statusOK && (status == models.StatusExercised || status == models.StatusSold) && isBlank(raw.ExercisePrice) {
		errorf("Field 'exercisePrice' is required when status is '%s'", status)
	}
	if statusOK && status == models.StatusSold && isBlank(raw.SalePrice) {
		errorf("Field 'salePrice' is required when status is '%s'", status)
	}

	quantity, hasQty := nums["quantity"]
	vested, hasVested := nums["vested"]
	if hasQty && hasVested && vested.GreaterThan(quantity) {
		errorf("Vested quantity (%s) cannot exceed total quantity (%s)", vested, quantity)
	}
	if statusOK && hasVested {
		switch status {
		case models.StatusUnvested:
			if !vested.IsZero() {
				warnf("Status is 'Unvested' but vested is %s; unvested rows never contribute vested units", vested)
			}
		case models.StatusVested, models.StatusExercised, models.StatusSold:
			if vested.IsZero() {
				warnf("Status is '%s' but vested is 0", status)
			}
		}
	}

	if !isBlank(raw.GrantDate) {
		if _, err := utils.ParseDate(raw.GrantDate); err != nil {
			errorf("Invalid date format for 'grantDate': '%s'", strings.TrimSpace(raw.GrantDate))
		}
	}
	for _, f := range optionalDates {
		value := raw.Field(f)
		if isBlank(value) {
			continue
		}
		if _, err := utils.ParseDate(value); err != nil {
			errorf("Invalid date format for '%s': '%s'", f, strings.TrimSpace(value))
		}
	}

	if isBlank(raw.CurrentPrice) && isBlank(raw.FMV) {
		warnf("Missing both 'currentPrice' and 'fmv'; a live price lookup will be attempted for '%s'", strings.ToUpper(strings.TrimSpace(raw.Ticker)))
	}
	exerciseRequired := statusOK && (status == models.StatusExercised || status == models.StatusSold)
	if isBlank(raw.ExercisePrice) && !isBlank(raw.StrikePrice) && !exerciseRequired {
		warnf("Missing 'exercisePrice'; 'strikePrice' (%s) will be used as fallback", strings.TrimSpace(raw.StrikePrice))
	}

	if statusOK && status != models.StatusSold {
		if !isBlank(raw.SalePrice) || !isBlank(raw.SaleDate) {
			warnf("'salePrice'/'saleDate' given for a '%s' row and will be ignored", status)
		}
	}
	if statusOK && status == models.StatusSold && isBlank(raw.SaleDate) {
		warnf("Sold row has no 'saleDate'; it is left out of the realized PnL timeline")
	}
}

// CanonicalFieldName maps an upload column header to its recognized field
// name, ignoring case, spaces and underscores. "grantType" is accepted for "type".
func CanonicalFieldName(col string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
	key = strings.NewReplacer("_", "", " ", "", "-", "").Replace(key)
	if key == "granttype" {
		return "type", true
	}
	for _, f := range RecognizedFields {
		if strings.ToLower(f) == key {
			return f, true
		}
	}
	return "", false
}

func isRequired(field string) bool {
	for _, f := range RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
