// backend/src/services/export_service.go
package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/parsers"
	"github.com/username/esopfolio/backend/src/security/validation"
)

// exportColumns is the CSV layout of one RowCalculation.
var exportColumns = []string{
	"index", "ticker", "company", "status", "grantDate", "saleDate",
	"quantity", "vested", "units", "exercisePrice",
	"priceSourceKind", "priceSourceValue", "priceQuotedAt",
	"costBasis", "currentValue", "unrealizedPnL", "realizedPnL",
	"bargainElement", "shortTermGain", "longTermGain", "tax",
	"postTaxPnL", "inflationAdjustedPnL",
	"holdingPeriodDays", "holdingPeriodYears", "cagr", "isActive", "error",
}

type exportFile struct {
	ExportTime time.Time               `json:"exportTime"`
	RowCount   int                     `json:"rowCount"`
	Rows       []models.RowCalculation `json:"rows"`
}

type exportServiceImpl struct{}

func NewExportService() ExportService {
	return &exportServiceImpl{}
}

func (e *exportServiceImpl) ExportRows(w io.Writer, rows []models.RowCalculation, format string) error {
	switch format {
	case parsers.FormatCSV:
		return exportToCSV(w, rows)
	case parsers.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(exportFile{ExportTime: time.Now().UTC(), RowCount: len(rows), Rows: rows}); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported export format: %s", ErrUnknownFormat, format)
	}
}

func (e *exportServiceImpl) ImportRows(r io.Reader, format string) ([]models.RowCalculation, error) {
	switch format {
	case parsers.FormatCSV:
		return importFromCSV(r)
	case parsers.FormatJSON:
		var file exportFile
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
		}
		if file.Rows == nil {
			file.Rows = []models.RowCalculation{}
		}
		return file.Rows, nil
	default:
		return nil, fmt.Errorf("%w: unsupported export format: %s", ErrUnknownFormat, format)
	}
}

func exportToCSV(w io.Writer, rows []models.RowCalculation) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportColumns); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(rowToCSV(row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row.Index+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// rowToCSV renders a row; free-text cells are escaped against formula injection.
func rowToCSV(r models.RowCalculation) []string {
	text := validation.SanitizeForFormulaInjection
	kind, value, quotedAt := "", "", ""
	if r.PriceSource != nil {
		kind = string(r.PriceSource.Kind)
		value = r.PriceSource.Value.String()
		quotedAt = formatTime(r.PriceSource.QuotedAt)
	}
	cagr := ""
	if r.CAGR != nil {
		cagr = strconv.FormatFloat(*r.CAGR, 'g', -1, 64)
	}
	return []string{
		strconv.Itoa(r.Index), text(r.Ticker), text(r.Company), r.Status.String(),
		r.GrantDate.Format(time.RFC3339Nano), formatTime(r.SaleDate),
		r.Quantity.String(), r.Vested.String(), r.Units.String(), r.ExercisePrice.String(),
		kind, value, quotedAt,
		r.CostBasis.String(), r.CurrentValue.String(), r.UnrealizedPnL.String(), r.RealizedPnL.String(),
		r.TaxDetail.BargainElement.String(), r.TaxDetail.ShortTermGain.String(), r.TaxDetail.LongTermGain.String(), r.Tax.String(),
		r.PostTaxPnL.String(), r.InflationAdjustedPnL.String(),
		strconv.Itoa(r.HoldingPeriodDays), strconv.FormatFloat(r.HoldingPeriodYears, 'g', -1, 64), cagr,
		strconv.FormatBool(r.IsActive), text(r.Error),
	}
}

func importFromCSV(r io.Reader) ([]models.RowCalculation, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrParsingFailed, err)
	}
	if len(header) != len(exportColumns) {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", ErrParsingFailed, len(exportColumns), len(header))
	}

	rows := []models.RowCalculation{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrParsingFailed, line, err)
		}
		row, err := rowFromCSV(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrParsingFailed, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cellReader decodes cells in exportColumns order, keeping the first error.
type cellReader struct {
	cells []string
	pos   int
	err   error
}

func (c *cellReader) next() string {
	s := c.cells[c.pos]
	c.pos++
	return s
}

func (c *cellReader) text() string {
	return validation.UnsanitizeFormulaInjection(c.next())
}

func (c *cellReader) dec() decimal.Decimal {
	s := c.next()
	if c.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		c.err = fmt.Errorf("column '%s': %w", exportColumns[c.pos-1], err)
	}
	return d
}

func (c *cellReader) integer() int {
	s := c.next()
	n, err := strconv.Atoi(s)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("column '%s': %w", exportColumns[c.pos-1], err)
	}
	return n
}

func (c *cellReader) float() float64 {
	s := c.next()
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("column '%s': %w", exportColumns[c.pos-1], err)
	}
	return f
}

func (c *cellReader) timestamp() *time.Time {
	s := c.next()
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if c.err == nil {
			c.err = fmt.Errorf("column '%s': %w", exportColumns[c.pos-1], err)
		}
		return nil
	}
	return &t
}

func rowFromCSV(record []string) (models.RowCalculation, error) {
	if len(record) != len(exportColumns) {
		return models.RowCalculation{}, fmt.Errorf("expected %d cells, got %d", len(exportColumns), len(record))
	}
	c := &cellReader{cells: record}
	var r models.RowCalculation

	r.Index = c.integer()
	r.Ticker = c.text()
	r.Company = c.text()
	status, ok := models.ParseStatus(c.next())
	if !ok && c.err == nil {
		c.err = fmt.Errorf("column 'status': unknown status %q", record[3])
	}
	r.Status = status
	if gd := c.timestamp(); gd != nil {
		r.GrantDate = *gd
	}
	r.SaleDate = c.timestamp()
	r.Quantity = c.dec()
	r.Vested = c.dec()
	r.Units = c.dec()
	r.ExercisePrice = c.dec()

	kind := c.next()
	if kind != "" {
		r.PriceSource = &models.PriceSource{Kind: models.PriceSourceKind(kind), Value: c.dec(), QuotedAt: c.timestamp()}
	} else {
		c.pos += 2
	}

	r.CostBasis = c.dec()
	r.CurrentValue = c.dec()
	r.UnrealizedPnL = c.dec()
	r.RealizedPnL = c.dec()
	r.TaxDetail.BargainElement = c.dec()
	r.TaxDetail.ShortTermGain = c.dec()
	r.TaxDetail.LongTermGain = c.dec()
	r.Tax = c.dec()
	r.TaxDetail.Tax = r.Tax
	r.PostTaxPnL = c.dec()
	r.InflationAdjustedPnL = c.dec()
	r.HoldingPeriodDays = c.integer()
	r.HoldingPeriodYears = c.float()
	if s := c.next(); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && c.err == nil {
			c.err = fmt.Errorf("column 'cagr': %w", err)
		}
		r.CAGR = &v
	}
	active, err := strconv.ParseBool(c.next())
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("column 'isActive': %w", err)
	}
	r.IsActive = active
	r.Error = c.text()

	return r, c.err
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
