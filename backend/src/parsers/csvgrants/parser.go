// backend/src/parsers/csvgrants/parser.go
package csvgrants

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/processors"
	"github.com/username/esopfolio/backend/src/security/validation"
)

type GrantCSVParser struct{}

func NewParser() *GrantCSVParser {
	return &GrantCSVParser{}
}

// Parse reads a header row followed by one grant per line. Columns are
// matched to fields by name, in any order; unrecognized columns are carried
// in the header only. Blank lines are skipped.
func (p *GrantCSVParser) Parse(file io.Reader) (*models.ParsedUpload, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &models.ParsedUpload{Format: "csv", Records: []models.RawRecord{}}, nil
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	out := &models.ParsedUpload{Format: "csv", Header: header, Records: []models.RawRecord{}}
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, col := range header {
		name, ok := processors.CanonicalFieldName(col)
		if !ok {
			continue
		}
		if seen[name] {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Duplicate column '%s'; only the first is used", strings.TrimSpace(col)))
			continue
		}
		seen[name] = true
		columns[i] = name
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if blankLine(record) {
			continue
		}
		if len(record) > len(header) {
			logger.L.Debug("CSV line has more cells than header", "line", line, "cells", len(record), "columns", len(header))
		}

		var raw models.RawRecord
		for i, cell := range record {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			raw.SetField(columns[i], strings.TrimSpace(validation.StripUnprintable(cell)))
		}
		out.Records = append(out.Records, raw)
	}

	logger.L.Debug("Parsed CSV upload", "rows", len(out.Records), "columns", len(header))
	return out, nil
}

func blankLine(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
