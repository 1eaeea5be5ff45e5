package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/parsers"
)

func analyzedRows(t *testing.T) []models.RowCalculation {
	t.Helper()
	raws := []models.RawRecord{
		{Ticker: "MSFT", Company: "=HYPERLINK(\"x\")", GrantDate: "2021-03-15", Quantity: "500", Vested: "500", ExercisePrice: "220", CurrentPrice: "415.75", Status: "Vested"},
		{Ticker: "AAPL", Company: "Apple", GrantDate: "2022-01-15", Quantity: "1000", Vested: "0", ExercisePrice: "150", Status: "Unvested"},
		{Ticker: "TSLA", Company: "Tesla", GrantDate: "2019-06-01", Quantity: "100", Vested: "100", ExercisePrice: "180", SalePrice: "250", SaleDate: "2023-06-01", Status: "Sold"},
		{Ticker: "ORCL", Company: "Oracle", GrantDate: "2018-01-01", Quantity: "40", Vested: "40", ExercisePrice: "50", CurrentPrice: "120", Status: "Expired"},
	}
	data, err := newTestAnalyticsService(nil, nil, newTestCache()).Analyze(context.Background(), raws, AnalyzeOptions{})
	require.NoError(t, err)
	return data.PerRowCalculations
}

func TestExport_CSVSanitizesText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExportService().ExportRows(&buf, analyzedRows(t), parsers.FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, exportColumns, records[0])
	assert.Equal(t, `'=HYPERLINK("x")`, records[1][2])
}

func TestExport_RoundTrip(t *testing.T) {
	rows := analyzedRows(t)
	want, err := json.Marshal(rows)
	require.NoError(t, err)

	for _, format := range []string{parsers.FormatCSV, parsers.FormatJSON} {
		t.Run(format, func(t *testing.T) {
			svc := NewExportService()
			var buf bytes.Buffer
			require.NoError(t, svc.ExportRows(&buf, rows, format))

			back, err := svc.ImportRows(&buf, format)
			require.NoError(t, err)

			got, err := json.Marshal(back)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	svc := NewExportService()
	assert.ErrorIs(t, svc.ExportRows(&bytes.Buffer{}, nil, "xml"), ErrUnknownFormat)
	_, err := svc.ImportRows(strings.NewReader(""), "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestImport_RejectsMalformedCSV(t *testing.T) {
	svc := NewExportService()

	_, err := svc.ImportRows(strings.NewReader("a,b\n1,2\n"), parsers.FormatCSV)
	assert.ErrorIs(t, err, ErrParsingFailed)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportRows(&buf, analyzedRows(t)[:1], parsers.FormatCSV))
	broken := strings.Replace(buf.String(), "Vested", "Pending", 1)
	_, err = svc.ImportRows(strings.NewReader(broken), parsers.FormatCSV)
	assert.ErrorIs(t, err, ErrParsingFailed)
}
