package jsongrants

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArrayKeepsNumberText(t *testing.T) {
	input := `[{"ticker":"INFY.NS","company":"Infosys","grantDate":"2021-04-01","quantity":500,"vested":250.5,"exercisePrice":"1200","fmv":null,"status":"Vested","broker":"z"}]`

	out, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, out.Records, 1)

	rec := out.Records[0]
	assert.Equal(t, "500", rec.Quantity)
	assert.Equal(t, "250.5", rec.Vested)
	assert.Equal(t, "1200", rec.ExercisePrice)
	assert.Equal(t, "", rec.FMV)
	assert.Equal(t, []string{"ticker", "company", "grantDate", "quantity", "vested", "exercisePrice", "fmv", "status", "broker"}, out.Header)
}

func TestParseWrappedRecords(t *testing.T) {
	out, err := NewParser().Parse(strings.NewReader(`{"records":[{"ticker":"AAPL"},{"ticker":"MSFT"}]}`))
	require.NoError(t, err)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "MSFT", out.Records[1].Ticker)
}

func TestParseRejectsNestedValues(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader(`[{"ticker":{"symbol":"AAPL"}}]`))
	assert.Error(t, err)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader(`[{"ticker":`))
	assert.Error(t, err)
}
