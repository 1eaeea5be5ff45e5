package csvgrants

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapsColumnsByName(t *testing.T) {
	input := "\ufeffStatus,Ticker,Company,Grant Date,quantity,vested,exercise_price,Broker\n" +
		"Vested, aapl ,Apple Inc,2020-01-15,1000,1000,150,X\n" +
		"\n" +
		"Sold,TSLA,Tesla,2019-03-01,100,100,500,Y\n"

	out, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, out.Records, 2)

	first := out.Records[0]
	assert.Equal(t, "aapl", first.Ticker)
	assert.Equal(t, "Apple Inc", first.Company)
	assert.Equal(t, "2020-01-15", first.GrantDate)
	assert.Equal(t, "150", first.ExercisePrice)
	assert.Equal(t, "Vested", first.Status)
	assert.Equal(t, "Sold", out.Records[1].Status)
	assert.Len(t, out.Header, 8)
}

func TestParseShortRowsLeaveBlanks(t *testing.T) {
	out, err := NewParser().Parse(strings.NewReader("ticker,company,notes\nMSFT,Microsoft\n"))
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "", out.Records[0].Notes)
}

func TestParseDuplicateColumns(t *testing.T) {
	out, err := NewParser().Parse(strings.NewReader("ticker,Ticker\nAAPL,MSFT\n"))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", out.Records[0].Ticker)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "Duplicate column")
}

func TestParseEmptyInput(t *testing.T) {
	out, err := NewParser().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, out.Records)
}

func TestParseMalformedQuotes(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader("ticker,company\n\"AAPL,Apple\n"))
	assert.Error(t, err)
}
