package model

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/esopfolio/backend/src/database"
	"github.com/username/esopfolio/backend/src/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "grants.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecords() []models.NormalizedRecord {
	sold := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	return []models.NormalizedRecord{
		{
			Ticker: "AAPL", Company: "Apple", GrantDate: time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
			VestingStartDate: time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
			Quantity:         decimal.NewFromInt(1000), Vested: decimal.NewFromInt(1000),
			ExercisePrice: decimal.NewFromInt(150),
			CurrentPrice:  decimal.NewNullDecimal(decimal.RequireFromString("189.25")),
			Status:        models.StatusVested, Type: "ESOP",
		},
		{
			Ticker: "TSLA", Company: "Tesla", GrantDate: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
			VestingStartDate: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
			Quantity:         decimal.NewFromInt(100), Vested: decimal.NewFromInt(100),
			StrikePrice:   decimal.NewNullDecimal(decimal.NewFromInt(500)),
			ExercisePrice: decimal.NewFromInt(500),
			FMV:           decimal.NewNullDecimal(decimal.NewFromInt(520)),
			SalePrice:     decimal.NewNullDecimal(decimal.NewFromInt(570)),
			SaleDate:      &sold,
			Status:        models.StatusSold, Type: "RSU", Notes: "sold after lockup",
		},
	}
}

func TestReplaceAndGetGrants(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	upload := GrantUpload{UserID: "user-1", BatchID: "b1", Filename: "grants.csv", Format: "csv", UploadedAt: time.Now()}

	require.NoError(t, ReplaceGrants(ctx, db, upload, sampleRecords()))

	got, err := GetGrantsByUser(ctx, db, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := sampleRecords()
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.True(t, got[0].CurrentPrice.Valid)
	assert.True(t, got[0].CurrentPrice.Decimal.Equal(want[0].CurrentPrice.Decimal))
	assert.False(t, got[0].FMV.Valid)
	assert.Nil(t, got[0].SaleDate)

	assert.Equal(t, models.StatusSold, got[1].Status)
	require.NotNil(t, got[1].SaleDate)
	assert.True(t, got[1].SaleDate.Equal(*want[1].SaleDate))
	assert.True(t, got[1].SalePrice.Decimal.Equal(decimal.NewFromInt(570)))
	assert.Equal(t, "sold after lockup", got[1].Notes)

	meta, err := GetUploadByUser(ctx, db, "user-1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.RowCount)
	assert.Equal(t, "grants.csv", meta.Filename)
}

func TestReplaceGrantsOverwritesPreviousBatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	upload := GrantUpload{UserID: "user-1", BatchID: "b1", Format: "csv", UploadedAt: time.Now()}
	require.NoError(t, ReplaceGrants(ctx, db, upload, sampleRecords()))

	upload.BatchID = "b2"
	require.NoError(t, ReplaceGrants(ctx, db, upload, sampleRecords()[:1]))

	n, err := CountGrantsByUser(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGrantsAreScopedByUser(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, ReplaceGrants(ctx, db, GrantUpload{UserID: "a", BatchID: "1", Format: "csv", UploadedAt: time.Now()}, sampleRecords()))

	got, err := GetGrantsByUser(ctx, db, "b")
	require.NoError(t, err)
	assert.Empty(t, got)

	meta, err := GetUploadByUser(ctx, db, "b")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestDeleteGrantsByUser(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, ReplaceGrants(ctx, db, GrantUpload{UserID: "a", BatchID: "1", Format: "csv", UploadedAt: time.Now()}, sampleRecords()))

	n, err := DeleteGrantsByUser(ctx, db, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := CountGrantsByUser(ctx, db, "a")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.db")
	db, err := database.Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = database.Open(path)
	require.NoError(t, err)
	defer db.Close()
	_, err = CountGrantsByUser(context.Background(), db, "x")
	assert.NoError(t, err)
}
