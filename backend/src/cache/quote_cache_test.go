package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/esopfolio/backend/src/models"
)

func sampleQuote() models.Quote {
	return models.Quote{
		Ticker:    "infy.ns",
		Price:     decimal.RequireFromString("1523.45"),
		Currency:  "INR",
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestMemoryQuoteCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryQuoteCache(time.Minute)

	_, found, err := c.Get(ctx, "INFY.NS")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, sampleQuote()))
	got, found, err := c.Get(ctx, " INFY.NS")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1523.45")))
	assert.Equal(t, "INR", got.Currency)
}

func TestMemoryQuoteCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryQuoteCache(10 * time.Millisecond)
	require.NoError(t, c.Set(ctx, sampleQuote()))
	time.Sleep(30 * time.Millisecond)
	_, found, err := c.Get(ctx, "INFY.NS")
	require.NoError(t, err)
	assert.False(t, found)
}

// Runs against a real server when TEST_REDIS_ADDR is set.
func TestRedisQuoteCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisQuoteCache(ctx, RedisConfig{Addr: addr}, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	q := sampleQuote()
	q.Ticker = "TEST-" + time.Now().Format("150405.000000")
	require.NoError(t, c.Set(ctx, q))

	got, found, err := c.Get(ctx, q.Ticker)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Price.Equal(q.Price))
	assert.True(t, got.Timestamp.Equal(q.Timestamp))
}
