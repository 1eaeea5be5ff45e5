package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/username/esopfolio/backend/src/database"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/processors"
)

const workedExampleCSV = `ticker,company,grantDate,quantity,vested,exercisePrice,currentPrice,status
AAPL,Apple,2022-01-15,1000,0,150,228.50,Unvested
MSFT,Microsoft,2021-03-15,500,500,220,415.75,Vested
GOOG,Alphabet,2023-02-01,200,0,1800,142.30,Unvested
AMZN,Amazon,2020-07-01,300,300,2100,185.20,Exercised
`

var fixedNow = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "esop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestCache() *cache.Cache {
	return cache.New(DefaultCacheExpiration, CacheCleanupInterval)
}

func newTestGrantService(t *testing.T) (GrantService, *cache.Cache) {
	t.Helper()
	c := newTestCache()
	return NewGrantService(openTestDB(t), processors.NewCSVValidator(), processors.NewRecordNormalizer(), c), c
}

func newTestAnalyticsService(grants GrantService, resolver PriceResolver, c *cache.Cache) AnalyticsService {
	return NewAnalyticsService(AnalyticsConfig{
		InflationRate:   0.06,
		RegionTolerance: 0.10,
		TaxRules:        processors.DefaultTaxRules(),
		FX:              processors.NewFXTable(83),
		Now:             func() time.Time { return fixedNow },
	}, grants, processors.NewCSVValidator(), processors.NewRecordNormalizer(), resolver, c)
}

// fakeProvider serves quotes from a map and counts calls per ticker.
type fakeProvider struct {
	mu     sync.Mutex
	quotes map[string]models.Quote
	calls  map[string]int
	delay  time.Duration
}

func newFakeProvider(prices map[string]string, currency string) *fakeProvider {
	p := &fakeProvider{quotes: make(map[string]models.Quote), calls: make(map[string]int)}
	for ticker, price := range prices {
		p.quotes[ticker] = models.Quote{
			Ticker:    ticker,
			Price:     decimal.RequireFromString(price),
			Currency:  currency,
			Timestamp: fixedNow,
		}
	}
	return p
}

func (p *fakeProvider) GetQuote(ctx context.Context, ticker string) (models.Quote, error) {
	p.mu.Lock()
	p.calls[ticker]++
	q, ok := p.quotes[ticker]
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return models.Quote{}, ctx.Err()
		}
	}
	if !ok {
		return models.Quote{}, fmt.Errorf("%w for ticker %s", ErrQuoteNotFound, ticker)
	}
	return q, nil
}

func (p *fakeProvider) callCount(ticker string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[ticker]
}

func decimalOf(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
