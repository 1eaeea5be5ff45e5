// Package cache keeps recently fetched market quotes.
package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/username/esopfolio/backend/src/models"
)

// QuoteCache stores quotes by ticker for a limited time.
type QuoteCache interface {
	Get(ctx context.Context, ticker string) (models.Quote, bool, error)
	Set(ctx context.Context, quote models.Quote) error
}

func quoteKey(ticker string) string {
	return "quote:" + strings.ToUpper(strings.TrimSpace(ticker))
}

// MemoryQuoteCache is a process-local QuoteCache.
type MemoryQuoteCache struct {
	c *gocache.Cache
}

// NewMemoryQuoteCache creates an in-memory cache whose entries live for ttl.
func NewMemoryQuoteCache(ttl time.Duration) *MemoryQuoteCache {
	return &MemoryQuoteCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryQuoteCache) Get(_ context.Context, ticker string) (models.Quote, bool, error) {
	v, found := m.c.Get(quoteKey(ticker))
	if !found {
		return models.Quote{}, false, nil
	}
	q, ok := v.(models.Quote)
	return q, ok, nil
}

func (m *MemoryQuoteCache) Set(_ context.Context, quote models.Quote) error {
	m.c.Set(quoteKey(quote.Ticker), quote, gocache.DefaultExpiration)
	return nil
}

var _ QuoteCache = (*MemoryQuoteCache)(nil)
