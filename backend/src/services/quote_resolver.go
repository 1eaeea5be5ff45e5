package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/cache"
	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/processors"
	"golang.org/x/sync/errgroup"
)

// ResolvedQuote is the outcome of one ticker lookup. Price is expressed in
// the requested base currency; Err is set when no price could be found.
type ResolvedQuote struct {
	Quote models.Quote
	Price decimal.Decimal
	Err   error
}

// QuoteResolver looks up many tickers at once with bounded concurrency.
type QuoteResolver struct {
	provider    QuoteProvider
	cache       cache.QuoteCache
	fx          *processors.FXTable
	timeout     time.Duration
	concurrency int
}

// NewQuoteResolver creates a resolver. quoteCache and fx may be nil.
func NewQuoteResolver(provider QuoteProvider, quoteCache cache.QuoteCache, fx *processors.FXTable, timeout time.Duration, concurrency int) *QuoteResolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &QuoteResolver{
		provider:    provider,
		cache:       quoteCache,
		fx:          fx,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// Resolve returns a result for every distinct ticker. A failing ticker never
// affects the others, and the whole fan-out is bounded by the resolver timeout.
func (r *QuoteResolver) Resolve(ctx context.Context, tickers []string, baseCurrency string) map[string]ResolvedQuote {
	results := make(map[string]ResolvedQuote, len(tickers))
	if len(tickers) == 0 {
		return results
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	seen := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		if seen[ticker] {
			continue
		}
		seen[ticker] = true
		g.Go(func() error {
			res := r.resolveOne(ctx, ticker, baseCurrency)
			mu.Lock()
			results[ticker] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, res := range results {
		if res.Err != nil {
			failures++
		}
	}
	logger.FromContext(ctx).Info("Quote resolution finished", "tickers", len(results), "failures", failures)
	return results
}

func (r *QuoteResolver) resolveOne(ctx context.Context, ticker, baseCurrency string) ResolvedQuote {
	log := logger.FromContext(ctx)
	if r.cache != nil {
		q, found, err := r.cache.Get(ctx, ticker)
		if err != nil {
			log.Warn("Quote cache read failed", "ticker", ticker, "error", err)
		} else if found {
			return r.convert(q, baseCurrency)
		}
	}

	if r.provider == nil {
		return ResolvedQuote{Err: &PriceResolutionError{Ticker: ticker, Err: fmt.Errorf("no quote provider configured")}}
	}
	q, err := r.provider.GetQuote(ctx, ticker)
	if err != nil {
		log.Warn("Live price lookup failed", "ticker", ticker, "error", err)
		return ResolvedQuote{Err: &PriceResolutionError{Ticker: ticker, Err: err}}
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, q); err != nil {
			log.Warn("Quote cache write failed", "ticker", ticker, "error", err)
		}
	}
	return r.convert(q, baseCurrency)
}

func (r *QuoteResolver) convert(q models.Quote, baseCurrency string) ResolvedQuote {
	res := ResolvedQuote{Quote: q, Price: q.Price}
	from := strings.ToUpper(q.Currency)
	if from == "" || strings.EqualFold(from, baseCurrency) {
		return res
	}
	if r.fx == nil {
		res.Err = &PriceResolutionError{Ticker: q.Ticker, Err: fmt.Errorf("quote in %s cannot be converted to %s", from, baseCurrency)}
		return res
	}
	converted, err := r.fx.Convert(q.Price, from, baseCurrency)
	if err != nil {
		res.Err = &PriceResolutionError{Ticker: q.Ticker, Err: err}
		return res
	}
	res.Price = converted
	return res
}
