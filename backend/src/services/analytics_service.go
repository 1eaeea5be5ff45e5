// backend/src/services/analytics_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/processors"
)

// AnalyticsConfig holds the settings an analysis runs with.
type AnalyticsConfig struct {
	InflationRate   float64
	RegionTolerance float64
	TaxRules        processors.TaxRules
	FX              *processors.FXTable
	ReportCacheTTL  time.Duration
	Now             func() time.Time
}

type analyticsServiceImpl struct {
	cfg         AnalyticsConfig
	grants      GrantService
	validator   processors.CSVValidator
	normalizer  processors.RecordNormalizer
	tax         processors.TaxCalculator
	resolver    PriceResolver
	reportCache *cache.Cache
}

// NewAnalyticsService wires the analytics pipeline. resolver may be nil, in
// which case rows that need a live price are excluded with an error.
func NewAnalyticsService(
	cfg AnalyticsConfig,
	grants GrantService,
	validator processors.CSVValidator,
	normalizer processors.RecordNormalizer,
	resolver PriceResolver,
	reportCache *cache.Cache,
) AnalyticsService {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.ReportCacheTTL == 0 {
		cfg.ReportCacheTTL = DefaultCacheExpiration
	}
	return &analyticsServiceImpl{
		cfg:         cfg,
		grants:      grants,
		validator:   validator,
		normalizer:  normalizer,
		tax:         processors.NewTaxCalculator(cfg.TaxRules),
		resolver:    resolver,
		reportCache: reportCache,
	}
}

// Analyze validates raw records and, if the batch is valid, computes the full
// analytics response. Nothing is computed for an invalid batch.
func (s *analyticsServiceImpl) Analyze(ctx context.Context, raws []models.RawRecord, opts AnalyzeOptions) (*models.AnalyticsData, error) {
	result := s.validator.Validate(raws)
	if !result.IsValid {
		return nil, &ValidationError{Result: result}
	}
	if opts.Source == "" {
		opts.Source = "records"
	}
	return s.run(ctx, s.normalizer.NormalizeAll(raws), result.Warnings, opts)
}

func (s *analyticsServiceImpl) AnalyzeUpload(ctx context.Context, file io.Reader, format string, opts AnalyzeOptions) (*models.AnalyticsData, error) {
	raws, result, err := s.grants.ParseAndValidate(file, format)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return nil, &ValidationError{Result: result}
	}
	if opts.Source == "" {
		opts.Source = "upload"
	}
	return s.run(ctx, s.normalizer.NormalizeAll(raws), result.Warnings, opts)
}

// AnalyzeStored analyzes the user's stored batch. Results are cached per
// user and options until the batch changes or the cache entry expires.
func (s *analyticsServiceImpl) AnalyzeStored(ctx context.Context, userID string, opts AnalyzeOptions) (*models.AnalyticsData, error) {
	inflation := s.cfg.InflationRate
	if opts.InflationRate != nil {
		inflation = *opts.InflationRate
	}
	cacheKey := fmt.Sprintf(ckAnalyticsBase, userID, opts.Region, strconv.FormatFloat(inflation, 'f', -1, 64))
	if cached, found := s.reportCache.Get(cacheKey); found {
		if data, ok := cached.(*models.AnalyticsData); ok {
			logger.FromContext(ctx).Debug("Analytics served from cache", "userID", userID)
			return data, nil
		}
	}

	batch, err := s.grants.GetGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	opts.Source = "stored"
	data, err := s.run(ctx, batch.Records, nil, opts)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, data, s.cfg.ReportCacheTTL)
	return data, nil
}

// run is the pipeline after validation: region, prices, per-row figures,
// aggregation and response shaping.
func (s *analyticsServiceImpl) run(ctx context.Context, records []models.NormalizedRecord, warnings []string, opts AnalyzeOptions) (*models.AnalyticsData, error) {
	startTime := time.Now()
	log := logger.FromContext(ctx)
	asOf := s.cfg.Now()

	inflation := s.cfg.InflationRate
	if opts.InflationRate != nil {
		inflation = *opts.InflationRate
	}

	tickers := make([]string, len(records))
	for i, r := range records {
		tickers[i] = r.Ticker
	}
	report, regionErr := processors.DetectRegion(tickers, s.cfg.RegionTolerance)
	region := report.Region
	if opts.Region != models.RegionUnknown {
		region = opts.Region
	} else if regionErr != nil {
		return nil, regionErr
	} else {
		warnings = append(warnings, report.Warnings...)
	}
	baseCurrency := region.Currency()

	priced, lookupFailures := s.priceRecords(ctx, records, baseCurrency)

	calculator := processors.NewPnLCalculator(s.tax, inflation)
	rows := make([]models.RowCalculation, len(priced))
	sources := make(map[models.PriceSourceKind]int)
	for i, p := range priced {
		rows[i] = calculator.Calculate(p, region, asOf)
		if rows[i].PriceSource != nil {
			sources[rows[i].PriceSource.Kind]++
		}
	}

	totals, charts := processors.NewPortfolioAggregator(asOf).Aggregate(rows)

	fxRate := 1.0
	if s.cfg.FX != nil {
		if r, err := s.cfg.FX.Rate(baseCurrency); err == nil {
			fxRate = r
		}
	}

	if warnings == nil {
		warnings = []string{}
	}
	data := &models.AnalyticsData{
		Region:             region,
		BaseCurrency:       baseCurrency,
		FXRate:             fxRate,
		Totals:             totals,
		PerRowCalculations: rows,
		Charts:             charts,
		Meta: models.AnalyticsMeta{
			RunID:          uuid.NewString(),
			AsOf:           asOf,
			Source:         opts.Source,
			RowCount:       len(rows),
			InflationRate:  inflation,
			RegionCounts:   report.Counts,
			PriceSources:   sources,
			LookupFailures: lookupFailures,
			Warnings:       warnings,
			Display:        displayTotals(totals, baseCurrency),
		},
	}

	log.Info("Analytics computed", "runID", data.Meta.RunID, "rows", len(rows), "active", totals.ActiveRows,
		"region", region, "lookupFailures", lookupFailures, "duration", time.Since(startTime))
	return data, nil
}

// priceRecords attaches the price each row is valued at: the row's
// currentPrice, else its fmv, else a live quote for held positions. Sold
// rows are valued at their sale price by the calculator.
func (s *analyticsServiceImpl) priceRecords(ctx context.Context, records []models.NormalizedRecord, baseCurrency string) ([]models.PricedRecord, int) {
	priced := make([]models.PricedRecord, len(records))
	var lookups []string
	for i, rec := range records {
		priced[i] = models.PricedRecord{Index: i, Record: rec}
		if rec.Status == models.StatusSold {
			continue
		}
		switch {
		case rec.CurrentPrice.Valid:
			priced[i].Price = &models.PriceSource{Kind: models.PriceSourceCSV, Value: rec.CurrentPrice.Decimal}
		case rec.FMV.Valid:
			priced[i].Price = &models.PriceSource{Kind: models.PriceSourceFallback, Value: rec.FMV.Decimal}
		case rec.NeedsMarketPrice():
			lookups = append(lookups, rec.Ticker)
		}
	}
	if len(lookups) == 0 {
		return priced, 0
	}

	var quotes map[string]ResolvedQuote
	if s.resolver != nil {
		quotes = s.resolver.Resolve(ctx, lookups, baseCurrency)
	}

	failures := 0
	for i := range priced {
		p := &priced[i]
		if p.Price != nil || !p.Record.NeedsMarketPrice() {
			continue
		}
		res, ok := quotes[p.Record.Ticker]
		switch {
		case !ok:
			p.PriceError = fmt.Sprintf("no price available for %s: live price lookup unavailable", p.Record.Ticker)
			failures++
		case res.Err != nil:
			p.PriceError = res.Err.Error()
			failures++
		default:
			quotedAt := res.Quote.Timestamp
			p.Price = &models.PriceSource{Kind: models.PriceSourceLive, Value: res.Price, QuotedAt: &quotedAt}
		}
	}
	return priced, failures
}

// displayTotals renders headline totals as currency strings.
func displayTotals(t models.PortfolioTotals, currency string) map[string]string {
	amounts := map[string]decimal.Decimal{
		"totalCostBasis":            t.TotalCostBasis,
		"totalCurrentValue":         t.TotalCurrentValue,
		"totalPnL":                  t.TotalPnL,
		"totalTax":                  t.TotalTax,
		"totalPostTaxPnL":           t.TotalPostTaxPnL,
		"totalInflationAdjustedPnL": t.TotalInflationAdjustedPnL,
	}
	out := make(map[string]string, len(amounts))
	for k, v := range amounts {
		out[k] = money.New(v.Shift(2).Round(0).IntPart(), currency).Display()
	}
	return out
}
