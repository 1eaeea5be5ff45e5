// backend/src/services/price_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/utils"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

var (
	crumbPattern = regexp.MustCompile(`"CrumbStore":\{"crumb":"(.*?)"\}`)

	// ErrQuoteNotFound is returned when the provider knows no price for a ticker.
	ErrQuoteNotFound = errors.New("no quote found")
)

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			RegularMarketTime  int64   `json:"regularMarketTime"`
			Currency           string  `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// PriceServiceConfig configures the Yahoo Finance quote provider.
type PriceServiceConfig struct {
	BaseURL           string
	SessionURL        string
	RequestsPerSecond float64
	MaxRetries        uint
	RetryInterval     time.Duration
	HTTPTimeout       time.Duration
}

// yahooPriceService implements QuoteProvider against Yahoo Finance. It keeps
// a cookie jar and a crumb for authenticated requests.
type yahooPriceService struct {
	cfg        PriceServiceConfig
	httpClient http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	crumb string
}

// NewPriceService creates a Yahoo-backed QuoteProvider. The session crumb is
// fetched lazily on the first quote.
func NewPriceService(cfg PriceServiceConfig) QuoteProvider {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 20 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &yahooPriceService{
		cfg:        cfg,
		httpClient: http.Client{Jar: jar, Timeout: cfg.HTTPTimeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// GetQuote returns the latest regular-market price for ticker. Transient
// failures are retried with exponential backoff.
func (s *yahooPriceService) GetQuote(ctx context.Context, ticker string) (models.Quote, error) {
	symbol := YahooSymbol(ticker)
	op := func() (models.Quote, error) {
		crumb, err := s.sessionCrumb(ctx)
		if err != nil {
			return models.Quote{}, err
		}
		return s.fetchQuote(ctx, symbol, crumb)
	}
	notify := func(err error, wait time.Duration) {
		logger.FromContext(ctx).Warn("Yahoo Fetch: retrying quote", "ticker", ticker, "symbol", symbol, "wait", wait, "error", err)
	}

	policy := backoff.NewExponentialBackOff()
	if s.cfg.RetryInterval > 0 {
		policy.InitialInterval = s.cfg.RetryInterval
	}

	q, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.cfg.MaxRetries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return models.Quote{}, err
	}
	q.Ticker = ticker
	logger.FromContext(ctx).Debug("Yahoo Fetch: Successfully got price", "ticker", ticker, "symbol", symbol, "price", q.Price, "currency", q.Currency)
	return q, nil
}

// sessionCrumb returns the cached crumb, initializing the session if needed.
func (s *yahooPriceService) sessionCrumb(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crumb != "" {
		return s.crumb, nil
	}
	crumb, err := s.initializeYahooSession(ctx)
	if err != nil {
		return "", err
	}
	s.crumb = crumb
	return crumb, nil
}

func (s *yahooPriceService) resetCrumb() {
	s.mu.Lock()
	s.crumb = ""
	s.mu.Unlock()
}

// initializeYahooSession visits a Yahoo Finance page to collect the session
// cookies and scrape the crumb. When the page does not embed one, the
// getcrumb endpoint is asked instead.
func (s *yahooPriceService) initializeYahooSession(ctx context.Context) (string, error) {
	logger.L.Info("Initializing Yahoo Finance session to get crumb and cookies...")
	body, status, err := s.get(ctx, strings.TrimRight(s.cfg.SessionURL, "/")+"/quote/AAPL")
	if err != nil {
		return "", fmt.Errorf("failed to make initial request to Yahoo: %w", err)
	}
	if matches := crumbPattern.FindSubmatch(body); len(matches) == 2 {
		logger.L.Info("Successfully obtained Yahoo Finance crumb.")
		return string(matches[1]), nil
	}
	logger.L.Debug("Crumb not embedded in session page", "status", status)

	body, status, err = s.get(ctx, strings.TrimRight(s.cfg.BaseURL, "/")+"/v1/test/getcrumb")
	if err != nil {
		return "", fmt.Errorf("failed to request Yahoo crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if status != http.StatusOK || crumb == "" || strings.ContainsAny(crumb, "<{") {
		return "", fmt.Errorf("could not obtain Yahoo crumb (status %d)", status)
	}
	logger.L.Info("Successfully obtained Yahoo Finance crumb.")
	return crumb, nil
}

func (s *yahooPriceService) fetchQuote(ctx context.Context, symbol, crumb string) (models.Quote, error) {
	quoteURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s&crumb=%s",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.QueryEscape(symbol), url.QueryEscape(crumb))
	body, status, err := s.get(ctx, quoteURL)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to call Yahoo quote API for ticker %s: %w", symbol, err)
	}

	switch {
	case status == http.StatusUnauthorized:
		s.resetCrumb()
		return models.Quote{}, fmt.Errorf("yahoo quote API rejected crumb for ticker %s", symbol)
	case status == http.StatusTooManyRequests || status >= 500:
		return models.Quote{}, fmt.Errorf("yahoo quote API returned status %d for ticker %s", status, symbol)
	case status != http.StatusOK:
		return models.Quote{}, backoff.Permanent(fmt.Errorf("yahoo quote API returned non-OK status %d for ticker %s. Body: %s", status, symbol, truncate(body, 200)))
	}

	var quoteData yahooQuoteResponse
	if err := json.Unmarshal(body, &quoteData); err != nil {
		return models.Quote{}, backoff.Permanent(fmt.Errorf("failed to decode Yahoo quote response for ticker %s: %w", symbol, err))
	}
	if quoteData.QuoteResponse.Error != nil || len(quoteData.QuoteResponse.Result) == 0 {
		return models.Quote{}, backoff.Permanent(fmt.Errorf("%w for ticker %s", ErrQuoteNotFound, symbol))
	}

	res := quoteData.QuoteResponse.Result[0]
	if res.RegularMarketPrice <= 0 {
		return models.Quote{}, backoff.Permanent(fmt.Errorf("%w for ticker %s: non-positive price", ErrQuoteNotFound, symbol))
	}
	ts := time.Now().UTC()
	if res.RegularMarketTime > 0 {
		ts = time.Unix(res.RegularMarketTime, 0).UTC()
	}
	return models.Quote{
		Price:     decimal.NewFromFloat(res.RegularMarketPrice),
		Currency:  strings.ToUpper(res.Currency),
		Timestamp: ts,
	}, nil
}

// get performs a rate-limited GET with a browser User-Agent.
func (s *yahooPriceService) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read Yahoo response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// YahooSymbol maps an upload ticker to Yahoo's notation: exchange prefixes
// become suffixes (NSE:INFY -> INFY.NS) and the .US suffix is dropped.
func YahooSymbol(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if prefix, rest, ok := strings.Cut(t, ":"); ok {
		switch prefix {
		case "NSE":
			return rest + ".NS"
		case "BSE", "BOM":
			return rest + ".BO"
		default:
			return rest
		}
	}
	if utils.IsShareClassTicker(t) {
		// Yahoo spells share classes with a dash: BRK-B.
		return strings.Replace(t, ".", "-", 1)
	}
	return strings.TrimSuffix(t, ".US")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
