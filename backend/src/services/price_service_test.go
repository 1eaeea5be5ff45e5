package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeYahoo mimics the session page and quote endpoint. quoteStatus lets a
// test script the status of successive quote calls.
type fakeYahoo struct {
	quoteCalls  atomic.Int32
	crumbCalls  atomic.Int32
	embedCrumb  bool
	quoteStatus []int
	body        string
}

func (f *fakeYahoo) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote/AAPL", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A1", Value: "session"})
		if f.embedCrumb {
			fmt.Fprint(w, `<script>{"CrumbStore":{"crumb":"abc123"}}</script>`)
			return
		}
		fmt.Fprint(w, "<html></html>")
	})
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		f.crumbCalls.Add(1)
		fmt.Fprint(w, "xyz789")
	})
	mux.HandleFunc("/v7/finance/quote", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.quoteCalls.Add(1))
		if n <= len(f.quoteStatus) && f.quoteStatus[n-1] != http.StatusOK {
			w.WriteHeader(f.quoteStatus[n-1])
			return
		}
		if r.URL.Query().Get("crumb") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if strings.Contains(f.body, "%s") {
			fmt.Fprintf(w, f.body, r.URL.Query().Get("symbols"))
			return
		}
		fmt.Fprint(w, f.body)
	})
	return mux
}

const quoteBody = `{"quoteResponse":{"result":[{"symbol":"%s","regularMarketPrice":189.25,"regularMarketTime":1719705600,"currency":"usd"}],"error":null}}`

func newTestPriceService(t *testing.T, f *fakeYahoo) QuoteProvider {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewPriceService(PriceServiceConfig{
		BaseURL:       srv.URL,
		SessionURL:    srv.URL,
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
		HTTPTimeout:   time.Second,
	})
}

func TestPriceService_GetQuote(t *testing.T) {
	f := &fakeYahoo{embedCrumb: true, body: quoteBody}
	svc := newTestPriceService(t, f)

	q, err := svc.GetQuote(context.Background(), "aapl")

	require.NoError(t, err)
	assert.Equal(t, "aapl", q.Ticker)
	assert.Equal(t, "189.25", q.Price.String())
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, time.Unix(1719705600, 0).UTC(), q.Timestamp)
	assert.Zero(t, f.crumbCalls.Load())
}

func TestPriceService_FallsBackToCrumbEndpoint(t *testing.T) {
	f := &fakeYahoo{body: quoteBody}
	svc := newTestPriceService(t, f)

	_, err := svc.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	_, err = svc.GetQuote(context.Background(), "GOOG")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.crumbCalls.Load(), "crumb is reused across quotes")
}

func TestPriceService_RetriesTransientErrors(t *testing.T) {
	f := &fakeYahoo{embedCrumb: true, body: quoteBody, quoteStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway}}
	svc := newTestPriceService(t, f)

	q, err := svc.GetQuote(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.Equal(t, "189.25", q.Price.String())
	assert.Equal(t, int32(3), f.quoteCalls.Load())
}

func TestPriceService_PermanentErrors(t *testing.T) {
	t.Run("not found status", func(t *testing.T) {
		f := &fakeYahoo{embedCrumb: true, body: quoteBody, quoteStatus: []int{http.StatusNotFound}}
		svc := newTestPriceService(t, f)

		_, err := svc.GetQuote(context.Background(), "AAPL")
		require.Error(t, err)
		assert.Equal(t, int32(1), f.quoteCalls.Load())
	})

	t.Run("empty result", func(t *testing.T) {
		f := &fakeYahoo{embedCrumb: true, body: `{"quoteResponse":{"result":[],"error":null}}`}
		svc := newTestPriceService(t, f)

		_, err := svc.GetQuote(context.Background(), "ZZZZ")
		assert.ErrorIs(t, err, ErrQuoteNotFound)
		assert.Equal(t, int32(1), f.quoteCalls.Load())
	})

	t.Run("zero price", func(t *testing.T) {
		f := &fakeYahoo{embedCrumb: true, body: `{"quoteResponse":{"result":[{"symbol":"%s","regularMarketPrice":0}],"error":null}}`}
		svc := newTestPriceService(t, f)

		_, err := svc.GetQuote(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrQuoteNotFound)
	})
}

func TestPriceService_GivesUpAfterMaxRetries(t *testing.T) {
	f := &fakeYahoo{embedCrumb: true, body: quoteBody, quoteStatus: []int{500, 500, 500, 500}}
	svc := newTestPriceService(t, f)

	_, err := svc.GetQuote(context.Background(), "AAPL")

	require.Error(t, err)
	assert.Equal(t, int32(3), f.quoteCalls.Load())
}

func TestYahooSymbol(t *testing.T) {
	tests := map[string]string{
		"aapl":        "AAPL",
		"MSFT.US":     "MSFT",
		"INFY.NS":     "INFY.NS",
		"NSE:INFY":    "INFY.NS",
		"BSE:TCS":     "TCS.BO",
		"BOM:500325":  "500325.BO",
		"NASDAQ:GOOG": "GOOG",
		"BRK.B":       "BRK-B",
		"bf.b":        "BF-B",
		"VOD.L":       "VOD.L",
	}
	for in, want := range tests {
		assert.Equal(t, want, YahooSymbol(in), in)
	}
}
