package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/models"
)

// RedisConfig holds connection parameters for the shared quote cache.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
}

// RedisQuoteCache stores each quote as a hash at "quote:{TICKER}" with
// fields price, currency and ts (Unix nanoseconds).
type RedisQuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisQuoteCache connects to Redis and verifies the connection.
func NewRedisQuoteCache(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*RedisQuoteCache, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisQuoteCache{rdb: rdb, ttl: ttl}, nil
}

func (r *RedisQuoteCache) Get(ctx context.Context, ticker string) (models.Quote, bool, error) {
	key := quoteKey(ticker)
	vals, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return models.Quote{}, false, fmt.Errorf("redis: get quote %s: %w", ticker, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return models.Quote{}, false, nil
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return models.Quote{}, false, fmt.Errorf("redis: parse price %s: %w", ticker, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return models.Quote{}, false, fmt.Errorf("redis: parse ts %s: %w", ticker, err)
	}
	return models.Quote{
		Ticker:    ticker,
		Price:     price,
		Currency:  vals["currency"],
		Timestamp: time.Unix(0, tsNano).UTC(),
	}, true, nil
}

func (r *RedisQuoteCache) Set(ctx context.Context, quote models.Quote) error {
	key := quoteKey(quote.Ticker)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"price":    quote.Price.String(),
			"currency": quote.Currency,
			"ts":       strconv.FormatInt(quote.Timestamp.UnixNano(), 10),
		})
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set quote %s: %w", quote.Ticker, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisQuoteCache) Close() error {
	return r.rdb.Close()
}

var _ QuoteCache = (*RedisQuoteCache)(nil)
