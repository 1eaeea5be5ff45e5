package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	quotecache "github.com/username/esopfolio/backend/src/cache"
	"github.com/username/esopfolio/backend/src/config"
	"github.com/username/esopfolio/backend/src/database"
	"github.com/username/esopfolio/backend/src/handlers"
	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/processors"
	"github.com/username/esopfolio/backend/src/security"
	"github.com/username/esopfolio/backend/src/services"
	"github.com/username/esopfolio/backend/src/utils"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(allowed []string, next http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allowedOrigins[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, X-Request-ID, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag, X-Request-ID, Content-Disposition")
		}

		if r.Method == http.MethodOptions {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("ESOPfolio backend server starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.L.Info("Initializing data loaders...")
	fx := processors.NewFXTable(config.Cfg.USDINRRate)
	if err := fx.LoadHistoricalRates(config.Cfg.FXRatesPath); err != nil {
		logger.L.Error("Failed to load historical rates", "error", err)
	}
	if err := utils.LoadExchangeData(config.Cfg.ExchangesPath); err != nil {
		logger.L.Error("Failed to load exchange data", "error", err)
	}
	taxRules, err := config.LoadTaxRules(config.Cfg.TaxRulesPath)
	if err != nil {
		stdlog.Fatalf("FATAL: %v", err)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	defer database.DB.Close()
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	var quotes quotecache.QuoteCache = quotecache.NewMemoryQuoteCache(config.Cfg.PriceCacheTTL)
	if config.Cfg.RedisAddr != "" {
		redisCache, err := quotecache.NewRedisQuoteCache(ctx, quotecache.RedisConfig{
			Addr:     config.Cfg.RedisAddr,
			Password: config.Cfg.RedisPassword,
			DB:       config.Cfg.RedisDB,
		}, config.Cfg.PriceCacheTTL)
		if err != nil {
			logger.L.Error("Redis quote cache unavailable, using in-memory cache", "addr", config.Cfg.RedisAddr, "error", err)
		} else {
			defer redisCache.Close()
			quotes = redisCache
			logger.L.Info("Redis quote cache connected", "addr", config.Cfg.RedisAddr)
		}
	}

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	validator := processors.NewCSVValidator()
	normalizer := processors.NewRecordNormalizer()

	priceService := services.NewPriceService(services.PriceServiceConfig{
		BaseURL:           config.Cfg.PriceAPIBaseURL,
		SessionURL:        config.Cfg.PriceSessionURL,
		RequestsPerSecond: config.Cfg.PriceRequestsPerSecond,
	})
	resolver := services.NewQuoteResolver(priceService, quotes, fx, config.Cfg.PriceLookupTimeout, config.Cfg.PriceLookupConcurrency)

	grantService := services.NewGrantService(database.DB, validator, normalizer, reportCache)
	analyticsService := services.NewAnalyticsService(services.AnalyticsConfig{
		InflationRate:   config.Cfg.InflationRate,
		RegionTolerance: config.Cfg.RegionTolerance,
		TaxRules:        taxRules,
		FX:              fx,
		ReportCacheTTL:  config.Cfg.ReportCacheTTL,
	}, grantService, validator, normalizer, resolver, reportCache)
	exportService := services.NewExportService()

	logger.L.Info("Configuring routes...")
	router := handlers.NewRouter(handlers.Handlers{
		Auth:      authService,
		Upload:    handlers.NewUploadHandler(grantService, config.Cfg.MaxUploadSizeBytes),
		Grants:    handlers.NewGrantHandler(grantService),
		Portfolio: handlers.NewPortfolioHandler(analyticsService, exportService, config.Cfg.MaxUploadSizeBytes),
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(config.Cfg.AllowedOrigins, rateLimitMiddleware(router))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + config.Cfg.PriceLookupTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped gracefully.")
}
