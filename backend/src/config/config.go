package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/username/esopfolio/backend/src/processors"
)

const defaultJWTSecret = "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes"

type AppConfig struct {
	JWTSecret          string
	Port               string
	DatabasePath       string
	LogLevel           string
	AccessTokenExpiry  time.Duration
	MaxUploadSizeBytes int64
	AllowedOrigins     []string

	// Quote provider
	PriceAPIBaseURL        string
	PriceSessionURL        string
	PriceLookupTimeout     time.Duration
	PriceLookupConcurrency int
	PriceRequestsPerSecond float64
	PriceCacheTTL          time.Duration

	// Optional shared quote cache; empty address keeps quotes in memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InflationRate   float64
	RegionTolerance float64
	TaxRulesPath    string
	FXRatesPath     string
	ExchangesPath   string
	USDINRRate      float64
	ReportCacheTTL  time.Duration
}

var Cfg *AppConfig

// LoadConfig loads the configuration into Cfg and exits on invalid values.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	Cfg = cfg
}

// Load reads .env (if any) and the environment, applying defaults.
func Load() (*AppConfig, error) {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", defaultJWTSecret)
	if jwtSecret == defaultJWTSecret {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	cfg := &AppConfig{
		JWTSecret:          jwtSecret,
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./esopfolio.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		PriceAPIBaseURL:        getEnv("PRICE_API_BASE_URL", "https://query1.finance.yahoo.com"),
		PriceSessionURL:        getEnv("PRICE_SESSION_URL", "https://finance.yahoo.com"),
		PriceLookupTimeout:     getEnvAsDuration("PRICE_LOOKUP_TIMEOUT", 15*time.Second),
		PriceLookupConcurrency: getEnvAsInt("PRICE_LOOKUP_CONCURRENCY", 5),
		PriceRequestsPerSecond: getEnvAsFloat("PRICE_REQUESTS_PER_SECOND", 4),
		PriceCacheTTL:          getEnvAsDuration("PRICE_CACHE_TTL", 15*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		InflationRate:   getEnvAsFloat("INFLATION_RATE", 0.06),
		RegionTolerance: getEnvAsFloat("REGION_TOLERANCE", 0.10),
		TaxRulesPath:    getEnv("TAX_RULES_PATH", ""),
		FXRatesPath:     getEnv("FX_RATES_PATH", "data/historicalExchangeRate.json"),
		ExchangesPath:   getEnv("EXCHANGES_PATH", "data/exchanges.json"),
		USDINRRate:      getEnvAsFloat("USD_INR_RATE", 83.0),
		ReportCacheTTL:  getEnvAsDuration("REPORT_CACHE_TTL", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, QuoteCache=%s",
		cfg.Port, cfg.LogLevel, cfg.DatabasePath, cfg.quoteCacheKind())
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 32 bytes long, got %d", len(c.JWTSecret)))
	}
	if c.InflationRate < 0 || c.InflationRate >= 1 {
		errs = append(errs, fmt.Errorf("INFLATION_RATE must be in [0, 1), got %v", c.InflationRate))
	}
	if c.RegionTolerance < 0 || c.RegionTolerance >= 0.5 {
		errs = append(errs, fmt.Errorf("REGION_TOLERANCE must be in [0, 0.5), got %v", c.RegionTolerance))
	}
	if c.USDINRRate <= 0 {
		errs = append(errs, fmt.Errorf("USD_INR_RATE must be positive, got %v", c.USDINRRate))
	}
	if c.PriceLookupConcurrency < 1 {
		errs = append(errs, fmt.Errorf("PRICE_LOOKUP_CONCURRENCY must be at least 1, got %d", c.PriceLookupConcurrency))
	}
	if c.MaxUploadSizeBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_SIZE_BYTES must be positive, got %d", c.MaxUploadSizeBytes))
	}
	return errors.Join(errs...)
}

func (c *AppConfig) quoteCacheKind() string {
	if c.RedisAddr != "" {
		return "redis"
	}
	return "memory"
}

// LoadTaxRules reads a TOML file overriding the built-in tax regimes. Regimes
// or fields missing from the file keep their defaults. An empty path returns
// the defaults.
func LoadTaxRules(path string) (processors.TaxRules, error) {
	rules := processors.DefaultTaxRules()
	if path == "" {
		return rules, nil
	}
	if _, err := toml.DecodeFile(path, &rules); err != nil {
		return processors.TaxRules{}, fmt.Errorf("error loading tax rules from '%s': %w", path, err)
	}
	for name, r := range map[string]processors.TaxRegime{"india": rules.India, "us": rules.US} {
		if r.LongTermDays <= 0 {
			return processors.TaxRules{}, fmt.Errorf("tax rules '%s': %s.long_term_days must be positive", path, name)
		}
		for _, rate := range []float64{r.BargainRate, r.ShortTermRate, r.LongTermRate} {
			if rate < 0 || rate > 1 {
				return processors.TaxRules{}, fmt.Errorf("tax rules '%s': %s rates must be in [0, 1]", path, name)
			}
		}
	}
	log.Printf("Tax rules loaded from %s", path)
	return rules, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %v", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
