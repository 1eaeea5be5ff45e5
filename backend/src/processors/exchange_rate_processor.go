package processors

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/models"
)

// FXTable converts amounts between currencies through USD.
type FXTable struct {
	mu     sync.RWMutex
	perUSD map[string]float64
	asOf   map[string]time.Time
}

// NewFXTable creates a table seeded with the configured USD/INR rate.
func NewFXTable(usdInr float64) *FXTable {
	return &FXTable{
		perUSD: map[string]float64{"USD": 1, "INR": usdInr},
		asOf:   make(map[string]time.Time),
	}
}

// LoadHistoricalRates loads rates from the specified file path, keeping the
// most recent observation per currency. A missing file keeps the defaults.
func (t *FXTable) LoadHistoricalRates(filePath string) error {
	if filePath == "" {
		return nil
	}
	logger.L.Info("Loading historical exchange rates", "path", filePath)
	file, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.L.Info("Exchange rate file not found, keeping configured defaults", "path", filePath)
			return nil
		}
		return fmt.Errorf("error reading historical exchange rate file '%s': %w", filePath, err)
	}

	var data models.ExchangeRateFile
	if err := json.Unmarshal(file, &data); err != nil {
		return fmt.Errorf("error unmarshalling historical exchange rates from '%s': %w", filePath, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, obs := range data.Root.Obs {
		day, err := time.Parse("2006-01-02", obs.TimePeriod)
		if err != nil {
			logger.L.Warn("Skipping exchange rate with invalid date", "date", obs.TimePeriod, "currency", obs.Ccy)
			continue
		}
		rate, err := strconv.ParseFloat(obs.ObsValue, 64)
		if err != nil || rate <= 0 {
			logger.L.Warn("Invalid exchange rate value in data", "currency", obs.Ccy, "date", obs.TimePeriod, "value", obs.ObsValue)
			continue
		}
		ccy := strings.ToUpper(obs.Ccy)
		if prev, ok := t.asOf[ccy]; ok && prev.After(day) {
			continue
		}
		t.perUSD[ccy] = rate
		t.asOf[ccy] = day
	}
	logger.L.Info("Historical exchange rates loaded successfully.", "path", filePath, "observationCount", len(data.Root.Obs))
	return nil
}

// Rate returns units of currency per one USD.
func (t *FXTable) Rate(currency string) (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rate, ok := t.perUSD[strings.ToUpper(currency)]
	if !ok {
		return 0, fmt.Errorf("exchange rate not found for %s", currency)
	}
	return rate, nil
}

// Convert re-expresses amount from one currency in another.
func (t *FXTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) || from == "" {
		return amount, nil
	}
	fromRate, err := t.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := t.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(decimal.NewFromFloat(fromRate)).Mul(decimal.NewFromFloat(toRate)), nil
}
