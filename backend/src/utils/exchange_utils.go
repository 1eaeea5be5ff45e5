package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/username/esopfolio/backend/src/logger"
)

// ExchangeInfo describes how a ticker suffix or prefix maps to a market.
type ExchangeInfo struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Country  string `json:"country"` // ISO alpha-2
	Currency string `json:"currency"`
}

var (
	exchangeMu sync.RWMutex
	// Keys are upper-case suffixes without the dot (".NS" -> "NS") or
	// prefixes without the colon ("NSE:" -> "NSE").
	exchangeMap = map[string]ExchangeInfo{
		"NS":     {Code: "NS", Name: "National Stock Exchange of India", Country: "IN", Currency: "INR"},
		"NSE":    {Code: "NSE", Name: "National Stock Exchange of India", Country: "IN", Currency: "INR"},
		"BO":     {Code: "BO", Name: "BSE", Country: "IN", Currency: "INR"},
		"BSE":    {Code: "BSE", Name: "BSE", Country: "IN", Currency: "INR"},
		"BOM":    {Code: "BOM", Name: "BSE", Country: "IN", Currency: "INR"},
		"US":     {Code: "US", Name: "US composite", Country: "US", Currency: "USD"},
		"NASDAQ": {Code: "NASDAQ", Name: "Nasdaq", Country: "US", Currency: "USD"},
		"NYSE":   {Code: "NYSE", Name: "New York Stock Exchange", Country: "US", Currency: "USD"},
		"L":      {Code: "L", Name: "London Stock Exchange", Country: "GB", Currency: "GBP"},
		"TO":     {Code: "TO", Name: "Toronto Stock Exchange", Country: "CA", Currency: "CAD"},
		"DE":     {Code: "DE", Name: "XETRA", Country: "DE", Currency: "EUR"},
		"PA":     {Code: "PA", Name: "Euronext Paris", Country: "FR", Currency: "EUR"},
		"AS":     {Code: "AS", Name: "Euronext Amsterdam", Country: "NL", Currency: "EUR"},
		"HK":     {Code: "HK", Name: "Hong Kong Stock Exchange", Country: "HK", Currency: "HKD"},
		"T":      {Code: "T", Name: "Tokyo Stock Exchange", Country: "JP", Currency: "JPY"},
	}
)

// LoadExchangeData merges exchange definitions from a JSON file into the
// built-in table. A missing path is not an error.
func LoadExchangeData(filePath string) error {
	if filePath == "" {
		return nil
	}
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.L.Info("Exchange data file not found, using built-in table", "path", filePath)
			return nil
		}
		return fmt.Errorf("failed to read exchange data file '%s': %w", filePath, err)
	}

	var exchanges []ExchangeInfo
	if err := json.Unmarshal(fileData, &exchanges); err != nil {
		return fmt.Errorf("failed to unmarshal exchange data from '%s': %w", filePath, err)
	}

	exchangeMu.Lock()
	defer exchangeMu.Unlock()
	for _, ex := range exchanges {
		exchangeMap[strings.ToUpper(ex.Code)] = ex
	}
	logger.L.Info("Exchange data loaded successfully.", "path", filePath, "exchangeCount", len(exchangeMap))
	return nil
}

// LookupExchange resolves the market of a ticker from its exchange suffix
// (AAPL.NS) or prefix (NSE:INFY). A bare ticker reports found=false and bare=true.
// A one-letter suffix that names no exchange is a US share class (BRK.B) and
// also reports bare.
func LookupExchange(ticker string) (info ExchangeInfo, found bool, bare bool) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	var code string
	suffix := false
	if i := strings.Index(t, ":"); i > 0 {
		code = t[:i]
	} else if i := strings.LastIndex(t, "."); i > 0 && i < len(t)-1 {
		code = t[i+1:]
		suffix = true
	} else {
		return ExchangeInfo{}, false, true
	}

	exchangeMu.RLock()
	defer exchangeMu.RUnlock()
	info, found = exchangeMap[code]
	if !found && suffix && len(code) == 1 {
		return ExchangeInfo{}, false, true
	}
	return info, found, false
}

// IsShareClassTicker reports whether ticker carries a share-class suffix
// such as BRK.B rather than an exchange suffix.
func IsShareClassTicker(ticker string) bool {
	t := strings.TrimSpace(ticker)
	if strings.Contains(t, ":") {
		return false
	}
	_, found, bare := LookupExchange(t)
	return !found && bare && strings.Contains(t, ".")
}
