// backend/src/models/grant.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is one uploaded grant row exactly as it arrived. Nothing about it
// is guaranteed beyond the fields existing.
type RawRecord struct {
	Ticker           string `json:"ticker"`
	Company          string `json:"company"`
	GrantDate        string `json:"grantDate"`
	VestingStartDate string `json:"vestingStartDate"`
	VestingEndDate   string `json:"vestingEndDate"`
	Quantity         string `json:"quantity"`
	Vested           string `json:"vested"`
	StrikePrice      string `json:"strikePrice"`
	ExercisePrice    string `json:"exercisePrice"`
	CurrentPrice     string `json:"currentPrice"`
	FMV              string `json:"fmv"`
	Status           string `json:"status"`
	Type             string `json:"type"`
	SalePrice        string `json:"salePrice"`
	SaleDate         string `json:"saleDate"`
	Notes            string `json:"notes"`
}

// Field returns the raw value of a field by its upload column name.
func (r RawRecord) Field(name string) string {
	switch name {
	case "ticker":
		return r.Ticker
	case "company":
		return r.Company
	case "grantDate":
		return r.GrantDate
	case "vestingStartDate":
		return r.VestingStartDate
	case "vestingEndDate":
		return r.VestingEndDate
	case "quantity":
		return r.Quantity
	case "vested":
		return r.Vested
	case "strikePrice":
		return r.StrikePrice
	case "exercisePrice":
		return r.ExercisePrice
	case "currentPrice":
		return r.CurrentPrice
	case "fmv":
		return r.FMV
	case "status":
		return r.Status
	case "type":
		return r.Type
	case "salePrice":
		return r.SalePrice
	case "saleDate":
		return r.SaleDate
	case "notes":
		return r.Notes
	}
	return ""
}

// SetField assigns a raw value by upload column name. Unknown names are ignored
// and reported as false.
func (r *RawRecord) SetField(name, value string) bool {
	switch name {
	case "ticker":
		r.Ticker = value
	case "company":
		r.Company = value
	case "grantDate":
		r.GrantDate = value
	case "vestingStartDate":
		r.VestingStartDate = value
	case "vestingEndDate":
		r.VestingEndDate = value
	case "quantity":
		r.Quantity = value
	case "vested":
		r.Vested = value
	case "strikePrice":
		r.StrikePrice = value
	case "exercisePrice":
		r.ExercisePrice = value
	case "currentPrice":
		r.CurrentPrice = value
	case "fmv":
		r.FMV = value
	case "status":
		r.Status = value
	case "type":
		r.Type = value
	case "salePrice":
		r.SalePrice = value
	case "saleDate":
		r.SaleDate = value
	case "notes":
		r.Notes = value
	default:
		return false
	}
	return true
}

// Status is the lifecycle state of a grant row.
type Status int

const (
	StatusUnknown Status = iota
	StatusUnvested
	StatusVested
	StatusExercised
	StatusSold
	StatusExpired
	StatusLapsed
)

// AllStatuses lists every valid status in display order.
var AllStatuses = []Status{StatusUnvested, StatusVested, StatusExercised, StatusSold, StatusExpired, StatusLapsed}

func (s Status) String() string {
	switch s {
	case StatusUnvested:
		return "Unvested"
	case StatusVested:
		return "Vested"
	case StatusExercised:
		return "Exercised"
	case StatusSold:
		return "Sold"
	case StatusExpired:
		return "Expired"
	case StatusLapsed:
		return "Lapsed"
	}
	return "Unknown"
}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(s string) (Status, bool) {
	needle := strings.TrimSpace(s)
	for _, st := range AllStatuses {
		if strings.EqualFold(needle, st.String()) {
			return st, true
		}
	}
	return StatusUnknown, false
}

// StatusNames returns the accepted status names joined for messages.
func StatusNames() string {
	names := make([]string, len(AllStatuses))
	for i, st := range AllStatuses {
		names[i] = st.String()
	}
	return strings.Join(names, ", ")
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	st, ok := ParseStatus(name)
	if !ok {
		return fmt.Errorf("unknown status %q", name)
	}
	*s = st
	return nil
}

// NormalizedRecord is the canonical typed form of a validated grant row.
type NormalizedRecord struct {
	Ticker           string              `json:"ticker"`
	Company          string              `json:"company"`
	GrantDate        time.Time           `json:"grantDate"`
	VestingStartDate time.Time           `json:"vestingStartDate"`
	VestingEndDate   *time.Time          `json:"vestingEndDate,omitempty"`
	Quantity         decimal.Decimal     `json:"quantity"`
	Vested           decimal.Decimal     `json:"vested"`
	StrikePrice      decimal.NullDecimal `json:"strikePrice"`
	ExercisePrice    decimal.Decimal     `json:"exercisePrice"`
	CurrentPrice     decimal.NullDecimal `json:"currentPrice"`
	FMV              decimal.NullDecimal `json:"fmv"`
	Status           Status              `json:"status"`
	Type             string              `json:"type"`
	SalePrice        decimal.NullDecimal `json:"salePrice"`
	SaleDate         *time.Time          `json:"saleDate,omitempty"`
	Notes            string              `json:"notes,omitempty"`
}

// NeedsMarketPrice reports whether the row is valued at a market price.
func (r NormalizedRecord) NeedsMarketPrice() bool {
	return r.Status == StatusVested || r.Status == StatusExercised
}
