package domain

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var errEmptyAmount = errors.New("empty amount")

// ParseAmount parses a price given as a string ("12.50", "$1,299.00") and rounds it to cents
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, errEmptyAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Round(2).InexactFloat64(), nil
}

// ParseRawAmount parses a price that may be a JSON string or a JSON number
func ParseRawAmount(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errEmptyAmount
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseAmount(s)
	}
	return ParseAmount(string(raw))
}

// CurrencyFromSymbol maps a currency symbol or code to an ISO code, defaulting to USD
func CurrencyFromSymbol(s string) string {
	switch strings.TrimSpace(s) {
	case "", "$", "USD", "usd":
		return "USD"
	case "€", "EUR", "eur":
		return "EUR"
	case "£", "GBP", "gbp":
		return "GBP"
	case "C$", "CAD", "cad":
		return "CAD"
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
