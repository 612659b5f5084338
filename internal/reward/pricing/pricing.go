// Package pricing converts item prices between display currencies.
// Conversion is display-only: redemptions always charge the item's
// stored points cost, never a client-computed figure.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"engage-rewards-service/internal/model"
)

// Errors for currency resolution.
var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidRate     = errors.New("currency rate must be positive")
)

// Converter resolves display prices between currencies from a
// configured rate table. Rates are expressed as units of the currency
// per one unit of the base currency; the base itself is implicitly 1.
type Converter struct {
	base  string
	rates map[string]float64
}

// normalizeCode upper-cases an ISO 4217 currency code.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewConverter builds a converter from configuration.
func NewConverter(base string, rates map[string]float64) (*Converter, error) {
	normalized := make(map[string]float64, len(rates)+1)
	for code, rate := range rates {
		if rate <= 0 {
			return nil, fmt.Errorf("%w: %s = %f", ErrInvalidRate, code, rate)
		}
		normalized[normalizeCode(code)] = rate
	}
	base = normalizeCode(base)
	normalized[base] = 1

	return &Converter{base: base, rates: normalized}, nil
}

// Base returns the base currency code.
func (c *Converter) Base() string {
	return c.base
}

// Supports reports whether a currency has a configured rate.
func (c *Converter) Supports(code string) bool {
	_, ok := c.rates[normalizeCode(code)]
	return ok
}

// Convert moves an amount from one currency to another, rounding to
// two decimal places.
func (c *Converter) Convert(amount float64, from, to string) (float64, error) {
	fromRate, ok := c.rates[normalizeCode(from)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	toRate, ok := c.rates[normalizeCode(to)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}

	converted := amount / fromRate * toRate
	return math.Round(converted*100) / 100, nil
}

// DisplayCost returns an item's fiat-equivalent price in the requested
// display currency, resolved from the item's own currency. The points
// charge itself is untouched by any of this.
func (c *Converter) DisplayCost(item model.RedeemableItem, displayCurrency string) (float64, error) {
	return c.Convert(float64(item.PointsCost), item.Currency, displayCurrency)
}
