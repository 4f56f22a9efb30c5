// Package product defines immutable trading-pair metadata, the
// bid/ask-to-currency-direction mapping, and the decimal rounding and
// currency-conversion helpers every other component relies on.
//
// All arithmetic here is exact decimal (github.com/shopspring/decimal):
// a price or size that can feed back into order sizing or accounting
// must never touch binary floating point.
package product

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
)

// Side is the side of a resting order: bid spends quote for base, ask
// spends base for quote.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// ErrBadProduct is returned for structurally invalid product definitions.
var ErrBadProduct = errors.New("product: invalid definition")

// Product is an immutable currency-pair tuple.
type Product struct {
	ID             string
	QuoteCurrency  currency.Currency
	BaseCurrency   currency.Currency
	QuoteIncrement decimal.Decimal
	BaseMinSize    decimal.Decimal
}

// New validates and constructs a Product. quoteIncrement and
// baseMinSize are decimal strings, matching the feed's string fidelity.
func New(id string, quoteCurrency, baseCurrency currency.Currency, quoteIncrement, baseMinSize string) (*Product, error) {
	if quoteCurrency == baseCurrency {
		return nil, fmt.Errorf("%w: quote and base currency must differ (%s)", ErrBadProduct, quoteCurrency)
	}
	qi, err := decimal.NewFromString(quoteIncrement)
	if err != nil || !qi.IsPositive() {
		return nil, fmt.Errorf("%w: quote_increment must be a positive decimal, got %q", ErrBadProduct, quoteIncrement)
	}
	bms, err := decimal.NewFromString(baseMinSize)
	if err != nil || !bms.IsPositive() {
		return nil, fmt.Errorf("%w: base_min_size must be a positive decimal, got %q", ErrBadProduct, baseMinSize)
	}
	return &Product{
		ID:             id,
		QuoteCurrency:  quoteCurrency,
		BaseCurrency:   baseCurrency,
		QuoteIncrement: qi,
		BaseMinSize:    bms,
	}, nil
}

// CurrencySet returns {quote, base}.
func (p *Product) CurrencySet() map[currency.Currency]struct{} {
	return map[currency.Currency]struct{}{p.QuoteCurrency: {}, p.BaseCurrency: {}}
}

// HasCurrency reports whether c is one of the product's two currencies.
func (p *Product) HasCurrency(c currency.Currency) bool {
	return c == p.QuoteCurrency || c == p.BaseCurrency
}

// Source returns the currency a resting order on side spends.
// Bid spends quote for base; ask spends base for quote.
func (p *Product) Source(side Side) currency.Currency {
	if side == Bid {
		return p.QuoteCurrency
	}
	return p.BaseCurrency
}

// Destination returns the currency a resting order on side receives.
func (p *Product) Destination(side Side) currency.Currency {
	if side == Bid {
		return p.BaseCurrency
	}
	return p.QuoteCurrency
}

// SideFromDirection returns the side that converts src into dst, or
// false when {src, dst} isn't this product's currency set.
func (p *Product) SideFromDirection(src, dst currency.Currency) (Side, bool) {
	set := p.CurrencySet()
	if _, ok := set[src]; !ok {
		return 0, false
	}
	if _, ok := set[dst]; !ok {
		return 0, false
	}
	if src == dst {
		return 0, false
	}
	for _, side := range []Side{Bid, Ask} {
		if p.Source(side) == src {
			return side, true
		}
	}
	return 0, false
}

// LowerPrice rounds price to the quote increment (banker's rounding)
// then steps one increment down.
func (p *Product) LowerPrice(price string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, err
	}
	return roundHalfEven(d, p.QuoteIncrement).Sub(p.QuoteIncrement), nil
}

// HigherPrice rounds price to the quote increment (banker's rounding)
// then steps one increment up.
func (p *Product) HigherPrice(price string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, err
	}
	return roundHalfEven(d, p.QuoteIncrement).Add(p.QuoteIncrement), nil
}

// RoundPrice rounds price to the quote increment using banker's
// rounding (round-half-even).
func (p *Product) RoundPrice(price string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, err
	}
	return roundHalfEven(d, p.QuoteIncrement), nil
}

// RoundQuantity rounds quantity down to a multiple of the base minimum
// size, toward zero, so we never oversize an order.
func (p *Product) RoundQuantity(quantity decimal.Decimal) decimal.Decimal {
	return roundDown(quantity, p.BaseMinSize)
}

// QuoteToCurrencyPrice converts a product-native quote price into a
// currency-normalized price for c: identity when c is the quote
// currency, else the reciprocal.
func (p *Product) QuoteToCurrencyPrice(c currency.Currency, price decimal.Decimal) decimal.Decimal {
	if c == p.QuoteCurrency {
		return price
	}
	if price.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Div(price)
}

// QuoteQuantityFromCurrencyQuantity converts a quantity denominated in
// c into the product's quote-quantity currency (the base currency):
// identity when c is the base currency, else divided by price.
func (p *Product) QuoteQuantityFromCurrencyQuantity(c currency.Currency, qty, quotePrice decimal.Decimal) decimal.Decimal {
	if c == p.BaseCurrency {
		return qty
	}
	if quotePrice.IsZero() {
		return decimal.Zero
	}
	return qty.Div(quotePrice)
}

// CurrencyQuantityFromQuoteQuantity converts a quote-denominated
// quantity into currency c: identity when c is the base currency, else
// multiplied by price.
func (p *Product) CurrencyQuantityFromQuoteQuantity(c currency.Currency, qty, quotePrice decimal.Decimal) decimal.Decimal {
	if c == p.BaseCurrency {
		return qty
	}
	return qty.Mul(quotePrice)
}

// roundHalfEven rounds d to the nearest multiple of increment, ties to
// even, matching Python's Decimal.quantize(ROUND_HALF_EVEN).
func roundHalfEven(d, increment decimal.Decimal) decimal.Decimal {
	if increment.IsZero() {
		return d
	}
	quotient := d.Div(increment)
	rounded := quotient.RoundBank(0)
	return rounded.Mul(increment)
}

// roundDown rounds d down (toward zero) to the nearest multiple of
// increment, matching Python's Decimal.quantize(ROUND_DOWN).
func roundDown(d, increment decimal.Decimal) decimal.Decimal {
	if increment.IsZero() {
		return d
	}
	quotient := d.Div(increment)
	rounded := quotient.Truncate(0)
	return rounded.Mul(increment)
}
