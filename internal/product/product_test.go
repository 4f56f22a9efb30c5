package product_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/product"
)

func mustProduct(t *testing.T) *product.Product {
	t.Helper()
	p, err := product.New("BTC-USD", currency.USD, currency.BTC, "0.01", "0.01")
	require.NoError(t, err)
	return p
}

func TestNewRejectsSameCurrency(t *testing.T) {
	_, err := product.New("USD-USD", currency.USD, currency.USD, "0.01", "0.01")
	assert.ErrorIs(t, err, product.ErrBadProduct)
}

func TestSourceDestination(t *testing.T) {
	p := mustProduct(t)
	assert.Equal(t, currency.USD, p.Source(product.Bid))
	assert.Equal(t, currency.BTC, p.Destination(product.Bid))
	assert.Equal(t, currency.BTC, p.Source(product.Ask))
	assert.Equal(t, currency.USD, p.Destination(product.Ask))
}

func TestSideFromDirection(t *testing.T) {
	p := mustProduct(t)
	side, ok := p.SideFromDirection(currency.USD, currency.BTC)
	require.True(t, ok)
	assert.Equal(t, product.Bid, side)

	side, ok = p.SideFromDirection(currency.BTC, currency.USD)
	require.True(t, ok)
	assert.Equal(t, product.Ask, side)

	_, ok = p.SideFromDirection(currency.USD, currency.ETH)
	assert.False(t, ok)
}

func TestRoundingHalfEven(t *testing.T) {
	p := mustProduct(t)
	lower, err := p.LowerPrice("10.005")
	require.NoError(t, err)
	// 10.005 rounds to 10.00 (half-even on the .00 -> .01 boundary), minus 0.01
	assert.True(t, lower.Equal(decimal.RequireFromString("9.99")), "got %s", lower)

	higher, err := p.HigherPrice("10.005")
	require.NoError(t, err)
	assert.True(t, higher.Equal(decimal.RequireFromString("10.01")), "got %s", higher)
}

func TestRoundQuantityAlwaysDown(t *testing.T) {
	p := mustProduct(t)
	q := p.RoundQuantity(decimal.RequireFromString("1.2399"))
	assert.True(t, q.Equal(decimal.RequireFromString("1.23")), "got %s", q)
	assert.True(t, q.LessThanOrEqual(decimal.RequireFromString("1.2399")))
}

func TestQuoteCurrencyConversions(t *testing.T) {
	p := mustProduct(t)
	price := decimal.RequireFromString("100")
	// USD is the quote currency: identity.
	assert.True(t, p.QuoteToCurrencyPrice(currency.USD, price).Equal(price))
	// BTC is the base currency: reciprocal.
	assert.True(t, p.QuoteToCurrencyPrice(currency.BTC, price).Equal(decimal.RequireFromString("0.01")))
}

func TestQuantityConversions(t *testing.T) {
	p := mustProduct(t)
	price := decimal.RequireFromString("100")
	qty := decimal.RequireFromString("10")

	// base currency (BTC) quantities pass through quote-quantity unchanged
	assert.True(t, p.QuoteQuantityFromCurrencyQuantity(currency.BTC, qty, price).Equal(qty))
	// quote currency (USD) quantities are divided by price to get base units
	assert.True(t, p.QuoteQuantityFromCurrencyQuantity(currency.USD, qty, price).Equal(decimal.RequireFromString("0.1")))

	assert.True(t, p.CurrencyQuantityFromQuoteQuantity(currency.BTC, qty, price).Equal(qty))
	assert.True(t, p.CurrencyQuantityFromQuoteQuantity(currency.USD, qty, price).Equal(decimal.RequireFromString("1000")))
}
