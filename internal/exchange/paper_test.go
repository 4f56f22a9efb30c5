package exchange_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/exchange"
	"github.com/chidi150c/currencycycle/internal/product"
)

func TestPaperPlaceAndCancelOrder(t *testing.T) {
	p := exchange.NewPaper(map[currency.Currency]decimal.Decimal{
		currency.USD: decimal.RequireFromString("1000"),
	})
	ctx := context.Background()

	placed, err := p.PlaceOrder(ctx, "BTC-USD", product.Bid, decimal.RequireFromString("100"), decimal.RequireFromString("1"))
	require.NoError(t, err)
	assert.NotEmpty(t, placed.OrderID)

	require.NoError(t, p.CancelOrder(ctx, "BTC-USD", placed.OrderID))
	assert.Error(t, p.CancelOrder(ctx, "BTC-USD", placed.OrderID))
}

func TestPaperCancelAllOrdersFiltersByProduct(t *testing.T) {
	p := exchange.NewPaper(nil)
	ctx := context.Background()

	btc, err := p.PlaceOrder(ctx, "BTC-USD", product.Bid, decimal.RequireFromString("100"), decimal.RequireFromString("1"))
	require.NoError(t, err)
	ltc, err := p.PlaceOrder(ctx, "LTC-USD", product.Ask, decimal.RequireFromString("50"), decimal.RequireFromString("2"))
	require.NoError(t, err)

	require.NoError(t, p.CancelAllOrders(ctx, "BTC-USD"))
	assert.Error(t, p.CancelOrder(ctx, "BTC-USD", btc.OrderID))
	assert.NoError(t, p.CancelOrder(ctx, "LTC-USD", ltc.OrderID))
}

func TestPaperGetBalances(t *testing.T) {
	p := exchange.NewPaper(map[currency.Currency]decimal.Decimal{
		currency.USD: decimal.RequireFromString("1000"),
		currency.BTC: decimal.RequireFromString("2"),
	})
	bals, err := p.GetBalances(context.Background())
	require.NoError(t, err)
	assert.True(t, bals[currency.USD].Equal(decimal.RequireFromString("1000")))
	assert.True(t, bals[currency.BTC].Equal(decimal.RequireFromString("2")))
}
