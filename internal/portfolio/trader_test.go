package portfolio_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/network"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/portfolio"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

// traderFixture is a single BTC-USD product with a hand-seeded network
// cycle (USD->BTC->USD) profitable enough to clear MIN_CYCLE_RETURN,
// built directly via network.Manager.AddEdge rather than through a book,
// since no order-book ladder is needed to exercise the cycle-walking
// trade-selection logic itself.
func traderFixture(t *testing.T) (*portfolio.Ledger, *network.Manager) {
	t.Helper()
	products := product.NewManager()
	btcUSD, err := product.New("BTC-USD", currency.USD, currency.BTC, "0.01", "0.0001")
	require.NoError(t, err)
	products.AddProduct(btcUSD)

	own := portfolio.NewOwnOrderBook(products)
	books := orderbook.NewManager(products, store.NewMemory(), orderbook.NewDirtyTracker())
	net := network.NewManager()
	ledger := portfolio.NewLedger(products, own, books, net, store.NewMemory())

	ctx := context.Background()
	ledger.Credit(ctx, currency.USD, decimal.RequireFromString("1000"))
	ledger.Credit(ctx, currency.BTC, decimal.RequireFromString("10"))

	// Currency-normalized price graph: drives cycle-value ranking and
	// GetValuation's USD conversion. 1 USD -> 0.01 BTC -> 102 USD is a
	// round trip worth 1.02, comfortably above MIN_CYCLE_RETURN (1.005).
	net.AddEdge(network.EdgeBest, network.QuoteCurrency, currency.USD, currency.BTC, decimal.RequireFromString("0.01"), nil)
	net.AddEdge(network.EdgeBest, network.QuoteCurrency, currency.BTC, currency.USD, decimal.RequireFromString("102"), nil)

	// Product-quote price graph, with available quantity: drives the
	// actual order price/size NextTrades builds.
	bidQty := decimal.RequireFromString("5")
	askQty := decimal.RequireFromString("2")
	net.AddEdge(network.EdgeBest, network.QuoteProduct, currency.USD, currency.BTC, decimal.RequireFromString("100.00"), &bidQty)
	net.AddEdge(network.EdgeBest, network.QuoteProduct, currency.BTC, currency.USD, decimal.RequireFromString("102.00"), &askQty)

	return ledger, net
}

// TestNextTradesEmitsOneOrderPerCurrencyForProfitableCycle mirrors the
// commented-out serial_trader.py scenario: a single profitable cycle
// should yield exactly one maker order per tradeable currency, each
// converting that currency into the cycle's next hop at the network's
// product-quote price, sized off the available balance and clipped to
// the network's resting quantity.
func TestNextTradesEmitsOneOrderPerCurrencyForProfitableCycle(t *testing.T) {
	ledger, net := traderFixture(t)
	trader := portfolio.NewTrader(ledger, net, network.EdgeBest, 1.005)

	orders := trader.NextTrades(context.Background())
	require.Len(t, orders, 2)

	// Currencies walk in rank order (BTC=3 before USD=4), so the BTC->USD
	// sell clips to the 2 BTC resting on the ask edge before the USD->BTC
	// buy is considered.
	sell := orders[0]
	assert.Equal(t, "BTC-USD", sell.ProductID)
	assert.Equal(t, product.Ask, sell.Side)
	assert.True(t, sell.Price.Equal(decimal.RequireFromString("102")), "got price %s", sell.Price)
	assert.True(t, sell.Size.Equal(decimal.RequireFromString("2")), "got size %s", sell.Size)
	assert.Equal(t, orderbook.StatusUnconfirmed, sell.Status)

	buy := orders[1]
	assert.Equal(t, "BTC-USD", buy.ProductID)
	assert.Equal(t, product.Bid, buy.Side)
	assert.True(t, buy.Price.Equal(decimal.RequireFromString("100")), "got price %s", buy.Price)
	assert.True(t, buy.Size.Equal(decimal.RequireFromString("5")), "got size %s", buy.Size)
	assert.Equal(t, orderbook.StatusUnconfirmed, buy.Status)
}

// TestNextTradesSkipsCycleBelowMinCycleReturn asserts a cycle that
// doesn't clear MinCycleReturn produces no orders at all.
func TestNextTradesSkipsCycleBelowMinCycleReturn(t *testing.T) {
	ledger, net := traderFixture(t)
	trader := portfolio.NewTrader(ledger, net, network.EdgeBest, 1.5)

	orders := trader.NextTrades(context.Background())
	assert.Empty(t, orders)
}

// TestGetMaxCurrencyDeltasUsesValuationAndDefaultFractionBounds mirrors
// get_max_currency_deltas: with default [0,1] fraction bounds every
// currency may move its entire valued balance in either direction.
func TestGetMaxCurrencyDeltasUsesValuationAndDefaultFractionBounds(t *testing.T) {
	ledger, net := traderFixture(t)
	trader := portfolio.NewTrader(ledger, net, network.EdgeBest, 1.005)

	deltas := trader.GetMaxCurrencyDeltas(context.Background())
	require.Contains(t, deltas, currency.USD)
	require.Contains(t, deltas, currency.BTC)

	usd := deltas[currency.USD]
	assert.True(t, usd.MaxDecrease.Equal(decimal.RequireFromString("1000")), "got %s", usd.MaxDecrease)
	assert.True(t, usd.MaxIncrease.Equal(decimal.RequireFromString("1020")), "got %s", usd.MaxIncrease)

	btc := deltas[currency.BTC]
	assert.True(t, btc.MaxDecrease.Equal(decimal.RequireFromString("10")), "got %s", btc.MaxDecrease)
	wantBTCIncrease := decimal.RequireFromString("1000").Div(decimal.RequireFromString("102"))
	assert.True(t, btc.MaxIncrease.Equal(wantBTCIncrease), "got %s", btc.MaxIncrease)
}

// TestGetMaxCurrencyDeltasClipsToOperatorFractionOverride asserts a
// narrower operator-override fraction band tightens both directions, and
// clamps a would-be-negative max to zero instead of going negative.
func TestGetMaxCurrencyDeltasClipsToOperatorFractionOverride(t *testing.T) {
	ledger, net := traderFixture(t)
	require.NoError(t, ledger.SetFractionOverride(context.Background(), currency.BTC, decimal.RequireFromString("0.2"), decimal.RequireFromString("0.4")))
	trader := portfolio.NewTrader(ledger, net, network.EdgeBest, 1.005)

	deltas := trader.GetMaxCurrencyDeltas(context.Background())
	btc := deltas[currency.BTC]

	// max(0.4)*total(2020) - FinalQty(1020) is negative, so MaxIncrease
	// floors at zero rather than reporting a negative headroom.
	assert.True(t, btc.MaxIncrease.IsZero(), "got %s", btc.MaxIncrease)

	wantDecrease := decimal.RequireFromString("1020").
		Sub(decimal.RequireFromString("0.2").Mul(decimal.RequireFromString("2020"))).
		Div(decimal.RequireFromString("102"))
	assert.True(t, btc.MaxDecrease.Equal(wantDecrease), "got %s", btc.MaxDecrease)
}
