package network_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/network"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

const (
	networkLookback = 24 * 60 * 30
	aggregationTime = 1
)

var qtyMultiplier = decimal.RequireFromString("0.5")

func priceFor(side orderbook.Side) string {
	if side == orderbook.Ask {
		return "400"
	}
	return "100"
}

func betterPriceFor(side orderbook.Side) string {
	if side == orderbook.Ask {
		return "350"
	}
	return "150"
}

func worsePriceFor(side orderbook.Side) string {
	if side == orderbook.Ask {
		return "450"
	}
	return "50"
}

// TestNetworkComputesMeanEdgesAcrossBothSides reproduces the original
// Python package's network test: place a 3-level ladder on each side,
// partially cross each level historically to build trade history, then
// assert the mean-edge next hop for both currencies lands on the exact
// cycle value and hop figures the original computed.
func TestNetworkComputesMeanEdgesAcrossBothSides(t *testing.T) {
	p, err := product.New("BTC-USD", currency.USD, currency.BTC, "0.01", "0.01")
	require.NoError(t, err)

	book := orderbook.NewBook(p, store.NewMemory(), orderbook.NewDirtyTracker())
	nm := network.NewManager()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0).UTC()

	var seq int64
	for _, side := range []orderbook.Side{orderbook.Bid, orderbook.Ask} {
		prices := []string{priceFor(side), betterPriceFor(side), worsePriceFor(side)}
		for idx, price := range prices {
			seq++
			o, err := orderbook.New("BTC-USD", seq, side, "1.0", price,
				orderbook.WithOrderID(intToID(idx)), orderbook.WithCreatedAt(now))
			require.NoError(t, err)
			require.NoError(t, book.Apply(ctx, o))

			seq++
			fill, err := orderbook.New("BTC-USD", seq, side, "0.5", price,
				orderbook.WithOrderID(intToID(idx)), orderbook.WithType(orderbook.TypeMatch),
				orderbook.WithHistorical(true), orderbook.WithCreatedAt(now))
			require.NoError(t, err)
			require.NoError(t, book.Apply(ctx, fill))
		}

		q := book.GetPrice(side, decimal.Zero)
		require.False(t, q.Empty)
		assert.True(t, q.Worst.Equal(decimal.RequireFromString(betterPriceFor(side))), "side %v got %s", side, q.Worst)

		vals := book.GetTradeQuantities(side, orderbook.TypeMatch, now.Unix(), 100, 0)
		mean, ok := orderbook.Mean(vals)
		require.True(t, ok)
		assert.True(t, mean.Equal(decimal.RequireFromString("1.5")), "side %v mean %s", side, mean)
		median, ok := orderbook.Median(vals)
		require.True(t, ok)
		assert.True(t, median.Equal(decimal.RequireFromString("1.5")), "side %v median %s", side, median)

		nm.UpdateFromBook(book, side, now.Unix(), networkLookback, aggregationTime, qtyMultiplier)
	}

	hopsUSD := nm.NextHopsFor(network.EdgeMean, currency.USD)
	require.Len(t, hopsUSD, 1)
	for val, hop := range hopsUSD {
		assert.InDelta(t, 2.3331111259249386, val, 1e-9)
		assert.Equal(t, currency.BTC, hop.Next)
		assert.True(t, hop.Price.Equal(decimal.RequireFromString("150.01")), "got %s", hop.Price)
		assert.True(t, hop.Qty.Equal(decimal.RequireFromString("1.5")), "got %s", hop.Qty)
	}

	hopsBTC := nm.NextHopsFor(network.EdgeMean, currency.BTC)
	require.Len(t, hopsBTC, 1)
	for val, hop := range hopsBTC {
		assert.InDelta(t, 2.3331111259249386, val, 1e-9)
		assert.Equal(t, currency.USD, hop.Next)
		assert.True(t, hop.Price.Equal(decimal.RequireFromString("349.99")), "got %s", hop.Price)
		assert.True(t, hop.Qty.Equal(decimal.RequireFromString("1.5")), "got %s", hop.Qty)
	}
}

func intToID(i int) string {
	return [...]string{"0", "1", "2"}[i]
}
