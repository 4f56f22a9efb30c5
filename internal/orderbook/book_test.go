package orderbook_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

func mustBook(t *testing.T) (*orderbook.Book, *product.Product) {
	t.Helper()
	p, err := product.New("BTC-USD", currency.USD, currency.BTC, "0.01", "0.0001")
	require.NoError(t, err)
	return orderbook.NewBook(p, store.NewMemory(), orderbook.NewDirtyTracker()), p
}

func open(t *testing.T, seq int64, side product.Side, size, price, orderID string) *orderbook.Order {
	t.Helper()
	o, err := orderbook.New("BTC-USD", seq, side, size, price,
		orderbook.WithOrderID(orderID),
		orderbook.WithCreatedAt(time.Unix(1700000000+seq, 0).UTC()),
	)
	require.NoError(t, err)
	return o
}

// TestApplyMaintainsSumInvariant asserts spec.md §8 S1: the sum of
// per-price level sums always equals the sum of per-order sizes.
func TestApplyMaintainsSumInvariant(t *testing.T) {
	b, _ := mustBook(t)
	ctx := context.Background()

	require.NoError(t, b.Apply(ctx, open(t, 1, orderbook.Bid, "1.0", "100.00", "o1")))
	require.NoError(t, b.Apply(ctx, open(t, 2, orderbook.Bid, "2.0", "100.00", "o2")))
	require.NoError(t, b.Apply(ctx, open(t, 3, orderbook.Bid, "0.5", "99.50", "o3")))

	sumOfSums, sumOfOrders := b.SumOfSizes(orderbook.Bid)
	assert.True(t, sumOfSums.Equal(sumOfOrders), "sums %s orders %s", sumOfSums, sumOfOrders)
	assert.True(t, sumOfSums.Equal(decimal.RequireFromString("3.5")))
}

// TestApplyIgnoresStaleSequence asserts an event at or below the
// book's current sequence id is a silent no-op.
func TestApplyIgnoresStaleSequence(t *testing.T) {
	b, _ := mustBook(t)
	ctx := context.Background()
	require.NoError(t, b.Apply(ctx, open(t, 5, orderbook.Bid, "1.0", "100.00", "o1")))

	stale, err := orderbook.New("BTC-USD", 3, orderbook.Bid, "9.0", "200.00", orderbook.WithOrderID("stale"))
	require.NoError(t, err)
	err = b.Apply(ctx, stale)
	assert.ErrorIs(t, err, orderbook.ErrSequence)

	sumOfSums, _ := b.SumOfSizes(orderbook.Bid)
	assert.True(t, sumOfSums.Equal(decimal.RequireFromString("1.0")))
}

// TestApplyRejectsProductMismatch asserts a fatal mismatch is reported
// rather than silently swallowed.
func TestApplyRejectsProductMismatch(t *testing.T) {
	b, _ := mustBook(t)
	bad, err := orderbook.New("ETH-USD", 1, orderbook.Bid, "1.0", "100.00")
	require.NoError(t, err)
	err = b.Apply(context.Background(), bad)
	assert.ErrorIs(t, err, orderbook.ErrProductMismatch)
}

// TestDoneRemovesOrderAndEmptyLevel asserts a done/filled event removes
// the order and, once the level is empty, the price row too.
func TestDoneRemovesOrderAndEmptyLevel(t *testing.T) {
	b, _ := mustBook(t)
	ctx := context.Background()
	require.NoError(t, b.Apply(ctx, open(t, 1, orderbook.Ask, "1.0", "101.00", "o1")))

	done, err := orderbook.New("BTC-USD", 2, orderbook.Ask, "0", "101.00",
		orderbook.WithOrderID("o1"), orderbook.WithStatus(orderbook.StatusFilled))
	require.NoError(t, err)
	require.NoError(t, b.Apply(ctx, done))

	_, ok := b.GetBest(orderbook.Ask)
	assert.False(t, ok)
}

// TestGetPriceWalksMultipleLevels mirrors the Python original's
// get_price walk across several price rows until depth is satisfied.
func TestGetPriceWalksMultipleLevels(t *testing.T) {
	b, _ := mustBook(t)
	ctx := context.Background()
	require.NoError(t, b.Apply(ctx, open(t, 1, orderbook.Ask, "1.0", "100.00", "a")))
	require.NoError(t, b.Apply(ctx, open(t, 2, orderbook.Ask, "1.0", "101.00", "b")))
	require.NoError(t, b.Apply(ctx, open(t, 3, orderbook.Ask, "1.0", "102.00", "c")))

	q := b.GetPrice(orderbook.Ask, decimal.RequireFromString("1.5"))
	require.False(t, q.Empty)
	assert.True(t, q.Best.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, q.Worst.Equal(decimal.RequireFromString("101.00")))
	assert.True(t, q.Excess.Equal(decimal.RequireFromString("0.5")))
}

// TestSpreadLockedDetectsNoRoom asserts a one-increment-wide spread is
// reported as locked.
func TestSpreadLockedDetectsNoRoom(t *testing.T) {
	b, _ := mustBook(t)
	ctx := context.Background()
	require.NoError(t, b.Apply(ctx, open(t, 1, orderbook.Bid, "1.0", "100.00", "bid1")))
	require.NoError(t, b.Apply(ctx, open(t, 2, orderbook.Ask, "1.0", "100.01", "ask1")))
	assert.True(t, b.SpreadLocked())
}

func TestTradeQuantitiesBucketedBySecond(t *testing.T) {
	b, _ := mustBook(t)
	ctx := context.Background()
	match := func(seq int64, size string, sec int64) *orderbook.Order {
		o, err := orderbook.New("BTC-USD", seq, orderbook.Bid, size, "100.00",
			orderbook.WithType(orderbook.TypeMatch), orderbook.WithCreatedAt(time.Unix(sec, 0).UTC()))
		require.NoError(t, err)
		return o
	}
	require.NoError(t, b.Apply(ctx, match(1, "1.0", 1000)))
	require.NoError(t, b.Apply(ctx, match(2, "2.0", 1000)))
	require.NoError(t, b.Apply(ctx, match(3, "0.5", 1005)))

	vals := b.GetTradeQuantities(orderbook.Bid, orderbook.TypeMatch, 1005, 10, 0)
	require.Len(t, vals, 2)
	mean, ok := orderbook.Mean(vals)
	require.True(t, ok)
	assert.True(t, mean.Equal(decimal.RequireFromString("1.75")))
}
