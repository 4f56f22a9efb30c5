package orderbook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/logging"
	"github.com/chidi150c/currencycycle/internal/metrics"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

var errStoreDown = errors.New("store unavailable")

// failingStore satisfies store.Store and fails every write, to
// exercise Book's error reporting path without a real backend.
type failingStore struct{ store.Store }

func newFailingStore() failingStore { return failingStore{store.NewMemory()} }

func (failingStore) UpsertPriceLevel(context.Context, string, string, string, decimal.Decimal) error {
	return errStoreDown
}
func (failingStore) DeletePriceLevel(context.Context, string, string, string) error {
	return errStoreDown
}
func (failingStore) SetOrderSize(context.Context, string, string, string, string, decimal.Decimal) error {
	return errStoreDown
}
func (failingStore) DeleteOrder(context.Context, string, string, string, string) error {
	return errStoreDown
}
func (failingStore) IncrTradeBucket(context.Context, string, string, string, int64, decimal.Decimal) error {
	return errStoreDown
}
func (failingStore) Close() error { return nil }

// TestApplyLogsAndCountsStoreErrorsWithoutFailing asserts a Store
// failure is reported (logged + metrics.StoreErrorsTotal incremented)
// but never stops the book from applying the event in memory, per
// spec.md §7's StoreError handling.
func TestApplyLogsAndCountsStoreErrorsWithoutFailing(t *testing.T) {
	p, err := product.New("BTC-USD", currency.USD, currency.BTC, "0.01", "0.0001")
	require.NoError(t, err)
	b := orderbook.NewBook(p, newFailingStore(), orderbook.NewDirtyTracker())

	logger := logging.NewLogger(16)
	b.SetLogger(logger)

	before := testutil.ToFloat64(metrics.StoreErrorsTotal.WithLabelValues("upsert_price_level"))

	o, err := orderbook.New("BTC-USD", 1, orderbook.Bid, "1.0", "100.00",
		orderbook.WithOrderID("o1"), orderbook.WithCreatedAt(time.Unix(1700000000, 0).UTC()))
	require.NoError(t, err)
	require.NoError(t, b.Apply(context.Background(), o))

	after := testutil.ToFloat64(metrics.StoreErrorsTotal.WithLabelValues("upsert_price_level"))
	assert.Equal(t, before+1, after)

	sumOfSums, sumOfOrders := b.SumOfSizes(orderbook.Bid)
	assert.True(t, sumOfSums.Equal(decimal.RequireFromString("1.0")))
	assert.True(t, sumOfOrders.Equal(decimal.RequireFromString("1.0")))
}

// TestApplyToleratesNilLogger asserts a Book with no logger attached
// still applies successfully despite every Store write failing.
func TestApplyToleratesNilLogger(t *testing.T) {
	p, err := product.New("BTC-USD", currency.USD, currency.BTC, "0.01", "0.0001")
	require.NoError(t, err)
	b := orderbook.NewBook(p, newFailingStore(), orderbook.NewDirtyTracker())

	o, err := orderbook.New("BTC-USD", 1, orderbook.Bid, "1.0", "100.00", orderbook.WithOrderID("o1"))
	require.NoError(t, err)
	assert.NoError(t, b.Apply(context.Background(), o))
}
