package orchestrator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/currencycycle/internal/feed"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/product"
)

func TestOrderFromEventDoneFilledIsAMatchWithRemainingSize(t *testing.T) {
	e := feed.Event{
		Type:      feed.EventDone,
		ProductID: "BTC-USD",
		OrderID:   "o1",
		Side:      "buy",
		Price:     "100",
		Size:      "0.25",
		Reason:    "filled",
	}
	o, err := orderFromEvent(e)
	require.NoError(t, err)
	assert.Equal(t, orderbook.TypeMatch, o.Type)
	assert.Equal(t, orderbook.StatusFilled, o.Status)
	assert.True(t, o.Size.Equal(mustDecimal(t, "0.25")))
}

func TestOrderFromEventDoneCanceledIsACancelWithRemainingSize(t *testing.T) {
	e := feed.Event{
		Type:      feed.EventDone,
		ProductID: "BTC-USD",
		OrderID:   "o1",
		Side:      "sell",
		Price:     "100",
		Size:      "0.75",
		Reason:    "canceled",
	}
	o, err := orderFromEvent(e)
	require.NoError(t, err)
	assert.Equal(t, orderbook.TypeCancel, o.Type)
	assert.Equal(t, orderbook.StatusCanceled, o.Status)
	assert.True(t, o.Size.Equal(mustDecimal(t, "0.75")))
	assert.Equal(t, product.Ask, o.Side)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimalOrZero(s)
	require.NoError(t, err)
	return d
}
