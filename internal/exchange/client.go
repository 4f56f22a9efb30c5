// Package exchange defines the REST collaborator surface: snapshot
// bootstrap, trade-history bootstrap, order placement/cancellation,
// and account balances. Client stands in for the out-of-scope live
// websocket/REST integration; Paper is a self-contained in-memory
// implementation used for dry runs, tests, and as the default when no
// live credentials are configured.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/feed"
	"github.com/chidi150c/currencycycle/internal/product"
)

// BookLevel is one resting price level returned by a snapshot.
type BookLevel struct {
	Price string
	Size  string
}

// Snapshot is the REST-fetched initial state of one product's order
// book, used to seed internal/orderbook.Book before the websocket feed
// takes over, per spec.md §6.
type Snapshot struct {
	ProductID  string
	SequenceID int64
	Bids       []BookLevel
	Asks       []BookLevel
}

// PlacedOrder is what the exchange hands back after accepting a maker
// order.
type PlacedOrder struct {
	OrderID   string
	ProductID string
	Side      product.Side
	Price     decimal.Decimal
	Size      decimal.Decimal
}

// Client is the REST collaborator every stage that talks to the
// exchange depends on, injected so Paper can stand in during tests and
// dry runs.
type Client interface {
	// GetSnapshot fetches the current order book state for productID,
	// used to bootstrap a Book before live feed events apply.
	GetSnapshot(ctx context.Context, productID string) (Snapshot, error)

	// GetTradeHistory fetches recent matches for productID, used to
	// bootstrap a Book's trade-history window.
	GetTradeHistory(ctx context.Context, productID string, sinceUnix int64) ([]feed.Event, error)

	// PlaceOrder submits a maker (post-only) limit order.
	PlaceOrder(ctx context.Context, productID string, side product.Side, price, size decimal.Decimal) (PlacedOrder, error)

	// CancelOrder cancels one resting order.
	CancelOrder(ctx context.Context, productID, orderID string) error

	// CancelAllOrders cancels every resting order for productID (or
	// every product if productID is empty), used by cmd/cancelall.
	CancelAllOrders(ctx context.Context, productID string) error

	// GetBalances fetches account balances, keyed by currency.
	GetBalances(ctx context.Context) (map[currency.Currency]decimal.Decimal, error)
}
