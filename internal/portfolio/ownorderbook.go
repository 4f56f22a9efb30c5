// Package portfolio implements the own-order book, per-currency
// ledger, and cycle-walking trade-selection loop that decides which
// maker orders to place against the network built in internal/network.
package portfolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/product"
)

// OwnOrderBook tracks this instance's own orders, partitioned by
// status, mirroring the Python original's PortfolioOrderBook. Unlike
// internal/orderbook.Book (which mirrors the public order book), this
// type holds exactly the orders this trader has placed.
type OwnOrderBook struct {
	orders   map[orderbook.Status]map[string]*orderbook.Order
	products *product.Manager
}

// NewOwnOrderBook returns an empty own-order book scoped to products.
func NewOwnOrderBook(products *product.Manager) *OwnOrderBook {
	ob := &OwnOrderBook{
		orders:   make(map[orderbook.Status]map[string]*orderbook.Order),
		products: products,
	}
	for _, s := range []orderbook.Status{orderbook.StatusOpen, orderbook.StatusFilled, orderbook.StatusCanceled, orderbook.StatusUnconfirmed} {
		ob.orders[s] = make(map[string]*orderbook.Order)
	}
	return ob
}

// Add registers a new own order, indexed by its current status.
func (ob *OwnOrderBook) Add(o *orderbook.Order) {
	ob.orders[o.Status][o.OrderID] = o
}

// Remove drops order_id from whichever status bucket currently holds
// it and returns it.
func (ob *OwnOrderBook) Remove(orderID string) (*orderbook.Order, error) {
	o, status, ok := ob.find(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	delete(ob.orders[status], orderID)
	return o, nil
}

func (ob *OwnOrderBook) find(orderID string) (*orderbook.Order, orderbook.Status, bool) {
	for status, orders := range ob.orders {
		if o, ok := orders[orderID]; ok {
			return o, status, true
		}
	}
	return nil, 0, false
}

// Orders returns a snapshot of every order in status, keyed by id.
func (ob *OwnOrderBook) Orders(status orderbook.Status) map[string]*orderbook.Order {
	out := make(map[string]*orderbook.Order, len(ob.orders[status]))
	for id, o := range ob.orders[status] {
		out[id] = o
	}
	return out
}

// updateStatus moves order_id from its current bucket into newStatus.
func (ob *OwnOrderBook) updateStatus(orderID string, newStatus orderbook.Status) (*orderbook.Order, error) {
	o, status, ok := ob.find(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	delete(ob.orders[status], orderID)
	o.Status = newStatus
	ob.orders[newStatus][orderID] = o
	return o, nil
}

// MatchOrder records a partial fill against order_id and returns the
// updated order.
func (ob *OwnOrderBook) MatchOrder(orderID string, qty decimal.Decimal) (*orderbook.Order, error) {
	o, _, ok := ob.find(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	o.AddFilledSize(qty)
	return o, nil
}

// FillOrder marks order_id filled.
func (ob *OwnOrderBook) FillOrder(orderID string) (*orderbook.Order, error) {
	return ob.updateStatus(orderID, orderbook.StatusFilled)
}

// CancelOrder marks order_id canceled.
func (ob *OwnOrderBook) CancelOrder(orderID string) (*orderbook.Order, error) {
	return ob.updateStatus(orderID, orderbook.StatusCanceled)
}

// ConfirmOrder marks order_id's exchange acknowledgment received.
func (ob *OwnOrderBook) ConfirmOrder(orderID string) (*orderbook.Order, error) {
	o, _, ok := ob.find(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	o.Confirmed = true
	return o, nil
}

// GetHoldQty sums the source-currency quote quantity of every open
// order whose source currency is cur, converted into cur's own units.
func (ob *OwnOrderBook) GetHoldQty(cur currency.Currency) decimal.Decimal {
	qty := decimal.Zero
	for _, o := range ob.orders[orderbook.StatusOpen] {
		p, ok := ob.products.Product(o.ProductID)
		if !ok {
			continue
		}
		if cur != p.Source(o.Side) {
			continue
		}
		qty = qty.Add(p.CurrencyQuantityFromQuoteQuantity(cur, o.RemainingSize(), o.Price))
	}
	return qty
}

// GetEdgeQty returns the product-quote quantity resting in open orders
// between source and destination, in either direction, mirroring
// get_edge_qty's NOTE that it returns product quantity, not source
// quantity.
func (ob *OwnOrderBook) GetEdgeQty(source, destination currency.Currency) decimal.Decimal {
	qty := decimal.Zero
	for _, o := range ob.orders[orderbook.StatusOpen] {
		p, ok := ob.products.Product(o.ProductID)
		if !ok {
			continue
		}
		cs := p.CurrencySet()
		if _, okSrc := cs[source]; !okSrc {
			continue
		}
		if _, okDst := cs[destination]; !okDst {
			continue
		}
		qty = qty.Add(o.RemainingSize())
	}
	return qty
}

// GetStaleOpenOrders returns ids of confirmed open orders older than
// secondsAgo, for the orchestrator to log (observation only, per the
// stale/unconfirmed-order open question decision).
func (ob *OwnOrderBook) GetStaleOpenOrders(now time.Time, secondsAgo int64) []string {
	var ids []string
	for id, o := range ob.orders[orderbook.StatusOpen] {
		if o.CreatedAtSecondsAgo(now) > secondsAgo && o.Confirmed {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetExpiredUnconfirmedOrders returns ids of unconfirmed open orders
// older than secondsAgo.
func (ob *OwnOrderBook) GetExpiredUnconfirmedOrders(now time.Time, secondsAgo int64) []string {
	var ids []string
	for id, o := range ob.orders[orderbook.StatusOpen] {
		if o.CreatedAtSecondsAgo(now) > secondsAgo && !o.Confirmed {
			ids = append(ids, id)
		}
	}
	return ids
}

// AnyOpenOrders reports whether any order is currently open.
func (ob *OwnOrderBook) AnyOpenOrders() bool {
	return len(ob.orders[orderbook.StatusOpen]) > 0
}
