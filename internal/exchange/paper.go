package exchange

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/feed"
	"github.com/chidi150c/currencycycle/internal/product"
)

// Paper is an in-memory Client: snapshots and trade history are
// whatever was seeded, balances are fixed at construction, and orders
// are accepted immediately without ever filling. It exists so the repo
// is runnable and testable without a live exchange connection,
// mirroring the teacher's own paper/bridge broker split.
type Paper struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
	history   map[string][]feed.Event
	balances  map[currency.Currency]decimal.Decimal
	open      map[string]PlacedOrder
}

// NewPaper returns an empty Paper broker seeded with balances.
func NewPaper(balances map[currency.Currency]decimal.Decimal) *Paper {
	return &Paper{
		snapshots: make(map[string]Snapshot),
		history:   make(map[string][]feed.Event),
		balances:  balances,
		open:      make(map[string]PlacedOrder),
	}
}

// SeedSnapshot installs the snapshot GetSnapshot returns for productID.
func (p *Paper) SeedSnapshot(productID string, s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[productID] = s
}

// SeedTradeHistory installs the events GetTradeHistory returns for
// productID.
func (p *Paper) SeedTradeHistory(productID string, events []feed.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history[productID] = events
}

func (p *Paper) GetSnapshot(_ context.Context, productID string) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.snapshots[productID]
	if !ok {
		return Snapshot{ProductID: productID}, nil
	}
	return s, nil
}

func (p *Paper) GetTradeHistory(_ context.Context, productID string, sinceUnix int64) ([]feed.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []feed.Event
	for _, e := range p.history[productID] {
		if e.Time.Unix() >= sinceUnix {
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *Paper) PlaceOrder(_ context.Context, productID string, side product.Side, price, size decimal.Decimal) (PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	order := PlacedOrder{OrderID: uuid.NewString(), ProductID: productID, Side: side, Price: price, Size: size}
	p.open[order.OrderID] = order
	return order, nil
}

func (p *Paper) CancelOrder(_ context.Context, _ string, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.open[orderID]; !ok {
		return errors.New("exchange: unknown paper order")
	}
	delete(p.open, orderID)
	return nil
}

func (p *Paper) CancelAllOrders(_ context.Context, productID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, o := range p.open {
		if productID == "" || o.ProductID == productID {
			delete(p.open, id)
		}
	}
	return nil
}

func (p *Paper) GetBalances(_ context.Context) (map[currency.Currency]decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[currency.Currency]decimal.Decimal, len(p.balances))
	for c, qty := range p.balances {
		out[c] = qty
	}
	return out, nil
}
