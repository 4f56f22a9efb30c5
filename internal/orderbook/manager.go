package orderbook

import (
	"context"
	"fmt"
	"sync"

	"github.com/chidi150c/currencycycle/internal/logging"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

// Manager owns one Book per product and is the book stage's entry
// point for applying feed events: it looks up the right book by
// product id and forwards the event, so the book stage's goroutine
// only has to know about Manager.
type Manager struct {
	mu      sync.RWMutex
	books   map[string]*Book
	st      store.Store
	dirty   *DirtyTracker
	products *product.Manager
}

// NewManager builds a Manager over products, constructing one Book per
// known product up front.
func NewManager(products *product.Manager, st store.Store, dirty *DirtyTracker) *Manager {
	m := &Manager{
		books:    make(map[string]*Book),
		st:       st,
		dirty:    dirty,
		products: products,
	}
	for _, id := range products.ProductIDs() {
		p, _ := products.Product(id)
		m.books[id] = NewBook(p, st, dirty)
	}
	return m
}

// SetLogger attaches l to every managed book so Store failures are
// reported, per spec.md §7's StoreError handling.
func (m *Manager) SetLogger(l *logging.Logger) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.books {
		b.SetLogger(l)
	}
}

// Book returns the book for productID, or false if unknown.
func (m *Manager) Book(productID string) (*Book, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[productID]
	return b, ok
}

// Apply routes o to its product's book.
func (m *Manager) Apply(ctx context.Context, o *Order) error {
	b, ok := m.Book(o.ProductID)
	if !ok {
		return fmt.Errorf("orderbook: unknown product %q", o.ProductID)
	}
	return b.Apply(ctx, o)
}

// Books returns a snapshot slice of all managed books, in no
// particular order.
func (m *Manager) Books() []*Book {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	return out
}
