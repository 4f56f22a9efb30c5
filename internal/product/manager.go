package product

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
)

// Manager is a read-mostly registry of products and per-currency
// minimum order sizes, built once at startup and shared by every
// stage. Safe for concurrent read access; writes (AddProduct,
// SetCurrencyMinSize) are expected only during bootstrap but are
// guarded regardless.
type Manager struct {
	mu          sync.RWMutex
	products    map[string]*Product
	minSizeByCC map[currency.Currency]decimal.Decimal
}

// NewManager returns an empty product manager.
func NewManager() *Manager {
	return &Manager{
		products:    make(map[string]*Product),
		minSizeByCC: make(map[currency.Currency]decimal.Decimal),
	}
}

// AddProduct registers p, replacing any prior product with the same id.
func (m *Manager) AddProduct(p *Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// RemoveProduct deregisters a product id.
func (m *Manager) RemoveProduct(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
}

// Product looks up a product by id.
func (m *Manager) Product(id string) (*Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok
}

// ProductIDs returns all registered product ids.
func (m *Manager) ProductIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	return ids
}

// ProductFromCurrencies returns the product whose currency set is
// exactly {src, dst}, or false if none is registered.
func (m *Manager) ProductFromCurrencies(src, dst currency.Currency) (*Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		set := p.CurrencySet()
		if _, ok := set[src]; !ok {
			continue
		}
		if _, ok := set[dst]; !ok {
			continue
		}
		return p, true
	}
	return nil, false
}

// SideFromCurrencyDirection resolves the product for {src, dst} and
// returns the side that converts src into dst.
func (m *Manager) SideFromCurrencyDirection(src, dst currency.Currency) (Side, bool) {
	p, ok := m.ProductFromCurrencies(src, dst)
	if !ok {
		return 0, false
	}
	return p.SideFromDirection(src, dst)
}

// Currencies returns the union of all registered products' currencies.
func (m *Manager) Currencies() map[currency.Currency]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[currency.Currency]struct{})
	for _, p := range m.products {
		for c := range p.CurrencySet() {
			out[c] = struct{}{}
		}
	}
	return out
}

// SetCurrencyMinSize records the exchange-reported minimum order size
// for a currency (used to decide if an available balance is worth
// considering for a trade).
func (m *Manager) SetCurrencyMinSize(c currency.Currency, minSize decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minSizeByCC[c] = minSize
}

// MinSize returns the registered minimum size for c, if any.
func (m *Manager) MinSize(c currency.Currency) (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.minSizeByCC[c]
	return v, ok
}
