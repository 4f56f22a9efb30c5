package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Memory is an in-process Store, safe for concurrent use, intended for
// unit tests and for running the trader without a Redis dependency.
type Memory struct {
	mu sync.Mutex

	levels map[string]decimal.Decimal            // productID|side|priceKey -> sum
	orders map[string]decimal.Decimal            // productID|side|priceKey|orderID -> size
	trades map[string]map[int64]decimal.Decimal  // productID|side|type -> second -> qty
	dirty  map[string]map[string]struct{}        // side -> set(productID)
	bal    map[string][2]decimal.Decimal         // currency -> [available, hold]
	frac   map[string]fractionEntry
}

type fractionEntry struct {
	min, max decimal.Decimal
	expires  time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		levels: make(map[string]decimal.Decimal),
		orders: make(map[string]decimal.Decimal),
		trades: make(map[string]map[int64]decimal.Decimal),
		dirty:  make(map[string]map[string]struct{}),
		bal:    make(map[string][2]decimal.Decimal),
		frac:   make(map[string]fractionEntry),
	}
}

func levelKey(productID, side, priceKey string) string {
	return productID + "|" + side + "|" + priceKey
}

func orderKey(productID, side, priceKey, orderID string) string {
	return productID + "|" + side + "|" + priceKey + "|" + orderID
}

func tradeKey(productID, side, typ string) string {
	return productID + "|" + side + "|" + typ
}

func (m *Memory) UpsertPriceLevel(_ context.Context, productID, side, priceKey string, sum decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[levelKey(productID, side, priceKey)] = sum
	return nil
}

func (m *Memory) DeletePriceLevel(_ context.Context, productID, side, priceKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.levels, levelKey(productID, side, priceKey))
	return nil
}

func (m *Memory) SetOrderSize(_ context.Context, productID, side, priceKey, orderID string, size decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderKey(productID, side, priceKey, orderID)] = size
	return nil
}

func (m *Memory) DeleteOrder(_ context.Context, productID, side, priceKey, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, orderKey(productID, side, priceKey, orderID))
	return nil
}

func (m *Memory) IncrTradeBucket(_ context.Context, productID, side, typ string, second int64, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tradeKey(productID, side, typ)
	bucket, ok := m.trades[key]
	if !ok {
		bucket = make(map[int64]decimal.Decimal)
		m.trades[key] = bucket
	}
	bucket[second] = bucket[second].Add(delta)
	return nil
}

func (m *Memory) TradeBucketsInRange(_ context.Context, productID, side, typ string, from, to int64) (map[int64]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]decimal.Decimal)
	bucket, ok := m.trades[tradeKey(productID, side, typ)]
	if !ok {
		return out, nil
	}
	for sec, qty := range bucket {
		if sec >= from && sec <= to {
			out[sec] = qty
		}
	}
	return out, nil
}

func (m *Memory) MarkDirty(_ context.Context, side, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.dirty[side]
	if !ok {
		set = make(map[string]struct{})
		m.dirty[side] = set
	}
	set[productID] = struct{}{}
	return nil
}

func (m *Memory) PopDirty(_ context.Context, side string, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.dirty[side]
	if len(set) == 0 || n <= 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for id := range set {
		if len(out) >= n {
			break
		}
		out = append(out, id)
		delete(set, id)
	}
	return out, nil
}

func (m *Memory) SetBalance(_ context.Context, cur string, available, hold decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bal[cur] = [2]decimal.Decimal{available, hold}
	return nil
}

func (m *Memory) GetBalance(_ context.Context, cur string) (decimal.Decimal, decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.bal[cur]
	if !ok {
		return decimal.Zero, decimal.Zero, false, nil
	}
	return v[0], v[1], true, nil
}

func (m *Memory) SetFractionTarget(_ context.Context, cur string, min, max decimal.Decimal, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frac[cur] = fractionEntry{min: min, max: max, expires: time.Now().Add(ttl)}
	return nil
}

func (m *Memory) GetFractionTarget(_ context.Context, cur string) (decimal.Decimal, decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.frac[cur]
	if !ok || time.Now().After(e.expires) {
		return decimal.Zero, decimal.Zero, false, nil
	}
	return e.min, e.max, true, nil
}

func (m *Memory) Close() error { return nil }
