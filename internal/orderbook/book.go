package orderbook

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/logging"
	"github.com/chidi150c/currencycycle/internal/metrics"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

// level is one price row of a ladder: the aggregate size resting at
// that price and the per-order breakdown backing the aggregate.
type level struct {
	price  decimal.Decimal
	sum    decimal.Decimal
	orders map[string]decimal.Decimal
}

// ladder is one side of a book: a price-keyed map plus a price index
// kept sorted in the side's preference order (bids descending, asks
// ascending) so the best N prices can be walked without a full scan.
type ladder struct {
	bySide Side
	byKey  map[string]*level // key = price.StringFixed(priceKeyScale)
	sorted []decimal.Decimal // ascending always; pricesInOrder reverses for bids
}

// Side aliases product.Side so callers of this package don't need to
// import product just to say orderbook.Bid.
type Side = product.Side

const (
	Bid = product.Bid
	Ask = product.Ask
)

const priceKeyScale = 8

func priceKey(d decimal.Decimal) string { return d.StringFixed(priceKeyScale) }

func newLadder(side Side) *ladder {
	return &ladder{bySide: side, byKey: make(map[string]*level)}
}

func (l *ladder) find(price decimal.Decimal) (*level, bool) {
	lv, ok := l.byKey[priceKey(price)]
	return lv, ok
}

func (l *ladder) insertPrice(price decimal.Decimal) {
	key := priceKey(price)
	if _, ok := l.byKey[key]; ok {
		return
	}
	idx := sort.Search(len(l.sorted), func(i int) bool { return !l.sorted[i].LessThan(price) })
	l.sorted = append(l.sorted, decimal.Zero)
	copy(l.sorted[idx+1:], l.sorted[idx:])
	l.sorted[idx] = price
	l.byKey[key] = &level{price: price, sum: decimal.Zero, orders: make(map[string]decimal.Decimal)}
}

func (l *ladder) removePrice(price decimal.Decimal) {
	key := priceKey(price)
	delete(l.byKey, key)
	idx := sort.Search(len(l.sorted), func(i int) bool { return !l.sorted[i].LessThan(price) })
	if idx < len(l.sorted) && l.sorted[idx].Equal(price) {
		l.sorted = append(l.sorted[:idx], l.sorted[idx+1:]...)
	}
}

// pricesInOrder returns the ladder's prices in side-preference order:
// bids descending (best/highest first), asks ascending (best/lowest
// first).
func (l *ladder) pricesInOrder() []decimal.Decimal {
	if l.bySide == Bid {
		out := make([]decimal.Decimal, len(l.sorted))
		for i, p := range l.sorted {
			out[i] = l.sorted[len(l.sorted)-1-i]
			_ = p
		}
		return out
	}
	out := make([]decimal.Decimal, len(l.sorted))
	copy(out, l.sorted)
	return out
}

// Book is the per-product limit order book: two price ladders plus a
// trade-history window, behind a single mutex (each stage is
// internally single-threaded; the mutex only guards against the
// network/portfolio stages reading book state concurrently with the
// book stage's writes).
type Book struct {
	mu         sync.RWMutex
	product    *product.Product
	sequenceID int64
	ladders    map[Side]*ladder
	history    map[Side]map[Type]*historyStream
	store      store.Store
	dirty      *DirtyTracker
	logger     *logging.Logger

	ordersAdded      int64
	ordersSubtracted int64
}

// NewBook constructs an empty book for p, optionally backed by a
// persistent Store (pass store.NewMemory() or a nil-safe no-op store
// when persistence isn't needed, e.g. in unit tests).
func NewBook(p *product.Product, st store.Store, dirty *DirtyTracker) *Book {
	b := &Book{
		product: p,
		ladders: map[Side]*ladder{Bid: newLadder(Bid), Ask: newLadder(Ask)},
		history: map[Side]map[Type]*historyStream{
			Bid: {TypeLimit: newHistoryStream(), TypeMatch: newHistoryStream(), TypeChange: newHistoryStream(), TypeCancel: newHistoryStream()},
			Ask: {TypeLimit: newHistoryStream(), TypeMatch: newHistoryStream(), TypeChange: newHistoryStream(), TypeCancel: newHistoryStream()},
		},
		store: st,
		dirty: dirty,
	}
	return b
}

// SetLogger attaches a logger used to report Store failures; nil is
// safe and leaves them unreported (metrics.StoreErrorsTotal still
// increments either way).
func (b *Book) SetLogger(l *logging.Logger) {
	b.mu.Lock()
	b.logger = l
	b.mu.Unlock()
}

// logStoreErr records a Store operation failure: spec.md §7 requires
// stages to log StoreErrors and keep running rather than fail the
// pipeline over a persistence hiccup.
func (b *Book) logStoreErr(op string, err error) {
	if err == nil {
		return
	}
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	if b.logger != nil {
		b.logger.Log("book", logging.Error, fmt.Sprintf("store %s failed for %s: %v", op, b.product.ID, err))
	}
}

func (b *Book) ProductID() string   { return b.product.ID }
func (b *Book) Product() *product.Product { return b.product }
func (b *Book) SequenceID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sequenceID
}

// Apply validates and applies a single feed event to the book,
// following spec.md §4.2's five steps. A sequence id at or below the
// current sequence is a silent no-op (ErrSequence), not a failure.
func (b *Book) Apply(ctx context.Context, o *Order) error {
	if o.ProductID != b.product.ID {
		return fmt.Errorf("%w: book is for %s, event is for %s", ErrProductMismatch, b.product.ID, o.ProductID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if o.SequenceID <= b.sequenceID {
		return ErrSequence
	}
	if o.SequenceID > b.sequenceID {
		b.sequenceID = o.SequenceID
	}

	if !o.Historical {
		switch {
		case o.Type == TypeLimit && o.Status == StatusOpen:
			b.addOpen(ctx, o)
		case o.Status == StatusFilled || o.Status == StatusCanceled:
			b.removeOrder(ctx, o)
		case o.Type == TypeChange:
			b.changeOrder(ctx, o)
		default:
			b.matchOrder(ctx, o)
		}
	}

	b.appendTradeHistory(ctx, o)
	if b.dirty != nil {
		b.dirty.Mark(o.Side, b.product.ID)
	}
	return nil
}

func (b *Book) addOpen(ctx context.Context, o *Order) {
	l := b.ladders[o.Side]
	l.insertPrice(o.Price)
	lv, _ := l.find(o.Price)
	if o.OrderID != "" {
		if _, exists := lv.orders[o.OrderID]; exists {
			return // idempotent re-add
		}
		lv.orders[o.OrderID] = o.Size
	}
	lv.sum = lv.sum.Add(o.Size)
	b.ordersAdded++
	if b.store != nil {
		b.logStoreErr("upsert_price_level", b.store.UpsertPriceLevel(ctx, b.product.ID, o.Side.String(), priceKey(o.Price), lv.sum))
		b.logStoreErr("set_order_size", b.store.SetOrderSize(ctx, b.product.ID, o.Side.String(), priceKey(o.Price), o.OrderID, o.Size))
	}
}

// removeOrder drops order_id from its price row (filled or canceled).
// An unknown order id or price is a silent no-op: late/out-of-order
// feed events are expected, not exceptional.
func (b *Book) removeOrder(ctx context.Context, o *Order) {
	l := b.ladders[o.Side]
	lv, ok := l.find(o.Price)
	if !ok {
		return
	}
	size, ok := lv.orders[o.OrderID]
	if !ok {
		return
	}
	delete(lv.orders, o.OrderID)
	lv.sum = lv.sum.Sub(size)
	b.ordersSubtracted++
	if len(lv.orders) == 0 {
		l.removePrice(o.Price)
		if b.store != nil {
			b.logStoreErr("delete_price_level", b.store.DeletePriceLevel(ctx, b.product.ID, o.Side.String(), priceKey(o.Price)))
		}
	} else if b.store != nil {
		b.logStoreErr("upsert_price_level", b.store.UpsertPriceLevel(ctx, b.product.ID, o.Side.String(), priceKey(o.Price), lv.sum))
	}
	if b.store != nil {
		b.logStoreErr("delete_order", b.store.DeleteOrder(ctx, b.product.ID, o.Side.String(), priceKey(o.Price), o.OrderID))
	}
}

// changeOrder overwrites an order's resting size to the new remaining
// size carried (by convention) in FilledSize. Unknown order id is a
// silent no-op.
func (b *Book) changeOrder(ctx context.Context, o *Order) {
	l := b.ladders[o.Side]
	lv, ok := l.find(o.Price)
	if !ok {
		return
	}
	oldRemaining, ok := lv.orders[o.OrderID]
	if !ok {
		return
	}
	newSize := o.FilledSize // convention: change events carry new remaining size here
	lv.orders[o.OrderID] = newSize
	lv.sum = lv.sum.Sub(oldRemaining).Add(newSize)
	if b.store != nil {
		b.logStoreErr("set_order_size", b.store.SetOrderSize(ctx, b.product.ID, o.Side.String(), priceKey(o.Price), o.OrderID, newSize))
		b.logStoreErr("upsert_price_level", b.store.UpsertPriceLevel(ctx, b.product.ID, o.Side.String(), priceKey(o.Price), lv.sum))
	}
}

// matchOrder decrements a resting order's size by the traded amount
// without removing the row; a subsequent done event does that.
func (b *Book) matchOrder(ctx context.Context, o *Order) {
	l := b.ladders[o.Side]
	lv, ok := l.find(o.Price)
	if !ok {
		return
	}
	cur, ok := lv.orders[o.OrderID]
	if !ok {
		return
	}
	newSize := cur.Sub(o.Size)
	lv.orders[o.OrderID] = newSize
	lv.sum = lv.sum.Sub(o.Size)
	if b.store != nil {
		b.logStoreErr("set_order_size", b.store.SetOrderSize(ctx, b.product.ID, o.Side.String(), priceKey(o.Price), o.OrderID, newSize))
		b.logStoreErr("upsert_price_level", b.store.UpsertPriceLevel(ctx, b.product.ID, o.Side.String(), priceKey(o.Price), lv.sum))
	}
}

func (b *Book) appendTradeHistory(ctx context.Context, o *Order) {
	sec := o.CreatedAt.Unix()
	stream := b.history[o.Side][o.Type]
	stream.add(sec, o.Size)
	if b.store != nil {
		b.logStoreErr("incr_trade_bucket", b.store.IncrTradeBucket(ctx, b.product.ID, o.Side.String(), o.Type.String(), sec, o.Size))
	}
}

// PriceQuery is the result of GetPrice: best/worst price walked,
// cumulative notional, excess size left over at the worst price level,
// and the full size resting at the worst price level.
type PriceQuery struct {
	Best        decimal.Decimal
	Worst       decimal.Decimal
	Notional    decimal.Decimal
	Excess      decimal.Decimal
	WorstFilled decimal.Decimal
	Empty       bool
}

// GetPrice walks the side's ladder in price-preference order,
// accumulating up to depth of quantity, per spec.md §4.2.
func (b *Book) GetPrice(side Side, depth decimal.Decimal) PriceQuery {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.getPriceLocked(side, depth)
}

func (b *Book) getPriceLocked(side Side, depth decimal.Decimal) PriceQuery {
	prices := b.ladders[side].pricesInOrder()
	if len(prices) == 0 {
		return PriceQuery{Empty: true}
	}
	notional := decimal.Zero
	filled := decimal.Zero
	var best, worst decimal.Decimal
	var excess, worstFill decimal.Decimal
	for i, price := range prices {
		lv, _ := b.ladders[side].find(price)
		if i == 0 {
			best = price
		}
		worst = price
		remaining := depth.Sub(filled)
		take := lv.sum
		if remaining.LessThan(take) {
			take = remaining
		}
		if take.IsNegative() {
			take = decimal.Zero
		}
		excess = lv.sum.Sub(take)
		worstFill = lv.sum
		notional = notional.Add(price.Mul(take))
		filled = filled.Add(take)
		if filled.GreaterThanOrEqual(depth) {
			return PriceQuery{Best: best, Worst: worst, Notional: notional, Excess: excess, WorstFilled: worstFill}
		}
	}
	// ladder exhausted before depth: partial fill, no excess.
	return PriceQuery{Best: best, Worst: worst, Notional: notional, Excess: decimal.Zero, WorstFilled: worstFill}
}

// GetBest returns the single best price on side, or false if the
// ladder is empty.
func (b *Book) GetBest(side Side) (decimal.Decimal, bool) {
	q := b.GetPrice(side, decimal.Zero)
	if q.Empty {
		return decimal.Zero, false
	}
	return q.Worst, true // depth=0 means best==worst==first level walked
}

// SpreadLocked reports whether the best bid stepped one increment up
// equals the best ask, i.e. there is no room to place a more
// aggressive maker order on either side.
func (b *Book) SpreadLocked() bool {
	b.mu.RLock()
	bestBid, okBid := b.getPriceLocked(Bid, decimal.Zero), true
	bestAsk, okAsk := b.getPriceLocked(Ask, decimal.Zero), true
	b.mu.RUnlock()
	if bestBid.Empty || bestAsk.Empty {
		return false
	}
	_ = okBid
	_ = okAsk
	higher, err := b.product.HigherPrice(bestBid.Worst.String())
	if err != nil {
		return false
	}
	rounded, err := b.product.RoundPrice(bestAsk.Worst.String())
	if err != nil {
		return false
	}
	return higher.Equal(rounded)
}

// GetNetworkPrice computes the maker-placement price for side: the
// price at which a new resting order rests so that, once the queued
// depth ahead of it (totalQty - desiredQty) fills, it fills too.
// Returns (price, quantityAvailableAtThatPrice, ok).
func (b *Book) GetNetworkPrice(side Side, totalQty, desiredQty decimal.Decimal, allowExceedBest bool) (decimal.Decimal, decimal.Decimal, bool) {
	ahead := totalQty.Sub(desiredQty)
	q := b.GetPrice(side, ahead)
	if q.Empty {
		return decimal.Zero, decimal.Zero, false
	}
	if q.Excess.LessThanOrEqual(b.product.BaseMinSize) {
		return q.Worst, desiredQty, true
	}
	if q.Best.Equal(q.Worst) && (b.SpreadLocked() || !allowExceedBest) {
		return q.Best, decimal.Zero, true
	}
	var newPrice decimal.Decimal
	var err error
	if side == Bid {
		newPrice, err = b.product.HigherPrice(q.Worst.String())
	} else {
		newPrice, err = b.product.LowerPrice(q.Worst.String())
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	qty := desiredQty.Add(q.WorstFilled).Sub(q.Excess)
	return newPrice, qty, true
}

// Stats returns lifetime counters, primarily for tests and ops
// dashboards.
func (b *Book) Stats() (added, subtracted int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ordersAdded, b.ordersSubtracted
}

// SumOfSizes returns the sum of all per-price sums and the sum of all
// per-order sizes on side, used to assert invariant #1 from spec.md §8
// in tests.
func (b *Book) SumOfSizes(side Side) (sumOfSums, sumOfOrders decimal.Decimal) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sumOfSums, sumOfOrders = decimal.Zero, decimal.Zero
	for _, price := range b.ladders[side].sorted {
		lv, _ := b.ladders[side].find(price)
		sumOfSums = sumOfSums.Add(lv.sum)
		for _, sz := range lv.orders {
			sumOfOrders = sumOfOrders.Add(sz)
		}
	}
	return
}
