package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/network"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

// fractionTTL bounds how long an operator-set min/max fraction
// override (read through Store) is trusted before Ledger falls back to
// its compiled-in default, per spec.md §9's "operator-override
// pattern".
const fractionTTL = 60 * time.Second

// Balance is one currency's holding: total balance and its default
// min/max portfolio fraction. The portion reserved by open orders is
// not stored here; the Ledger derives it from the OwnOrderBook.
type Balance struct {
	currency    currency.Currency
	qty         decimal.Decimal
	minFraction decimal.Decimal
	maxFraction decimal.Decimal
}

func (b *Balance) Currency() currency.Currency { return b.currency }
func (b *Balance) Qty() decimal.Decimal        { return b.qty }

// Ledger tracks one balance per tracked currency, the own-order book
// reserving holds against those balances, and the network used to
// value the whole portfolio in a common currency. It is the Go home of
// the Python original's BasePortfolioGroup, generalized so the cycle-
// walking trade selection in Trader can be layered on top without
// subclassing.
type Ledger struct {
	balances map[currency.Currency]*Balance
	orders   *OwnOrderBook
	books    *orderbook.Manager
	net      *network.Manager
	products *product.Manager
	store    store.Store
}

// NewLedger constructs a Ledger over every currency the product
// manager knows about, all starting at zero balance.
func NewLedger(products *product.Manager, orders *OwnOrderBook, books *orderbook.Manager, net *network.Manager, st store.Store) *Ledger {
	l := &Ledger{
		balances: make(map[currency.Currency]*Balance),
		orders:   orders,
		books:    books,
		net:      net,
		products: products,
		store:    st,
	}
	for c := range products.Currencies() {
		l.balances[c] = &Balance{currency: c, qty: decimal.Zero, minFraction: decimal.Zero, maxFraction: decimal.NewFromInt(1)}
	}
	return l
}

// SetDefaultFraction overrides the compiled-in min/max fraction a
// currency falls back to when no operator override is present in
// Store, mirroring the Python original's PORTFOLIO_MAKEUP map.
func (l *Ledger) SetDefaultFraction(c currency.Currency, min, max decimal.Decimal) {
	if b, ok := l.balances[c]; ok {
		b.minFraction = min
		b.maxFraction = max
	}
}

func (l *Ledger) balanceOrPanic(c currency.Currency) *Balance {
	b, ok := l.balances[c]
	if !ok {
		panic(fmt.Sprintf("portfolio: ledger has no balance tracked for %s", c))
	}
	return b
}

// Credit adds qty to cur's balance.
func (l *Ledger) Credit(ctx context.Context, cur currency.Currency, qty decimal.Decimal) decimal.Decimal {
	b := l.balanceOrPanic(cur)
	b.qty = b.qty.Add(qty)
	l.persist(ctx, b)
	return b.qty
}

// Debit subtracts qty from cur's balance.
func (l *Ledger) Debit(ctx context.Context, cur currency.Currency, qty decimal.Decimal) decimal.Decimal {
	b := l.balanceOrPanic(cur)
	b.qty = b.qty.Sub(qty)
	l.persist(ctx, b)
	return b.qty
}

func (l *Ledger) persist(ctx context.Context, b *Balance) {
	if l.store == nil {
		return
	}
	hold := l.orders.GetHoldQty(b.currency)
	_ = l.store.SetBalance(ctx, b.currency.String(), b.qty.Sub(hold), hold)
}

// GetBalanceQty returns cur's total balance.
func (l *Ledger) GetBalanceQty(cur currency.Currency) decimal.Decimal {
	return l.balanceOrPanic(cur).Qty()
}

// GetAvailableQty returns cur's balance minus what's held by open
// orders.
func (l *Ledger) GetAvailableQty(cur currency.Currency) decimal.Decimal {
	return l.balanceOrPanic(cur).Qty().Sub(l.orders.GetHoldQty(cur))
}

// GetBalances returns every tracked currency's total balance.
func (l *Ledger) GetBalances() map[currency.Currency]decimal.Decimal {
	out := make(map[currency.Currency]decimal.Decimal, len(l.balances))
	for c, b := range l.balances {
		out[c] = b.Qty()
	}
	return out
}

// GetValuation converts every balance into USD via the network's best
// currency-quote edges.
func (l *Ledger) GetValuation() (map[currency.Currency]network.ValuePortfolioEntry, decimal.Decimal) {
	return l.net.ValuePortfolio(l.GetBalances(), currency.USD)
}

// GetAvailableCurrenciesForTrade returns, per currency, the available
// qty if it clears the product manager's minimum size for that
// currency, else zero — mirroring get_available_currencies_for_trade.
func (l *Ledger) GetAvailableCurrenciesForTrade() map[currency.Currency]decimal.Decimal {
	out := make(map[currency.Currency]decimal.Decimal, len(l.balances))
	for c := range l.balances {
		avail := l.GetAvailableQty(c)
		minQty, ok := l.products.MinSize(c)
		if !ok || avail.GreaterThanOrEqual(minQty) {
			out[c] = avail
		} else {
			out[c] = decimal.Zero
		}
	}
	return out
}

// GetFraction returns the min/max fraction currently in force for cur:
// an operator override from Store if present and unexpired, else the
// compiled-in default.
func (l *Ledger) GetFraction(ctx context.Context, cur currency.Currency) (min, max decimal.Decimal) {
	b := l.balanceOrPanic(cur)
	if l.store != nil {
		if storedMin, storedMax, ok, err := l.store.GetFractionTarget(ctx, cur.String()); err == nil && ok {
			return storedMin, storedMax
		}
	}
	return b.minFraction, b.maxFraction
}

// SetFractionOverride writes an operator override for cur that expires
// after fractionTTL.
func (l *Ledger) SetFractionOverride(ctx context.Context, cur currency.Currency, min, max decimal.Decimal) error {
	if l.store == nil {
		return nil
	}
	return l.store.SetFractionTarget(ctx, cur.String(), min, max, fractionTTL)
}

// HandleMatchOrder applies a fill: credits the destination currency,
// debits the source currency, and marks the own order's filled size.
func (l *Ledger) HandleMatchOrder(ctx context.Context, orderID string, fillQty decimal.Decimal) (string, error) {
	o, err := l.orders.MatchOrder(orderID, fillQty)
	if err != nil {
		return "", err
	}
	p, ok := l.products.Product(o.ProductID)
	if !ok {
		return "", fmt.Errorf("portfolio: unknown product %q for order %s", o.ProductID, orderID)
	}
	source := p.Source(o.Side)
	destination := p.Destination(o.Side)
	sourceQty := p.CurrencyQuantityFromQuoteQuantity(source, fillQty, o.Price)
	destinationQty := p.CurrencyQuantityFromQuoteQuantity(destination, fillQty, o.Price)
	l.Credit(ctx, destination, destinationQty)
	l.Debit(ctx, source, sourceQty)
	return orderID, nil
}

// HandleDoneOrder applies a done event (filled or canceled) to the own
// order book.
func (l *Ledger) HandleDoneOrder(orderID string, status orderbook.Status) (string, error) {
	switch status {
	case orderbook.StatusFilled:
		if _, err := l.orders.FillOrder(orderID); err != nil {
			return "", err
		}
	case orderbook.StatusCanceled:
		if _, err := l.orders.CancelOrder(orderID); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: got %s", ErrBadDoneStatus, status)
	}
	return orderID, nil
}
