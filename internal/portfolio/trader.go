package portfolio

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/network"
	"github.com/chidi150c/currencycycle/internal/orderbook"
)

// CurrencyDelta is how far a currency's USD-valued balance can move in
// either direction before breaching its min/max portfolio fraction.
type CurrencyDelta struct {
	MaxDecrease decimal.Decimal
	MaxIncrease decimal.Decimal
}

// Trader layers the cycle-walking trade-selection loop on top of a
// Ledger: the Go home of the commented-out serial_trader.py, ported
// faithfully rather than left unexecuted, per spec.md §4.4's
// description of the decision loop.
type Trader struct {
	ledger         *Ledger
	net            *network.Manager
	edgeType       network.EdgeType
	minCycleReturn float64
}

// NewTrader builds a Trader over ledger, selecting cycles through
// edgeType's graph and requiring a cycle value strictly greater than
// minCycleReturn to act on (spec.md's MIN_CYCLE_RETURN = 1.005).
func NewTrader(ledger *Ledger, net *network.Manager, edgeType network.EdgeType, minCycleReturn float64) *Trader {
	return &Trader{ledger: ledger, net: net, edgeType: edgeType, minCycleReturn: minCycleReturn}
}

// GetMaxCurrencyDeltas computes, for every currency with a known edge
// value to USD, how far its balance may move before its min/max
// portfolio fraction is breached, mirroring get_max_currency_deltas.
func (t *Trader) GetMaxCurrencyDeltas(ctx context.Context) map[currency.Currency]CurrencyDelta {
	valuation, total := t.ledger.GetValuation()
	out := make(map[currency.Currency]CurrencyDelta)
	if total.IsZero() {
		return out
	}
	for cur, entry := range valuation {
		if entry.EdgeVal.IsZero() {
			continue
		}
		min, max := t.ledger.GetFraction(ctx, cur)
		maxIncrease := max.Mul(total).Sub(entry.FinalQty).Div(entry.EdgeVal)
		if maxIncrease.IsNegative() {
			maxIncrease = decimal.Zero
		}
		maxDecrease := entry.FinalQty.Sub(min.Mul(total)).Div(entry.EdgeVal)
		if maxDecrease.IsNegative() {
			maxDecrease = decimal.Zero
		}
		out[cur] = CurrencyDelta{MaxDecrease: maxDecrease, MaxIncrease: maxIncrease}
	}
	return out
}

// NextTrades walks every tradeable currency's profitable cycles
// (sorted by cycle value, most profitable first) and emits at most one
// maker Order per currency, mirroring get_next_trades.
func (t *Trader) NextTrades(ctx context.Context) []*orderbook.Order {
	var orders []*orderbook.Order

	available := t.ledger.GetAvailableCurrenciesForTrade()
	if len(available) == 0 {
		return orders
	}
	deltas := t.GetMaxCurrencyDeltas(ctx)

	// Deterministic currency iteration order for reproducible test
	// output; the Python original iterates dict order, which is
	// insertion order there too.
	currencies := make([]currency.Currency, 0, len(available))
	for c := range available {
		currencies = append(currencies, c)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	for _, currencyToTrade := range currencies {
		currencyQty := available[currencyToTrade]
		if d, ok := deltas[currencyToTrade]; ok {
			if d.MaxDecrease.LessThan(currencyQty) {
				currencyQty = d.MaxDecrease
			}
		}

		cyclesByVal := t.net.NextHopsFor(t.edgeType, currencyToTrade)
		vals := make([]float64, 0, len(cyclesByVal))
		for v := range cyclesByVal {
			vals = append(vals, v)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(vals)))

		for _, cycleVal := range vals {
			hop := cyclesByVal[cycleVal]
			if hop.Price.IsZero() || hop.Qty.IsZero() {
				continue
			}
			if cycleVal <= t.minCycleReturn {
				break
			}

			remainingEdgeQty := hop.Qty.Sub(t.ledger.orders.GetEdgeQty(currencyToTrade, hop.Next))
			if !remainingEdgeQty.IsPositive() {
				continue
			}

			p, ok := t.ledger.products.ProductFromCurrencies(currencyToTrade, hop.Next)
			if !ok {
				continue
			}
			side, ok := p.SideFromDirection(currencyToTrade, hop.Next)
			if !ok {
				continue
			}

			quotePrice := hop.Price
			quoteQty := p.QuoteQuantityFromCurrencyQuantity(currencyToTrade, currencyQty, quotePrice)
			if remainingEdgeQty.LessThan(quoteQty) {
				quoteQty = remainingEdgeQty
			}
			quoteQty = p.RoundQuantity(quoteQty)
			destinationQty := p.CurrencyQuantityFromQuoteQuantity(hop.Next, quoteQty, quotePrice)

			if d, ok := deltas[hop.Next]; ok {
				if d.MaxIncrease.LessThan(destinationQty) {
					quoteQty = p.RoundQuantity(p.QuoteQuantityFromCurrencyQuantity(hop.Next, d.MaxIncrease, quotePrice))
				}
			}

			if !quoteQty.GreaterThan(p.BaseMinSize) {
				continue
			}

			o, err := orderbook.New(p.ID, 0, side, quoteQty.String(), quotePrice.String(),
				orderbook.WithOrderID(uuid.NewString()), orderbook.WithStatus(orderbook.StatusUnconfirmed))
			if err != nil {
				continue
			}
			orders = append(orders, o)
			break // only one order per currency
		}
	}
	return orders
}
