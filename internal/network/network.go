// Package network builds the currency-conversion graph from order
// book state: one directed edge per (product, side) pair, refreshed
// per edge-valuation strategy, and the simple-cycle enumeration used
// to find profitable round trips through the graph.
package network

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/orderbook"
)

// QuoteType selects whether an edge weight is expressed in product
// quote units (the book's native price) or currency units (normalized
// so edges compose across products), mirroring the Python original's
// QuoteType enum.
type QuoteType int

const (
	QuoteProduct QuoteType = iota
	QuoteCurrency
)

// NetworkType distinguishes the price graph (edge weight = conversion
// rate) from the parallel quantity graph (edge weight = size available
// at that rate).
type NetworkType int

const (
	NetworkPrice NetworkType = iota
	NetworkQuantity
)

// EdgeType is re-exported from internal/orderbook, which is where the
// trade-size aggregation functions an edge's weight derives from
// already live.
type EdgeType = orderbook.EdgeType

const (
	EdgeBest   = orderbook.EdgeBest
	EdgeMean   = orderbook.EdgeMean
	EdgeMedian = orderbook.EdgeMedian
	EdgeCustom = orderbook.EdgeCustom
)

type graphKey struct {
	nt NetworkType
	et EdgeType
	qt QuoteType
}

// edge is one directed graph edge: a decimal weight (kept for
// downstream precision-sensitive conversions). Cycle-value ranking
// converts it to float64 on the fly in cycleValue.
type edge struct {
	weight decimal.Decimal
}

// Manager owns the full set of conversion graphs: one adjacency map
// per (NetworkType, EdgeType, QuoteType) combination, mirroring the
// Python original's `network:{type}:{edge}:{quote}:{currency}` Redis
// hash layout as an in-process map of maps.
type Manager struct {
	graphs map[graphKey]map[currency.Currency]map[currency.Currency]edge
}

// NewManager returns an empty Manager; edges populate lazily as books
// report updates.
func NewManager() *Manager {
	return &Manager{graphs: make(map[graphKey]map[currency.Currency]map[currency.Currency]edge)}
}

func (m *Manager) graph(nt NetworkType, et EdgeType, qt QuoteType) map[currency.Currency]map[currency.Currency]edge {
	k := graphKey{nt, et, qt}
	g, ok := m.graphs[k]
	if !ok {
		g = make(map[currency.Currency]map[currency.Currency]edge)
		m.graphs[k] = g
	}
	return g
}

// AddEdge sets (overwrites) the weight of start->end in the price
// graph, and, if qty is provided, the corresponding entry in the
// parallel quantity graph. weight and qty are both in the units
// qt names.
func (m *Manager) AddEdge(et EdgeType, qt QuoteType, start, end currency.Currency, weight decimal.Decimal, qty *decimal.Decimal) {
	priceGraph := m.graph(NetworkPrice, et, qt)
	row, ok := priceGraph[start]
	if !ok {
		row = make(map[currency.Currency]edge)
		priceGraph[start] = row
	}
	row[end] = edge{weight: weight}

	if qty != nil {
		qtyGraph := m.graph(NetworkQuantity, et, qt)
		qrow, ok := qtyGraph[start]
		if !ok {
			qrow = make(map[currency.Currency]edge)
			qtyGraph[start] = qrow
		}
		qrow[end] = edge{weight: *qty}
	}
}

// EdgeWeight returns the weight of start->end in the named graph.
func (m *Manager) EdgeWeight(nt NetworkType, et EdgeType, qt QuoteType, start, end currency.Currency) (decimal.Decimal, bool) {
	row, ok := m.graph(nt, et, qt)[start]
	if !ok {
		return decimal.Zero, false
	}
	e, ok := row[end]
	return e.weight, ok
}

// UpdateFromBook refreshes every edge type's edges for one (product,
// side) pair, mirroring update_from_order_book. Call this whenever the
// book stage marks a product dirty on side.
func (m *Manager) UpdateFromBook(b *orderbook.Book, side orderbook.Side, nowUnix, networkLookback, aggregationTime int64, qtyMultiplier decimal.Decimal) {
	for _, et := range []EdgeType{EdgeBest, EdgeMean, EdgeMedian, EdgeCustom} {
		m.updateEdgeType(b, side, et, nowUnix, networkLookback, aggregationTime, qtyMultiplier)
	}
}

func (m *Manager) updateEdgeType(b *orderbook.Book, side orderbook.Side, et EdgeType, nowUnix, networkLookback, aggregationTime int64, qtyMultiplier decimal.Decimal) {
	p := b.Product()
	source := p.Source(side)
	destination := p.Destination(side)

	if et == EdgeBest {
		price, ok := b.GetBest(side)
		if !ok {
			return
		}
		currencyPrice := p.QuoteToCurrencyPrice(destination, price)
		m.AddEdge(et, QuoteCurrency, source, destination, currencyPrice, nil)
		m.AddEdge(et, QuoteProduct, source, destination, price, nil)
		return
	}

	qty, ok, err := b.GetEdgeTradeSize(side, orderbook.TypeMatch, nowUnix, networkLookback, et, aggregationTime)
	if err != nil || !ok {
		return
	}
	desired := qty.Mul(qtyMultiplier)
	allowExceedBest := et != EdgeCustom
	price, availQty, ok := b.GetNetworkPrice(side, qty, desired, allowExceedBest)
	if !ok {
		return
	}
	currencyPrice := p.QuoteToCurrencyPrice(destination, price)
	currencyQty := p.CurrencyQuantityFromQuoteQuantity(destination, availQty, price)
	m.AddEdge(et, QuoteCurrency, source, destination, currencyPrice, &currencyQty)
	m.AddEdge(et, QuoteProduct, source, destination, price, &availQty)
}

// Cycle is one canonicalized simple cycle through the graph: Path
// starts and ends at the same, highest-ranked currency, and Value is
// the product of the edge weights walked, as float64 per spec.md §9's
// cycle-ranking heuristic.
type Cycle struct {
	Path  []currency.Currency
	Value float64
}

// CyclesByValue enumerates every simple cycle in the named price
// graph, canonicalizes each by rotating to start at its highest-rank
// currency, and indexes them by cycle value. A later cycle with a
// value identical to an earlier one overwrites it (spec.md §4.3 open
// question: keep-last, same as the Python original's `cycle_vals[prodw]
// = cycle` dict assignment).
func (m *Manager) CyclesByValue(et EdgeType, qt QuoteType) map[float64]Cycle {
	g := m.graph(NetworkPrice, et, qt)
	out := make(map[float64]Cycle)
	for _, raw := range simpleCycles(g) {
		canon := canonicalize(raw)
		val := cycleValue(g, canon)
		out[val] = Cycle{Path: canon, Value: val}
	}
	return out
}

// CyclesForCurrencyByValue filters CyclesByValue to cycles passing
// through start.
func (m *Manager) CyclesForCurrencyByValue(et EdgeType, qt QuoteType, start currency.Currency) map[float64]Cycle {
	all := m.CyclesByValue(et, qt)
	out := make(map[float64]Cycle)
	for val, c := range all {
		if containsCurrency(c.Path, start) {
			out[val] = c
		}
	}
	return out
}

func containsCurrency(path []currency.Currency, c currency.Currency) bool {
	for _, x := range path {
		if x == c {
			return true
		}
	}
	return false
}

// NextNodeInCycle returns the currency immediately after start walking
// c.Path forward.
func NextNodeInCycle(c Cycle, start currency.Currency) (currency.Currency, bool) {
	for i, x := range c.Path {
		if x == start && i+1 < len(c.Path) {
			return c.Path[i+1], true
		}
	}
	return currency.Unknown, false
}

// NextHop is what a trader needs to act on one profitable cycle: the
// next currency to convert into, the product-quote price of that
// first hop, and the quantity available at that price.
type NextHop struct {
	Next  currency.Currency
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// NextHopsFor returns, for every cycle through start, the next hop to
// take, keyed by cycle value — matching
// get_next_nodes_and_avail_qties_by_cycle_value. The result is a map,
// so it carries no order; callers sort the keys themselves.
func (m *Manager) NextHopsFor(et EdgeType, start currency.Currency) map[float64]NextHop {
	cycles := m.CyclesForCurrencyByValue(et, QuoteCurrency, start)
	keys := make([]float64, 0, len(cycles))
	for v := range cycles {
		keys = append(keys, v)
	}
	sort.Float64s(keys)

	out := make(map[float64]NextHop, len(cycles))
	for _, val := range keys {
		c := cycles[val]
		next, ok := NextNodeInCycle(c, start)
		if !ok {
			continue
		}
		price, _ := m.EdgeWeight(NetworkPrice, et, QuoteProduct, start, next)
		qty, _ := m.EdgeWeight(NetworkQuantity, et, QuoteProduct, start, next)
		out[val] = NextHop{Next: next, Price: price, Qty: qty}
	}
	return out
}

// ValuePortfolioEntry is one currency's contribution to a portfolio
// valuation: its balance converted to the target currency, and the
// conversion rate used.
type ValuePortfolioEntry struct {
	FinalQty decimal.Decimal
	EdgeVal  decimal.Decimal
}

// ValuePortfolio converts every balance in holdings into finalCurrency
// using the best-price currency-quote graph, matching value_portfolio.
// Currencies with no direct edge to finalCurrency are skipped (the
// Python original only looks one hop; extending to multi-hop
// conversion is out of scope here too, matching its KeyError-swallow
// behavior).
func (m *Manager) ValuePortfolio(holdings map[currency.Currency]decimal.Decimal, finalCurrency currency.Currency) (map[currency.Currency]ValuePortfolioEntry, decimal.Decimal) {
	out := make(map[currency.Currency]ValuePortfolioEntry, len(holdings))
	total := decimal.Zero
	for cur, qty := range holdings {
		if cur == finalCurrency {
			out[cur] = ValuePortfolioEntry{FinalQty: qty, EdgeVal: decimal.NewFromInt(1)}
			total = total.Add(qty)
			continue
		}
		edgeVal, ok := m.EdgeWeight(NetworkPrice, EdgeBest, QuoteCurrency, cur, finalCurrency)
		if !ok {
			continue
		}
		finalQty := edgeVal.Mul(qty)
		out[cur] = ValuePortfolioEntry{FinalQty: finalQty, EdgeVal: edgeVal}
		total = total.Add(finalQty)
	}
	return out, total
}

// canonicalize rotates a raw cycle (as returned by simpleCycles, not
// closed — first element isn't repeated at the end) so it starts at
// its highest-Rank currency, then closes the loop by repeating that
// currency at the end, matching the Python original's rotation +
// cycle.append(cycle[0]).
func canonicalize(raw []currency.Currency) []currency.Currency {
	bestIdx := 0
	for i, c := range raw {
		if c.Rank() > raw[bestIdx].Rank() {
			bestIdx = i
		}
	}
	rotated := make([]currency.Currency, 0, len(raw)+1)
	rotated = append(rotated, raw[bestIdx])
	rotated = append(rotated, raw[bestIdx+1:]...)
	rotated = append(rotated, raw[:bestIdx]...)
	rotated = append(rotated, rotated[0])
	return rotated
}

// cycleValue is the product of the edge weights walked around a
// closed cycle, computed in float64 per spec.md §9's ranking
// heuristic.
func cycleValue(g map[currency.Currency]map[currency.Currency]edge, closed []currency.Currency) float64 {
	val := 1.0
	for i := 0; i < len(closed)-1; i++ {
		row := g[closed[i]]
		e := row[closed[i+1]]
		f, _ := e.weight.Float64()
		val *= f
	}
	return val
}

// simpleCycles enumerates every simple cycle in g (no repeated nodes
// except the implicit close), via a bounded DFS. Graphs in this domain
// have at most a handful of currencies, so this hand-rolled search is
// a deliberate stdlib-only choice (no pack example imports a graph
// library) rather than a performance concern.
func simpleCycles(g map[currency.Currency]map[currency.Currency]edge) [][]currency.Currency {
	var nodes []currency.Currency
	for n := range g {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	seen := make(map[string]bool)
	var out [][]currency.Currency

	var dfs func(start currency.Currency, path []currency.Currency, onPath map[currency.Currency]bool)
	dfs = func(start currency.Currency, path []currency.Currency, onPath map[currency.Currency]bool) {
		cur := path[len(path)-1]
		for next := range g[cur] {
			if next == start {
				if len(path) >= 2 {
					cycle := append([]currency.Currency(nil), path...)
					key := cycleKey(cycle)
					if !seen[key] {
						seen[key] = true
						out = append(out, cycle)
					}
				}
				continue
			}
			if onPath[next] {
				continue
			}
			onPath[next] = true
			dfs(start, append(path, next), onPath)
			delete(onPath, next)
		}
	}

	for _, n := range nodes {
		dfs(n, []currency.Currency{n}, map[currency.Currency]bool{n: true})
	}
	return out
}

// cycleKey canonicalizes a raw (unrotated) cycle to its rotation
// starting at the lowest-valued currency, purely so duplicate
// rotations of the same cycle (found by starting dfs from different
// nodes) dedupe.
func cycleKey(cycle []currency.Currency) string {
	n := len(cycle)
	minIdx := 0
	for i, c := range cycle {
		if c < cycle[minIdx] {
			minIdx = i
		}
	}
	var key string
	for i := 0; i < n; i++ {
		key += cycle[(minIdx+i)%n].String() + ","
	}
	return key
}
