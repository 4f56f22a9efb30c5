package orderbook

import (
	"sort"

	"github.com/shopspring/decimal"
)

// bucket is one per-second aggregate in a trade-history stream: a
// unix-second score and the running size total at that score.
type bucket struct {
	second int64
	size   decimal.Decimal
}

// historyStream is the in-memory mirror of one (side, type) trade
// history stream: a time-ordered score index of unix-second ->
// per-second aggregated size, matching spec.md §3's "score-ordered
// indexes".
type historyStream struct {
	// buckets is kept sorted ascending by second; appends are almost
	// always at or near the tail since feed events arrive close to
	// real time, so a short scan-back plus insert is cheap in practice.
	buckets []bucket
}

func newHistoryStream() *historyStream { return &historyStream{} }

func (h *historyStream) add(second int64, size decimal.Decimal) {
	n := len(h.buckets)
	if n > 0 && h.buckets[n-1].second == second {
		h.buckets[n-1].size = h.buckets[n-1].size.Add(size)
		return
	}
	idx := sort.Search(n, func(i int) bool { return h.buckets[i].second >= second })
	if idx < n && h.buckets[idx].second == second {
		h.buckets[idx].size = h.buckets[idx].size.Add(size)
		return
	}
	h.buckets = append(h.buckets, bucket{})
	copy(h.buckets[idx+1:], h.buckets[idx:])
	h.buckets[idx] = bucket{second: second, size: size}
}

// inRange returns all buckets with second in [from, to], ascending.
func (h *historyStream) inRange(from, to int64) []bucket {
	lo := sort.Search(len(h.buckets), func(i int) bool { return h.buckets[i].second >= from })
	hi := sort.Search(len(h.buckets), func(i int) bool { return h.buckets[i].second > to })
	if lo >= hi {
		return nil
	}
	out := make([]bucket, hi-lo)
	copy(out, h.buckets[lo:hi])
	return out
}

// GetTradeQuantities buckets raw per-second sizes over the last
// secondsAgo seconds, optionally re-grouping by groupByPeriod (0 means
// no re-grouping: each raw second is its own bucket). Adjacent buckets
// that land on the same regrouped key are coalesced by summing, and
// score order is preserved, per spec.md §4.2.
func (b *Book) GetTradeQuantities(side Side, typ Type, nowUnix, secondsAgo int64, groupByPeriod int64) []decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stream := b.history[side][typ]
	raw := stream.inRange(nowUnix-secondsAgo, nowUnix)
	if len(raw) == 0 {
		return nil
	}
	var out []decimal.Decimal
	var lastKey int64
	haveLast := false
	for _, bk := range raw {
		key := bk.second
		if groupByPeriod > 0 {
			key = (bk.second / groupByPeriod) * groupByPeriod
		}
		if haveLast && key == lastKey {
			out[len(out)-1] = out[len(out)-1].Add(bk.size)
		} else {
			out = append(out, bk.size)
			lastKey = key
			haveLast = true
		}
	}
	return out
}

// Mean returns the arithmetic mean of vals, or (0, false) if empty.
func Mean(vals []decimal.Decimal) (decimal.Decimal, bool) {
	if len(vals) == 0 {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, v := range vals {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(vals)))), true
}

// Median returns the median of vals, or (0, false) if empty.
func Median(vals []decimal.Decimal) (decimal.Decimal, bool) {
	if len(vals) == 0 {
		return decimal.Zero, false
	}
	sorted := make([]decimal.Decimal, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2)), true
}

// Mode returns the most frequent value in vals, or (0, false) if empty
// or if there is no unique mode (matches Python's statistics.mode
// raising StatisticsError on multiple modes, mapped here to "none").
func Mode(vals []decimal.Decimal) (decimal.Decimal, bool) {
	if len(vals) == 0 {
		return decimal.Zero, false
	}
	counts := make(map[string]int)
	order := make(map[string]decimal.Decimal)
	for _, v := range vals {
		k := v.String()
		counts[k]++
		order[k] = v
	}
	best := -1
	bestKey := ""
	tie := false
	for k, c := range counts {
		if c > best {
			best = c
			bestKey = k
			tie = false
		} else if c == best {
			tie = true
		}
	}
	if tie {
		return decimal.Zero, false
	}
	return order[bestKey], true
}

// GetEdgeTradeSize computes the trade size used to size a network
// edge, per spec.md §4.2: best edges carry no size signal (0); mean and
// custom use the mean of bucketed trade sizes (custom divides by 10);
// median uses the bucketed median. The result is asserted
// non-negative.
func (b *Book) GetEdgeTradeSize(side Side, typ Type, nowUnix, secondsAgo int64, edgeType EdgeType, groupByPeriod int64) (decimal.Decimal, bool, error) {
	var val decimal.Decimal
	var ok bool
	switch edgeType {
	case EdgeBest:
		return decimal.Zero, true, nil
	case EdgeMean:
		val, ok = Mean(b.GetTradeQuantities(side, typ, nowUnix, secondsAgo, groupByPeriod))
	case EdgeMedian:
		val, ok = Median(b.GetTradeQuantities(side, typ, nowUnix, secondsAgo, groupByPeriod))
	case EdgeCustom:
		val, ok = Mean(b.GetTradeQuantities(side, typ, nowUnix, secondsAgo, groupByPeriod))
		if ok {
			val = val.Div(decimal.NewFromInt(10))
		}
	}
	if !ok {
		return decimal.Zero, false, nil
	}
	if val.IsNegative() {
		return decimal.Zero, false, ErrNegativeEdgeSize
	}
	return val, true, nil
}

// EdgeType selects the function used to derive a graph-edge weight.
// Declared here (rather than in the network package) because trade
// history aggregation (this file) is what computes it.
type EdgeType int

const (
	EdgeBest EdgeType = iota
	EdgeMean
	EdgeMedian
	EdgeCustom
)

func (e EdgeType) String() string {
	switch e {
	case EdgeMean:
		return "mean"
	case EdgeMedian:
		return "median"
	case EdgeCustom:
		return "custom"
	default:
		return "best"
	}
}
