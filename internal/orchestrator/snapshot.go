package orchestrator

import (
	"github.com/chidi150c/currencycycle/internal/product"
)

// ProductSnapshot is one product's best bid/ask, for the /status
// read-only dashboard feed, replacing visualizer.py's curses UI with
// the data it would need.
type ProductSnapshot struct {
	ProductID string `json:"product_id"`
	BestBid   string `json:"best_bid,omitempty"`
	BestAsk   string `json:"best_ask,omitempty"`
}

// CurrencySnapshot is one currency's ledger balance and USD valuation.
type CurrencySnapshot struct {
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	ValuedUSD string `json:"valued_usd"`
}

// Snapshot is the read-only view of the whole pipeline's current
// state, serialized by the ops HTTP server's /status handler.
type Snapshot struct {
	Products       []ProductSnapshot  `json:"products"`
	Currencies     []CurrencySnapshot `json:"currencies"`
	TotalValuedUSD string             `json:"total_valued_usd"`
}

// Snapshot builds the current read-only view of the order books and
// portfolio valuation, the data visualizer.py's dashboard renders.
func (o *Orchestrator) Snapshot() Snapshot {
	var out Snapshot
	for _, b := range o.books.Books() {
		ps := ProductSnapshot{ProductID: b.ProductID()}
		if bid, ok := b.GetBest(product.Bid); ok {
			ps.BestBid = bid.String()
		}
		if ask, ok := b.GetBest(product.Ask); ok {
			ps.BestAsk = ask.String()
		}
		out.Products = append(out.Products, ps)
	}

	valuation, total := o.ledger.GetValuation()
	out.TotalValuedUSD = total.String()
	for c, entry := range valuation {
		out.Currencies = append(out.Currencies, CurrencySnapshot{
			Currency:  c.String(),
			Balance:   o.ledger.GetBalanceQty(c).String(),
			Available: o.ledger.GetAvailableQty(c).String(),
			ValuedUSD: entry.FinalQty.String(),
		})
	}
	return out
}
