// Package orchestrator wires the four concurrent stages (feed, book,
// network, portfolio) into one running pipeline, the Go home of
// process_manager.py's process supervisor: goroutines and channels
// stand in for multiprocessing.Process, since Go's runtime needs no
// GIL workaround to run the four stages in parallel.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/exchange"
	"github.com/chidi150c/currencycycle/internal/feed"
	"github.com/chidi150c/currencycycle/internal/logging"
	"github.com/chidi150c/currencycycle/internal/metrics"
	"github.com/chidi150c/currencycycle/internal/network"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/portfolio"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

// Settings carries the constants.py-derived knobs Run needs, read out
// of internal/config.Config by the caller so this package stays
// decoupled from env parsing.
type Settings struct {
	NetworkLookbackSeconds  int64
	AggregationTimeSeconds  int64
	StaleOpenOrdersSeconds  int64
	OrderConfirmationSeconds int64
	QtyMultiplier           decimal.Decimal
	MinCycleReturn          float64
	EdgeType                network.EdgeType
	DirtyBatchSize          int
	OrderBatchSize          int
	DryRun                  bool
	NetworkPollInterval     time.Duration // throttles the otherwise-tight network refresh loop
	PortfolioPollInterval   time.Duration // throttles the otherwise-tight trade-decision loop
}

// DefaultSettings fills in poll intervals the zero Settings{} doesn't
// set; callers still provide the domain constants explicitly.
func DefaultSettings() Settings {
	return Settings{
		NetworkPollInterval:   50 * time.Millisecond,
		PortfolioPollInterval: 200 * time.Millisecond,
	}
}

// Orchestrator owns every stage's collaborators and runs them as
// goroutines over shared channels, per spec.md §5's four-stage
// concurrency model.
type Orchestrator struct {
	products *product.Manager
	feedSrc  feed.Source
	exClient exchange.Client
	store    store.Store
	logger   *logging.Logger

	books  *orderbook.Manager
	dirty  *orderbook.DirtyTracker
	net    *network.Manager
	own    *portfolio.OwnOrderBook
	ledger *portfolio.Ledger
	trader *portfolio.Trader

	settings Settings

	mu    sync.RWMutex
	ready [3]bool // book, network, portfolio — mirrors process_manager.py's ready_events
}

// New builds an Orchestrator. st must be the same Store instance passed
// into books so book-stage writes and network-stage reads observe each
// other.
func New(products *product.Manager, feedSrc feed.Source, exClient exchange.Client, st store.Store, logger *logging.Logger, settings Settings) *Orchestrator {
	dirty := orderbook.NewDirtyTracker()
	books := orderbook.NewManager(products, st, dirty)
	books.SetLogger(logger)
	net := network.NewManager()
	own := portfolio.NewOwnOrderBook(products)
	ledger := portfolio.NewLedger(products, own, books, net, st)
	trader := portfolio.NewTrader(ledger, net, settings.EdgeType, settings.MinCycleReturn)

	return &Orchestrator{
		products: products,
		feedSrc:  feedSrc,
		exClient: exClient,
		store:    st,
		logger:   logger,
		books:    books,
		dirty:    dirty,
		net:      net,
		own:      own,
		ledger:   ledger,
		trader:   trader,
		settings: settings,
	}
}

// Ledger exposes the portfolio ledger for the ops HTTP surface.
func (o *Orchestrator) Ledger() *portfolio.Ledger { return o.ledger }

// Books exposes the order book manager for the ops HTTP surface.
func (o *Orchestrator) Books() *orderbook.Manager { return o.books }

// Run wires and runs the four stages until ctx is canceled or a fatal
// error forces an early exit, then returns whether the caller should
// restart — mirroring main()'s `while True: reset = main()` in
// process_manager.py, which always re-bootstraps after any exit path.
func (o *Orchestrator) Run(ctx context.Context) (restart bool, err error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		fatalMu  sync.Mutex
		fatalErr error
	)
	fail := func(stage string, e error) {
		o.logger.Log(stage, logging.Error, e.Error())
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = e
		}
		fatalMu.Unlock()
		cancel()
	}

	bookEvents := make(chan feed.Event, 256)
	portfolioEvents := make(chan feed.Event, 256)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); o.runFeedStage(runCtx, bookEvents, portfolioEvents, fail) }()
	go func() { defer wg.Done(); o.runBookStage(runCtx, bookEvents) }()
	go func() { defer wg.Done(); o.runNetworkStage(runCtx) }()
	go func() { defer wg.Done(); o.runPortfolioStage(runCtx, portfolioEvents, fail) }()

	o.logger.Log("orchestrator", logging.Info, "all stages started")
	<-runCtx.Done()
	o.logger.Log("orchestrator", logging.Info, "exit signaled, joining stages")
	wg.Wait()
	o.logger.Log("orchestrator", logging.Info, "all stages joined")

	metrics.RestartsTotal.Inc()

	fatalMu.Lock()
	defer fatalMu.Unlock()
	if ctx.Err() != nil {
		// parent context canceled (SIGINT/SIGTERM): caller decides whether
		// to restart, so don't force it here.
		return false, ctx.Err()
	}
	return true, fatalErr
}

func (o *Orchestrator) setReady(stage int) {
	o.mu.Lock()
	o.ready[stage] = true
	o.mu.Unlock()
}

func (o *Orchestrator) allReady() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ready[0] && o.ready[1] && o.ready[2]
}

// ErrFeedGap signals a per-product non-contiguous sequence id, the
// feed worker's half of S6 (the book engine's half is Book.Apply
// tolerating and dropping the same gap via ErrSequence).
var ErrFeedGap = errors.New("orchestrator: feed sequence gap")

// runFeedStage pulls raw events off feedSrc and fans each one out to
// both the book and portfolio stages, mirroring ExchangeWebsocket
// writing into both comm_queues[0] and comm_queues[1]. It also
// validates each product's sequence id is monotone and contiguous,
// mirroring the feed worker's half of gap detection: a jump (e.g.
// ..., 2, 4) signals a global restart instead of being silently
// forwarded.
func (o *Orchestrator) runFeedStage(ctx context.Context, bookEvents, portfolioEvents chan<- feed.Event, fail func(string, error)) {
	lastSeq := make(map[string]int64)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		e, err := o.feedSrc.Next(ctx)
		if err != nil {
			if errors.Is(err, feed.ErrClosed) || errors.Is(err, context.Canceled) {
				return
			}
			fail("feed", err)
			return
		}
		if e.Type != feed.EventHeartbeat {
			if last, ok := lastSeq[e.ProductID]; ok && e.SequenceID > last+1 {
				fail("feed", fmt.Errorf("%w: product %s jumped %d -> %d", ErrFeedGap, e.ProductID, last, e.SequenceID))
				return
			}
			if e.SequenceID > lastSeq[e.ProductID] {
				lastSeq[e.ProductID] = e.SequenceID
			}
		}
		metrics.FeedEventsTotal.WithLabelValues(e.ProductID, e.Type.String()).Inc()
		select {
		case bookEvents <- e:
		case <-ctx.Done():
			return
		}
		select {
		case portfolioEvents <- e:
		case <-ctx.Done():
			return
		}
	}
}

// runBookStage applies every feed event to its product's book,
// mirroring OrderBookProcessor.process_next_order.
func (o *Orchestrator) runBookStage(ctx context.Context, events <-chan feed.Event) {
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ord, err := orderFromEvent(e)
			if err != nil {
				o.logger.Log("book", logging.Warn, err.Error())
				continue
			}
			if err := o.books.Apply(ctx, ord); err != nil {
				if errors.Is(err, orderbook.ErrSequence) {
					continue // stale event, expected under reordering
				}
				o.logger.Log("book", logging.Error, err.Error())
				metrics.BookApplyErrorsTotal.WithLabelValues(e.ProductID, "apply").Inc()
				continue
			}
			if first {
				o.setReady(0)
				first = false
			}
		}
	}
}

// runNetworkStage refreshes every dirty product's edges on both sides,
// mirroring NetworkProcessor.run's tight
// order_book_manager.update_network_manager() loop, throttled by
// NetworkPollInterval so it doesn't spin a core doing nothing between
// book updates.
func (o *Orchestrator) runNetworkStage(ctx context.Context) {
	ticker := time.NewTicker(o.settings.NetworkPollInterval)
	defer ticker.Stop()
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().Unix()
			for _, side := range []orderbook.Side{product.Bid, product.Ask} {
				ids := o.dirty.PopN(side, o.settings.DirtyBatchSize)
				for _, id := range ids {
					b, ok := o.books.Book(id)
					if !ok {
						continue
					}
					o.net.UpdateFromBook(b, side, now, o.settings.NetworkLookbackSeconds, o.settings.AggregationTimeSeconds, o.settings.QtyMultiplier)
				}
			}
			for c := range o.products.Currencies() {
				best, ok := bestCycleValue(o.net, o.settings.EdgeType, c)
				if ok {
					metrics.CycleValueGauge.WithLabelValues(c.String(), o.settings.EdgeType.String()).Set(best)
				}
			}
			if first {
				o.setReady(1)
				first = false
			}
		}
	}
}

func bestCycleValue(net *network.Manager, et network.EdgeType, start currency.Currency) (float64, bool) {
	hops := net.NextHopsFor(et, start)
	best, ok := 0.0, false
	for v := range hops {
		if !ok || v > best {
			best, ok = v, true
		}
	}
	return best, ok
}

// runPortfolioStage applies match/done events against own orders and,
// once every stage has produced at least one update, walks profitable
// cycles and places new maker orders — mirroring
// PortfolioProcessor.run's process_websocket_message +
// create_orders_if_needed, gated on all_processes_ready.
func (o *Orchestrator) runPortfolioStage(ctx context.Context, events <-chan feed.Event, fail func(string, error)) {
	ticker := time.NewTicker(o.settings.PortfolioPollInterval)
	defer ticker.Stop()
	o.setReady(2)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			o.applyOwnOrderEvent(ctx, e)
		case <-ticker.C:
			o.reportStaleOrders()
			if o.allReady() {
				o.createOrdersIfNeeded(ctx, fail)
			}
		}
	}
}

func (o *Orchestrator) applyOwnOrderEvent(ctx context.Context, e feed.Event) {
	switch e.Type {
	case feed.EventMatch:
		qty, err := decimalOrZero(e.NewSize)
		if err != nil {
			return
		}
		if _, err := o.ledger.HandleMatchOrder(ctx, e.OrderID, qty); err != nil {
			return // not one of ours
		}
	case feed.EventDone:
		status := orderbook.StatusCanceled
		if e.Reason == "filled" {
			status = orderbook.StatusFilled
		}
		if _, err := o.ledger.HandleDoneOrder(e.OrderID, status); err != nil {
			return
		}
		metrics.OrdersDoneTotal.WithLabelValues(e.ProductID, status.String()).Inc()
	}
}

// reportStaleOrders logs (but never auto-cancels or auto-unregisters)
// stale open and expired-unconfirmed orders, per the explicit decision
// to leave PortfolioProcessor's cancel_orders_if_needed /
// remove_unconfirmed_orders_if_needed commented-out behavior
// unexecuted.
func (o *Orchestrator) reportStaleOrders() {
	now := time.Now()
	if ids := o.own.GetStaleOpenOrders(now, o.settings.StaleOpenOrdersSeconds); len(ids) > 0 {
		o.logger.Log("portfolio", logging.Info, "stale open orders observed (not canceled): "+joinIDs(ids))
	}
	if ids := o.own.GetExpiredUnconfirmedOrders(now, o.settings.OrderConfirmationSeconds); len(ids) > 0 {
		o.logger.Log("portfolio", logging.Warn, "expired unconfirmed orders observed (not removed): "+joinIDs(ids))
	}
}

func (o *Orchestrator) createOrdersIfNeeded(ctx context.Context, fail func(string, error)) {
	orders := o.trader.NextTrades(ctx)
	if len(orders) == 0 {
		return
	}
	if o.settings.DryRun {
		for _, ord := range orders {
			o.logger.Log("portfolio", logging.Info, "dry-run would place order: "+ord.String())
		}
		return
	}

	var placedIDs []string
	for _, ord := range orders {
		placed, err := o.exClient.PlaceOrder(ctx, ord.ProductID, ord.Side, ord.Price, ord.Size)
		if err != nil {
			o.logger.Log("portfolio", logging.Error, "place order failed, rolling back pass: "+err.Error())
			for _, id := range placedIDs {
				_ = o.exClient.CancelOrder(ctx, ord.ProductID, id)
				_, _ = o.own.Remove(id)
			}
			return
		}
		confirmed, cerr := orderbook.New(ord.ProductID, 0, ord.Side, placed.Size.String(), placed.Price.String(),
			orderbook.WithOrderID(placed.OrderID), orderbook.WithStatus(orderbook.StatusUnconfirmed))
		if cerr != nil {
			continue
		}
		o.own.Add(confirmed)
		placedIDs = append(placedIDs, placed.OrderID)
		metrics.OrdersPlacedTotal.WithLabelValues(ord.ProductID, ord.Side.String()).Inc()
	}
}

func joinIDs(ids []string) string {
	out := ids[0]
	for _, id := range ids[1:] {
		out += "," + id
	}
	return out
}
