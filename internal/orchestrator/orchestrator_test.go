package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/exchange"
	"github.com/chidi150c/currencycycle/internal/feed"
	"github.com/chidi150c/currencycycle/internal/logging"
	"github.com/chidi150c/currencycycle/internal/network"
	"github.com/chidi150c/currencycycle/internal/orchestrator"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

func mustManager(t *testing.T) *product.Manager {
	t.Helper()
	pm := product.NewManager()
	p, err := product.New("BTC-USD", currency.USD, currency.BTC, "0.01", "0.001")
	require.NoError(t, err)
	pm.AddProduct(p)
	return pm
}

// TestRunDrainsFixtureAndExitsOnCancel drives the full four-stage
// pipeline over a tiny replayed fixture and confirms it shuts down
// cleanly once the parent context is canceled, mirroring
// process_manager.py's "exit_event set -> all processes join" path.
func TestRunDrainsFixtureAndExitsOnCancel(t *testing.T) {
	events := []feed.Event{
		{Type: feed.EventOpen, ProductID: "BTC-USD", SequenceID: 1, OrderID: "o1", Side: "buy", Price: "100", Size: "1"},
		{Type: feed.EventOpen, ProductID: "BTC-USD", SequenceID: 2, OrderID: "o2", Side: "sell", Price: "101", Size: "1"},
	}
	orch := newTestOrchestrator(t, events)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	restart, err := orch.Run(ctx)
	require.False(t, restart)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	snap := orch.Snapshot()
	require.Len(t, snap.Products, 1)
	require.Equal(t, "BTC-USD", snap.Products[0].ProductID)
	require.Equal(t, "100", snap.Products[0].BestBid)
	require.Equal(t, "101", snap.Products[0].BestAsk)
}

func newTestOrchestrator(t *testing.T, events []feed.Event) *orchestrator.Orchestrator {
	t.Helper()
	pm := mustManager(t)
	fakeFeed := feed.NewFake(events)
	mem := store.NewMemory()
	t.Cleanup(func() { mem.Close() })
	paper := exchange.NewPaper(map[currency.Currency]decimal.Decimal{
		currency.USD: decimal.RequireFromString("1000"),
		currency.BTC: decimal.RequireFromString("1"),
	})
	logger := logging.NewLogger(64)
	go logger.Run()
	t.Cleanup(logger.Close)

	settings := orchestrator.DefaultSettings()
	settings.NetworkLookbackSeconds = 1800
	settings.AggregationTimeSeconds = 1
	settings.StaleOpenOrdersSeconds = 300
	settings.OrderConfirmationSeconds = 600
	settings.MinCycleReturn = 1.005
	settings.EdgeType = network.EdgeBest
	settings.DirtyBatchSize = 10
	settings.OrderBatchSize = 10
	settings.DryRun = true
	settings.QtyMultiplier = decimal.RequireFromString("0.5")
	settings.NetworkPollInterval = 5 * time.Millisecond
	settings.PortfolioPollInterval = 5 * time.Millisecond

	return orchestrator.New(pm, fakeFeed, paper, mem, logger, settings)
}

// TestRunSignalsRestartOnFeedSequenceGap reproduces scenario S6: a
// product's events arrive as seq 1, 2, 4. The book engine would
// tolerate the jump, but the feed worker must detect the missing 3
// and signal a global restart (ErrFeedGap), independent of whatever
// the book engine does with the same trace.
func TestRunSignalsRestartOnFeedSequenceGap(t *testing.T) {
	events := []feed.Event{
		{Type: feed.EventOpen, ProductID: "BTC-USD", SequenceID: 1, OrderID: "o1", Side: "buy", Price: "100", Size: "1"},
		{Type: feed.EventOpen, ProductID: "BTC-USD", SequenceID: 2, OrderID: "o2", Side: "sell", Price: "101", Size: "1"},
		{Type: feed.EventOpen, ProductID: "BTC-USD", SequenceID: 4, OrderID: "o3", Side: "buy", Price: "99", Size: "1"},
	}
	orch := newTestOrchestrator(t, events)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	restart, err := orch.Run(ctx)
	require.True(t, restart)
	require.ErrorIs(t, err, orchestrator.ErrFeedGap)
}
