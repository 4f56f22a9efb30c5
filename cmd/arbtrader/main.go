// Command arbtrader is the process entrypoint: load config, wire the
// store/exchange/feed collaborators, and run the four-stage
// orchestrator inside process_manager.py's `while True: reset = main()`
// restart loop.
//
// Flags:
//
//	-dry-run    Log decisions instead of placing live orders (default true)
//	-replay     Path to a JSON feed fixture to replay instead of a live feed
//
// Boot sequence mirrors main.go in spirit:
//  1. config.LoadDotEnv() + config.Load()
//  2. wire store.Store (Redis if REDIS_ADDR is set, else in-memory)
//  3. wire exchange.Client (Coinbase if credentials are set, else Paper)
//  4. wire feed.Source (replay fixture if -replay is set, else a closed
//     Fake — a live websocket client is out of scope, see DESIGN.md)
//  5. start the ops HTTP server on cfg.Port (/healthz, /metrics, /status)
//  6. loop orchestrator.Run until it reports no restart is needed
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/config"
	"github.com/chidi150c/currencycycle/internal/currency"
	"github.com/chidi150c/currencycycle/internal/exchange"
	"github.com/chidi150c/currencycycle/internal/feed"
	"github.com/chidi150c/currencycycle/internal/logging"
	"github.com/chidi150c/currencycycle/internal/orchestrator"
	"github.com/chidi150c/currencycycle/internal/product"
	"github.com/chidi150c/currencycycle/internal/store"
)

func main() {
	var dryRun bool
	var replayPath string
	flag.BoolVar(&dryRun, "dry-run", true, "log decisions instead of placing live orders")
	flag.StringVar(&replayPath, "replay", "", "path to a JSON feed fixture to replay")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()
	if replayPath != "" {
		cfg.Replay = replayPath
	}
	if !dryRun {
		cfg.DryRun = false
	}

	products, err := buildProducts(cfg.Products)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st := buildStore(cfg)
	defer st.Close()

	exClient := buildExchangeClient(cfg)
	feedSrc := buildFeedSource(cfg)

	logger := logging.NewLogger(1024)
	go logger.Run()
	defer logger.Close()

	settings := orchestrator.DefaultSettings()
	settings.NetworkLookbackSeconds = cfg.NetworkLookbackSeconds
	settings.AggregationTimeSeconds = cfg.AggregationTimeSeconds
	settings.StaleOpenOrdersSeconds = cfg.StaleOpenOrdersSeconds
	settings.OrderConfirmationSeconds = cfg.OrderConfirmationSeconds
	settings.MinCycleReturn = cfg.MinCycleReturn
	settings.EdgeType = cfg.EdgeType
	settings.DirtyBatchSize = cfg.DirtyBatchSize
	settings.OrderBatchSize = cfg.OrderBatchSize
	settings.DryRun = cfg.DryRun
	qtyMultiplier, err := decimal.NewFromString(cfg.QtyMultiplier)
	if err != nil {
		log.Fatalf("config: invalid QTY_MULTIPLIER %q: %v", cfg.QtyMultiplier, err)
	}
	settings.QtyMultiplier = qtyMultiplier

	orch := orchestrator.New(products, feedSrc, exClient, st, logger, settings)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orch.Snapshot())
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("serving ops endpoints on :%d (/healthz, /metrics, /status)", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ops server: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for {
		restart, err := orch.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("orchestrator exited with error: %v", err)
		}
		if !restart {
			break
		}
		log.Printf("restarting pipeline")
	}

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

func buildProducts(specs []config.ProductSpec) (*product.Manager, error) {
	pm := product.NewManager()
	for _, s := range specs {
		quote, ok := currency.Parse(s.QuoteCurrency)
		if !ok {
			return nil, fmt.Errorf("unknown quote currency %q for product %s", s.QuoteCurrency, s.ID)
		}
		base, ok := currency.Parse(s.BaseCurrency)
		if !ok {
			return nil, fmt.Errorf("unknown base currency %q for product %s", s.BaseCurrency, s.ID)
		}
		p, err := product.New(s.ID, quote, base, s.QuoteIncrement, s.BaseMinSize)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", s.ID, err)
		}
		pm.AddProduct(p)
	}
	return pm, nil
}

func buildStore(cfg config.Config) store.Store {
	if !cfg.UseRedis {
		return store.NewMemory()
	}
	cli := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return store.NewRedis(cli, cfg.RedisPrefix)
}

func buildExchangeClient(cfg config.Config) exchange.Client {
	if cfg.Coinbase.BearerToken != "" || (cfg.Coinbase.KeyName != "" && cfg.Coinbase.PrivateKeyPEM != "") {
		return exchange.NewCoinbase(cfg.Coinbase)
	}
	return exchange.NewPaper(map[currency.Currency]decimal.Decimal{
		currency.USD: decimal.RequireFromString("10000"),
	})
}

func buildFeedSource(cfg config.Config) feed.Source {
	if cfg.Replay == "" {
		return feed.NewFake(nil)
	}
	f, err := os.Open(cfg.Replay)
	if err != nil {
		log.Fatalf("replay fixture: %v", err)
	}
	defer f.Close()
	var events []feed.Event
	if err := json.NewDecoder(f).Decode(&events); err != nil {
		log.Fatalf("replay fixture: %v", err)
	}
	return feed.NewFake(events)
}
