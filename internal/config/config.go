// Package config loads runtime knobs from the environment, following
// config.go/env.go in the teacher verbatim in spirit: small getEnv*
// helpers, an optional .env loader, and a single Config struct other
// packages are constructed from.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chidi150c/currencycycle/internal/exchange"
	"github.com/chidi150c/currencycycle/internal/network"
)

// ProductSpec is one tradeable pair's wire-format metadata, parsed into
// a product.Product at startup.
type ProductSpec struct {
	ID             string
	QuoteCurrency  string
	BaseCurrency   string
	QuoteIncrement string
	BaseMinSize    string
}

// Config holds every runtime knob the orchestrator and its stages are
// built from.
type Config struct {
	// Trading universe
	Products []ProductSpec

	// Store
	RedisAddr   string
	RedisPrefix string
	UseRedis    bool

	// Domain constants (PORTFOLIO_MAKEUP / constants.py, overridable)
	NetworkLookbackSeconds   int64
	AggregationTimeSeconds   int64
	StaleOpenOrdersSeconds   int64
	OrderConfirmationSeconds int64
	QtyMultiplier            string // decimal string, e.g. "0.5"
	MinCycleReturn           float64
	EdgeType                 network.EdgeType
	DefaultMinFraction       string
	DefaultMaxFraction       string

	// Orchestrator batching
	DirtyBatchSize int
	OrderBatchSize int

	// Ops
	Port   int
	DryRun bool
	Replay string // path to a replay fixture; empty means live feed

	Coinbase exchange.CoinbaseConfig
}

// Load reads the process env (already hydrated by LoadDotEnv()) and
// returns a Config with sane defaults for anything missing.
func Load() Config {
	return Config{
		Products:                 defaultProducts(),
		RedisAddr:                getEnv("REDIS_ADDR", ""),
		RedisPrefix:              getEnv("REDIS_PREFIX", "currencycycle"),
		UseRedis:                 getEnv("REDIS_ADDR", "") != "",
		NetworkLookbackSeconds:   getEnvInt64("NETWORK_LOOKBACK", 24*60*30),
		AggregationTimeSeconds:   getEnvInt64("ORDER_AGGREGATION_TIME", 1),
		StaleOpenOrdersSeconds:   getEnvInt64("STALE_OPEN_ORDERS", 5*60),
		OrderConfirmationSeconds: getEnvInt64("ORDER_CONFIRMATION_TIME", 600),
		QtyMultiplier:            getEnv("QTY_MULTIPLIER", "0.5"),
		MinCycleReturn:           getEnvFloat("MIN_CYCLE_RETURN", 1.005),
		EdgeType:                 edgeTypeFromEnv("EDGE_TYPE", network.EdgeMean),
		DefaultMinFraction:       getEnv("DEFAULT_MIN_FRACTION", "0"),
		DefaultMaxFraction:       getEnv("DEFAULT_MAX_FRACTION", "1.0"),
		DirtyBatchSize:           getEnvInt("DIRTY_BATCH_SIZE", 10),
		OrderBatchSize:           getEnvInt("ORDER_BATCH_SIZE", 100),
		Port:                     getEnvInt("PORT", 8080),
		DryRun:                   getEnvBool("DRY_RUN", true),
		Replay:                   getEnv("REPLAY_FIXTURE", ""),
		Coinbase: exchange.CoinbaseConfig{
			APIBase:       getEnv("COINBASE_API_BASE", "https://api.coinbase.com"),
			KeyName:       getEnv("COINBASE_API_KEY_NAME", ""),
			PrivateKeyPEM: getEnv("COINBASE_API_PRIVATE_KEY", getEnv("COINBASE_API_SECRET", "")),
			BearerToken:   getEnv("COINBASE_BEARER_TOKEN", ""),
		},
	}
}

// defaultProducts mirrors PORTFOLIO_MAKEUP's currency set (USD, BTC,
// ETH, LTC) with a three-pair universe rooted at USD.
func defaultProducts() []ProductSpec {
	return []ProductSpec{
		{ID: "BTC-USD", QuoteCurrency: "USD", BaseCurrency: "BTC", QuoteIncrement: "0.01", BaseMinSize: "0.0001"},
		{ID: "ETH-USD", QuoteCurrency: "USD", BaseCurrency: "ETH", QuoteIncrement: "0.01", BaseMinSize: "0.001"},
		{ID: "LTC-USD", QuoteCurrency: "USD", BaseCurrency: "LTC", QuoteIncrement: "0.01", BaseMinSize: "0.01"},
	}
}

func edgeTypeFromEnv(key string, def network.EdgeType) network.EdgeType {
	switch strings.ToLower(getEnv(key, "")) {
	case "best":
		return network.EdgeBest
	case "mean":
		return network.EdgeMean
	case "median":
		return network.EdgeMedian
	case "custom":
		return network.EdgeCustom
	default:
		return def
	}
}

// ---------- env helpers ----------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

// ---------- .env loader ----------

var neededEnvKeys = map[string]struct{}{
	"REDIS_ADDR": {}, "REDIS_PREFIX": {}, "NETWORK_LOOKBACK": {}, "ORDER_AGGREGATION_TIME": {},
	"STALE_OPEN_ORDERS": {}, "ORDER_CONFIRMATION_TIME": {}, "QTY_MULTIPLIER": {}, "MIN_CYCLE_RETURN": {},
	"EDGE_TYPE": {}, "DEFAULT_MIN_FRACTION": {}, "DEFAULT_MAX_FRACTION": {}, "DIRTY_BATCH_SIZE": {},
	"ORDER_BATCH_SIZE": {}, "PORT": {}, "DRY_RUN": {}, "REPLAY_FIXTURE": {},
	"COINBASE_API_BASE": {}, "COINBASE_API_KEY_NAME": {}, "COINBASE_API_PRIVATE_KEY": {},
	"COINBASE_API_SECRET": {}, "COINBASE_BEARER_TOKEN": {},
}

// LoadDotEnv reads .env from "." and ".." and sets only the keys this
// process reads, without overriding variables already in the
// environment — the same ignore-what-you-don't-need loader the teacher
// uses to keep sidecar secrets out of the Go process.
func LoadDotEnv() {
	for _, base := range []string{".", ".."} {
		loadDotEnvFile(filepath.Join(base, ".env"))
	}
}

func loadDotEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(line[len("export "):])
		}
		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		if _, ok := neededEnvKeys[key]; !ok {
			continue
		}
		val := strings.TrimSpace(line[eq+1:])
		if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
			val = val[1 : len(val)-1]
		}
		if idx := strings.IndexAny(val, "#"); idx >= 0 {
			val = strings.TrimSpace(val[:idx])
		}
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
