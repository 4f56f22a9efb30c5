// Package store defines the persistence surface the order book,
// network, and portfolio stages write through to, and provides two
// implementations: Memory (in-process, for tests and single-node
// dry runs) and Redis (production, backed by go-redis/v9).
//
// The in-memory ladder/ladder-index structures in internal/orderbook
// remain the primary read path; Store exists so book/portfolio state
// survives a process restart and can be inspected out-of-process,
// mirroring the key layout spec.md §6 assigns to the original's direct
// redis-py calls, now behind an injected interface instead of a
// package-global client.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the persistence surface for one arbitrage-trader instance.
// All methods are write-through mirrors of in-memory state except the
// trade-bucket range query and the portfolio reads. Nothing in this
// repository calls TradeBucketsInRange or GetBalance; state is not
// rehydrated from the Store after a restart.
type Store interface {
	// Order book ladder mirror.
	UpsertPriceLevel(ctx context.Context, productID, side, priceKey string, sum decimal.Decimal) error
	DeletePriceLevel(ctx context.Context, productID, side, priceKey string) error
	SetOrderSize(ctx context.Context, productID, side, priceKey, orderID string, size decimal.Decimal) error
	DeleteOrder(ctx context.Context, productID, side, priceKey, orderID string) error

	// Trade history.
	IncrTradeBucket(ctx context.Context, productID, side, typ string, second int64, delta decimal.Decimal) error
	TradeBucketsInRange(ctx context.Context, productID, side, typ string, from, to int64) (map[int64]decimal.Decimal, error)

	// Dirty-product set mirror. The pipeline tracks dirty products in
	// orderbook.DirtyTracker and does not call these two methods.
	MarkDirty(ctx context.Context, side, productID string) error
	PopDirty(ctx context.Context, side string, n int) ([]string, error)

	// Portfolio.
	SetBalance(ctx context.Context, cur string, available, hold decimal.Decimal) error
	GetBalance(ctx context.Context, cur string) (available, hold decimal.Decimal, ok bool, err error)
	SetFractionTarget(ctx context.Context, cur string, min, max decimal.Decimal, ttl time.Duration) error
	GetFractionTarget(ctx context.Context, cur string) (min, max decimal.Decimal, ok bool, err error)

	Close() error
}
