package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Redis is a Store backed by go-redis/v9, with every key namespaced
// under prefix: hashes for price levels and order sizes, sorted sets
// scored by unix second for trade history, plain sets for the dirty
// product trackers, and one expiring hash per currency for fraction
// targets.
type Redis struct {
	cli    *redis.Client
	prefix string
}

// NewRedis wraps an existing client. prefix namespaces all keys (e.g.
// "arbtrader") so multiple instances can share one Redis database.
func NewRedis(cli *redis.Client, prefix string) *Redis {
	return &Redis{cli: cli, prefix: prefix}
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (r *Redis) UpsertPriceLevel(ctx context.Context, productID, side, priceKey string, sum decimal.Decimal) error {
	k := r.key("book", productID, side, "levels")
	if err := r.cli.HSet(ctx, k, priceKey, sum.String()).Err(); err != nil {
		return fmt.Errorf("store: upsert price level: %w", err)
	}
	return nil
}

func (r *Redis) DeletePriceLevel(ctx context.Context, productID, side, priceKey string) error {
	k := r.key("book", productID, side, "levels")
	if err := r.cli.HDel(ctx, k, priceKey).Err(); err != nil {
		return fmt.Errorf("store: delete price level: %w", err)
	}
	return nil
}

func (r *Redis) SetOrderSize(ctx context.Context, productID, side, priceKey, orderID string, size decimal.Decimal) error {
	if orderID == "" {
		return nil
	}
	k := r.key("book", productID, side, "orders", priceKey)
	if err := r.cli.HSet(ctx, k, orderID, size.String()).Err(); err != nil {
		return fmt.Errorf("store: set order size: %w", err)
	}
	return nil
}

func (r *Redis) DeleteOrder(ctx context.Context, productID, side, priceKey, orderID string) error {
	if orderID == "" {
		return nil
	}
	k := r.key("book", productID, side, "orders", priceKey)
	if err := r.cli.HDel(ctx, k, orderID).Err(); err != nil {
		return fmt.Errorf("store: delete order: %w", err)
	}
	return nil
}

func (r *Redis) IncrTradeBucket(ctx context.Context, productID, side, typ string, second int64, delta decimal.Decimal) error {
	k := r.key("trades", productID, side, typ)
	member := strconv.FormatInt(second, 10)
	f, _ := delta.Float64()
	if err := r.cli.ZIncrBy(ctx, k, f, member).Err(); err != nil {
		return fmt.Errorf("store: incr trade bucket: %w", err)
	}
	return nil
}

func (r *Redis) TradeBucketsInRange(ctx context.Context, productID, side, typ string, from, to int64) (map[int64]decimal.Decimal, error) {
	k := r.key("trades", productID, side, typ)
	res, err := r.cli.ZRangeByScoreWithScores(ctx, k, &redis.ZRangeBy{
		Min: strconv.FormatInt(from, 10),
		Max: strconv.FormatInt(to, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("store: trade buckets in range: %w", err)
	}
	out := make(map[int64]decimal.Decimal, len(res))
	for _, z := range res {
		sec, err := strconv.ParseInt(fmt.Sprint(z.Member), 10, 64)
		if err != nil {
			continue
		}
		out[sec] = decimal.NewFromFloat(z.Score)
	}
	return out, nil
}

func (r *Redis) MarkDirty(ctx context.Context, side, productID string) error {
	k := r.key("dirty", side)
	if err := r.cli.SAdd(ctx, k, productID).Err(); err != nil {
		return fmt.Errorf("store: mark dirty: %w", err)
	}
	return nil
}

func (r *Redis) PopDirty(ctx context.Context, side string, n int) ([]string, error) {
	k := r.key("dirty", side)
	out, err := r.cli.SPopN(ctx, k, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: pop dirty: %w", err)
	}
	return out, nil
}

func (r *Redis) SetBalance(ctx context.Context, cur string, available, hold decimal.Decimal) error {
	k := r.key("balances", cur)
	if err := r.cli.HSet(ctx, k, "available", available.String(), "hold", hold.String()).Err(); err != nil {
		return fmt.Errorf("store: set balance: %w", err)
	}
	return nil
}

func (r *Redis) GetBalance(ctx context.Context, cur string) (decimal.Decimal, decimal.Decimal, bool, error) {
	k := r.key("balances", cur)
	vals, err := r.cli.HMGet(ctx, k, "available", "hold").Result()
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("store: get balance: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return decimal.Zero, decimal.Zero, false, nil
	}
	available, err := decimal.NewFromString(fmt.Sprint(vals[0]))
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("store: parse available: %w", err)
	}
	hold, err := decimal.NewFromString(fmt.Sprint(vals[1]))
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("store: parse hold: %w", err)
	}
	return available, hold, true, nil
}

func (r *Redis) SetFractionTarget(ctx context.Context, cur string, min, max decimal.Decimal, ttl time.Duration) error {
	k := r.key("fraction", cur)
	if err := r.cli.HSet(ctx, k, "min", min.String(), "max", max.String()).Err(); err != nil {
		return fmt.Errorf("store: set fraction target: %w", err)
	}
	if err := r.cli.Expire(ctx, k, ttl).Err(); err != nil {
		return fmt.Errorf("store: expire fraction target: %w", err)
	}
	return nil
}

func (r *Redis) GetFractionTarget(ctx context.Context, cur string) (decimal.Decimal, decimal.Decimal, bool, error) {
	k := r.key("fraction", cur)
	vals, err := r.cli.HMGet(ctx, k, "min", "max").Result()
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("store: get fraction target: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return decimal.Zero, decimal.Zero, false, nil
	}
	min, err := decimal.NewFromString(fmt.Sprint(vals[0]))
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("store: parse min: %w", err)
	}
	max, err := decimal.NewFromString(fmt.Sprint(vals[1]))
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("store: parse max: %w", err)
	}
	return min, max, true, nil
}

func (r *Redis) Close() error {
	if err := r.cli.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
