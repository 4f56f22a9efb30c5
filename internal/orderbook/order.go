// Package orderbook implements per-product limit order book maintenance
// (price-level aggregation, incremental open/match/done/change
// application) and the trade-history window used for median/mean
// aggregates and maker-placement price discovery.
package orderbook

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/product"
)

// Type is the kind of book event an Order represents.
type Type int

const (
	TypeLimit Type = iota
	TypeMatch
	TypeChange
	TypeCancel
)

func (t Type) String() string {
	switch t {
	case TypeMatch:
		return "match"
	case TypeChange:
		return "change"
	case TypeCancel:
		return "cancel"
	default:
		return "limit"
	}
}

// Status is the lifecycle state of an order.
type Status int

const (
	StatusOpen Status = iota
	StatusFilled
	StatusCanceled
	StatusUnconfirmed
)

func (s Status) String() string {
	switch s {
	case StatusFilled:
		return "filled"
	case StatusCanceled:
		return "canceled"
	case StatusUnconfirmed:
		return "unconfirmed"
	default:
		return "open"
	}
}

// Order is a single feed event or own-order snapshot. Size and price
// are carried as decimal strings for fidelity to the feed's wire
// format, then parsed to decimal.Decimal for arithmetic.
type Order struct {
	ProductID  string
	SequenceID int64
	Side       product.Side
	Size       decimal.Decimal
	Price      decimal.Decimal
	FilledSize decimal.Decimal
	Status     Status
	Type       Type
	OrderID    string
	CreatedAt  time.Time
	Historical bool
	Confirmed  bool
}

// New constructs an Order, matching the Python original's validation:
// size must be non-negative and created_at cannot be in the future.
func New(productID string, sequenceID int64, side product.Side, size, price string, opts ...Option) (*Order, error) {
	sz, err := decimal.NewFromString(size)
	if err != nil {
		return nil, fmt.Errorf("orderbook: invalid size %q: %w", size, err)
	}
	if sz.IsNegative() {
		return nil, fmt.Errorf("orderbook: order size must be non-negative, got %s", size)
	}
	pr, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("orderbook: invalid price %q: %w", price, err)
	}
	o := &Order{
		ProductID:  productID,
		SequenceID: sequenceID,
		Side:       side,
		Size:       sz,
		Price:      pr,
		FilledSize: decimal.Zero,
		Status:     StatusOpen,
		Type:       TypeLimit,
		CreatedAt:  time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.CreatedAt.After(time.Now().UTC()) {
		o.CreatedAt = time.Now().UTC()
	}
	return o, nil
}

// Option customizes an Order at construction time.
type Option func(*Order)

func WithStatus(s Status) Option     { return func(o *Order) { o.Status = s } }
func WithType(t Type) Option         { return func(o *Order) { o.Type = t } }
func WithOrderID(id string) Option   { return func(o *Order) { o.OrderID = id } }
func WithCreatedAt(t time.Time) Option { return func(o *Order) { o.CreatedAt = t } }
func WithHistorical(h bool) Option   { return func(o *Order) { o.Historical = h } }
func WithConfirmed(c bool) Option    { return func(o *Order) { o.Confirmed = c } }

// RemainingSize returns size minus filled size; always >= 0 for a
// well-formed order.
func (o *Order) RemainingSize() decimal.Decimal {
	return o.Size.Sub(o.FilledSize)
}

// AddFilledSize accumulates qty into FilledSize and returns the new
// total.
func (o *Order) AddFilledSize(qty decimal.Decimal) decimal.Decimal {
	o.FilledSize = o.FilledSize.Add(qty)
	return o.FilledSize
}

// CreatedAtSecondsAgo returns how long ago the order was created,
// relative to now.
func (o *Order) CreatedAtSecondsAgo(now time.Time) int64 {
	return int64(now.Sub(o.CreatedAt).Seconds())
}

func (o *Order) String() string {
	return fmt.Sprintf("%s-%s-%s-%s-%s-%s", o.ProductID, o.Size.String(), o.Side, o.Price.String(), o.Type, o.Status)
}
