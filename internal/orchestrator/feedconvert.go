package orchestrator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/currencycycle/internal/feed"
	"github.com/chidi150c/currencycycle/internal/orderbook"
	"github.com/chidi150c/currencycycle/internal/product"
)

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// sideFromFeed maps the feed wire convention ("buy"/"sell") to a
// resting order's Side, mirroring
// OrderBookProcessor.map_trade_side_to_order_side (sell -> ask,
// buy -> bid).
func sideFromFeed(raw string) (product.Side, error) {
	switch raw {
	case "buy":
		return product.Bid, nil
	case "sell":
		return product.Ask, nil
	default:
		return 0, fmt.Errorf("orchestrator: unrecognized feed side %q", raw)
	}
}

// orderFromEvent turns one raw feed.Event into the orderbook.Order its
// Type/Status requires, following each branch of
// OrderBookProcessor.process_next_order's get_open_order /
// get_done_order / get_match_order / get_change_order helpers.
func orderFromEvent(e feed.Event) (*orderbook.Order, error) {
	side, err := sideFromFeed(e.Side)
	if err != nil {
		return nil, err
	}

	opts := []orderbook.Option{
		orderbook.WithOrderID(e.OrderID),
		orderbook.WithCreatedAt(e.Time),
	}

	switch e.Type {
	case feed.EventOpen:
		return orderbook.New(e.ProductID, e.SequenceID, side, e.Size, e.Price, opts...)

	case feed.EventDone:
		status := orderbook.StatusCanceled
		typ := orderbook.TypeCancel
		if e.Reason == "filled" {
			status = orderbook.StatusFilled
			typ = orderbook.TypeMatch
		}
		opts = append(opts, orderbook.WithStatus(status), orderbook.WithType(typ))
		return orderbook.New(e.ProductID, e.SequenceID, side, e.Size, e.Price, opts...)

	case feed.EventMatch:
		opts = append(opts, orderbook.WithType(orderbook.TypeMatch))
		return orderbook.New(e.ProductID, e.SequenceID, side, e.NewSize, e.Price, opts...)

	case feed.EventChange:
		o, err := orderbook.New(e.ProductID, e.SequenceID, side, e.Size, e.Price,
			append(opts, orderbook.WithType(orderbook.TypeChange))...)
		if err != nil {
			return nil, err
		}
		newSize, err := decimalOrZero(e.NewSize)
		if err != nil {
			return nil, err
		}
		o.FilledSize = newSize // convention: change events carry new remaining size here
		return o, nil

	default:
		return nil, fmt.Errorf("orchestrator: event type %s has no book representation", e.Type)
	}
}
