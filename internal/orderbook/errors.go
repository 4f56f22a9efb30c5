package orderbook

import "errors"

// ErrSequence is returned when an event arrives with sequence_id <=
// current_seq for its product; the caller should treat it as a silent
// no-op, not a failure.
var ErrSequence = errors.New("orderbook: sequence id at or below current")

// ErrProductMismatch is fatal: the event's product_id does not match
// the book it was applied to.
var ErrProductMismatch = errors.New("orderbook: product id mismatch")

// ErrBadInput is fatal: structurally invalid event (e.g. a negative
// depth).
var ErrBadInput = errors.New("orderbook: bad input")

// ErrNegativeEdgeSize is a defensive assertion failure: a computed
// trade size went negative, indicating a bookkeeping bug upstream.
var ErrNegativeEdgeSize = errors.New("orderbook: negative edge size")
