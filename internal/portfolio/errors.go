package portfolio

import "errors"

// ErrUnknownOrder is returned when an order id is not present in any
// status bucket of an OwnOrderBook.
var ErrUnknownOrder = errors.New("portfolio: unknown order id")

// ErrBadDoneStatus is returned when a done event reports a status
// other than filled or canceled.
var ErrBadDoneStatus = errors.New("portfolio: done order must be filled or canceled")

// ErrCurrencyMismatch names a currency the ledger doesn't track.
// Ledger's Credit and Debit do not return it: they panic on such a
// currency.
var ErrCurrencyMismatch = errors.New("portfolio: unknown currency")

// ErrNoRoute names the case of no profitable cycle for a currency (not
// a failure — just nothing to do). NextTrades does not return it: it
// reports that case by emitting no order for the currency.
var ErrNoRoute = errors.New("portfolio: no profitable route")
