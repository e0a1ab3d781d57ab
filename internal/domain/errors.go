package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNoPrice             = errors.New("no price available from any source")
	ErrStaleQuote          = errors.New("price quote is stale")
	ErrTradeInFlight       = errors.New("another trade is currently executing")
	ErrPaused              = errors.New("trading is paused")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRateLimited         = errors.New("rate limited")
	ErrInvalidQuote        = errors.New("invalid price quote")
)
