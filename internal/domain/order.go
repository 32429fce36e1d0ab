package domain

import "github.com/shopspring/decimal"

// OrderKind distinguishes limit orders from market orders.
type OrderKind string

const (
	OrderKindLimit  OrderKind = "limit"
	OrderKindMarket OrderKind = "market"
)

// Valid reports whether the kind is one of the two supported kinds.
func (k OrderKind) Valid() bool {
	return k == OrderKindLimit || k == OrderKindMarket
}

// Side indicates whether an order is a bid (buy) or ask (sell).
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Valid reports whether the side is bid or ask.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// Order is a limit order resting in the book. Market orders never
// materialize as Orders: they either fill or their remainder vanishes.
type Order struct {
	ID       int64
	TraderID string
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	// Sequence is the logical admission time, the time component of
	// price-time priority. Smaller sequence fills first within a price.
	Sequence int64
}

// Quote is an order submission. Timestamp and OrderID are meaningful only
// when replaying historical data; fresh submissions are stamped and
// numbered by the book.
type Quote struct {
	Kind      OrderKind
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	TraderID  string
	Timestamp int64
	OrderID   int64
}

// OrderUpdate carries the fields a modify operation may change.
type OrderUpdate struct {
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}
