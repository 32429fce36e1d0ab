package domain

import "github.com/shopspring/decimal"

// Trade is a single tape entry. Trades are immutable once appended and
// the tape is a total order by execution time: there is no key and no
// deduplication.
//
// The execution price is always the resting order's price. When the
// resting order was only partially consumed, RestingRemaining holds its
// post-trade quantity; when it was fully consumed, RestingRemaining is
// nil.
type Trade struct {
	Time             int64
	Price            decimal.Decimal
	Quantity         decimal.Decimal
	RestingTrader    string
	RestingOrderID   int64
	RestingRemaining *decimal.Decimal
	IncomingTrader   string
	IncomingSide     Side
}
