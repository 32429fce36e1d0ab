// Package book implements a two-sided limit order book with
// price-time-priority matching. The Book is single-writer: callers must
// serialize every operation externally (see service.MarketService).
package book

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mlopes/matchbook/internal/domain"
)

// Book is the matching engine for a single instrument. It owns both
// sides of the book, the logical clock, the order-id counter, and the
// append-only trade tape. All state is in memory and mutated only
// through the methods below.
type Book struct {
	bids *side
	asks *side
	tape []domain.Trade

	// time is a logical clock: it ticks once per operation on fresh
	// submissions and follows the source timestamps during replay.
	time        int64
	nextOrderID int64

	log *slog.Logger
}

// Option configures a Book.
type Option func(*Book)

// WithLogger sets the logger used for verbose trade reporting.
func WithLogger(l *slog.Logger) Option {
	return func(b *Book) {
		b.log = l
	}
}

// New creates an empty Book.
func New(opts ...Option) *Book {
	b := &Book{
		bids: newSide(domain.SideBid),
		asks: newSide(domain.SideAsk),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit validates a quote, stamps it, and runs it through the matching
// algorithm. It returns the trades executed, in execution order, and the
// resting order if a limit order's remainder entered the book.
//
// When replay is true the quote's Timestamp becomes the book's logical
// time (timestamps may move non-monotonically if the replay source
// does), and a supplied OrderID is kept if the order rests. Fresh
// submissions are stamped from the book's own clock and numbered from
// its counter.
//
// Validation failures leave the book untouched: no clock tick, no id
// consumed, no partial application.
func (b *Book) Submit(q domain.Quote, replay, verbose bool) ([]domain.Trade, *domain.Order, error) {
	if q.Quantity.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: quantity %s", domain.ErrInvalidQuantity, q.Quantity)
	}
	if !q.Side.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrInvalidSide, q.Side)
	}
	if !q.Kind.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrInvalidOrderKind, q.Kind)
	}

	if replay {
		b.time = q.Timestamp
	} else {
		b.time++
		q.Timestamp = b.time
		b.nextOrderID++
	}

	if q.Kind == domain.OrderKindMarket {
		return b.processMarket(q, verbose), nil, nil
	}
	trades, resting := b.processLimit(q, replay, verbose)
	return trades, resting, nil
}

// processMarket consumes quantity against the opposing side regardless
// of price. Market orders never rest: any remainder left when the
// opposing side is exhausted is discarded.
func (b *Book) processMarket(q domain.Quote, verbose bool) []domain.Trade {
	opp := b.opposing(q.Side)
	remaining := q.Quantity
	var trades []domain.Trade
	for remaining.Sign() > 0 {
		lvl, ok := opp.bestLevel()
		if !ok {
			break
		}
		var executed []domain.Trade
		remaining, executed = b.fillLevel(opp, lvl, remaining, q, verbose)
		trades = append(trades, executed...)
	}
	return trades
}

// processLimit crosses the book while the quote is marketable against
// the opposing best price, then rests any strictly positive remainder
// on its own side at its limit price.
func (b *Book) processLimit(q domain.Quote, replay, verbose bool) ([]domain.Trade, *domain.Order) {
	opp := b.opposing(q.Side)
	remaining := q.Quantity
	var trades []domain.Trade
	for remaining.Sign() > 0 {
		best, ok := opp.bestPrice()
		if !ok || !crosses(q.Side, q.Price, best) {
			break
		}
		lvl, _ := opp.bestLevel()
		var executed []domain.Trade
		remaining, executed = b.fillLevel(opp, lvl, remaining, q, verbose)
		trades = append(trades, executed...)
	}

	if remaining.Sign() <= 0 {
		return trades, nil
	}

	id := q.OrderID
	if !replay {
		id = b.nextOrderID
	} else if id == 0 {
		b.nextOrderID++
		id = b.nextOrderID
	}
	order := &domain.Order{
		ID:       id,
		TraderID: q.TraderID,
		Side:     q.Side,
		Price:    q.Price,
		Quantity: remaining,
		Sequence: q.Timestamp,
	}
	b.own(q.Side).insert(order)
	return trades, order
}

// crosses reports whether an incoming limit price is marketable against
// the opposing best.
func crosses(incoming domain.Side, price, oppBest decimal.Decimal) bool {
	if incoming == domain.SideBid {
		return price.GreaterThanOrEqual(oppBest)
	}
	return price.LessThanOrEqual(oppBest)
}

// fillLevel consumes head orders from one opposing price level until the
// incoming quantity or the level is exhausted. The execution price is
// always the resting order's price, and a trade is recorded for every
// iteration that consumes any quantity, including partial consumption of
// the head.
func (b *Book) fillLevel(opp *side, lvl *level, remaining decimal.Decimal, q domain.Quote, verbose bool) (decimal.Decimal, []domain.Trade) {
	var trades []domain.Trade
	for lvl.count > 0 && remaining.Sign() > 0 {
		head := lvl.head
		resting := head.order

		var traded decimal.Decimal
		var restingRemaining *decimal.Decimal
		switch remaining.Cmp(resting.Quantity) {
		case -1:
			traded = remaining
			lvl.reduce(head, remaining)
			left := resting.Quantity
			restingRemaining = &left
			remaining = decimal.Zero
		case 0:
			traded = resting.Quantity
			opp.remove(resting.ID)
			remaining = decimal.Zero
		default:
			traded = resting.Quantity
			opp.remove(resting.ID)
			remaining = remaining.Sub(traded)
		}

		trade := domain.Trade{
			Time:             b.time,
			Price:            resting.Price,
			Quantity:         traded,
			RestingTrader:    resting.TraderID,
			RestingOrderID:   resting.ID,
			RestingRemaining: restingRemaining,
			IncomingTrader:   q.TraderID,
			IncomingSide:     q.Side,
		}
		b.tape = append(b.tape, trade)
		trades = append(trades, trade)

		if verbose {
			b.log.Info("trade",
				slog.Int64("time", b.time),
				slog.String("price", trade.Price.String()),
				slog.String("quantity", traded.String()),
				slog.String("resting_trader", resting.TraderID),
				slog.String("incoming_trader", q.TraderID),
				slog.String("incoming_side", string(q.Side)),
			)
		}
	}
	return remaining, trades
}

// Cancel removes a resting order from the given side. A missing id
// returns domain.ErrOrderNotFound; the book is left unchanged apart from
// the clock, which advances (or adopts at) exactly as admission does.
func (b *Book) Cancel(s domain.Side, orderID int64, at *int64) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSide, s)
	}
	b.tick(at)
	if !b.own(s).remove(orderID) {
		return domain.ErrOrderNotFound
	}
	return nil
}

// Modify re-stamps an order with the current (or supplied) logical time
// and applies the update. When the price is unchanged the quantity is
// adjusted in place and the order keeps its queue position. A price
// change forfeits priority: the order is pulled from the book and its
// new quantity is resubmitted through the limit matching path, so a
// modification that makes it marketable executes immediately.
func (b *Book) Modify(orderID int64, update domain.OrderUpdate, at *int64) ([]domain.Trade, *domain.Order, error) {
	if !update.Side.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrInvalidSide, update.Side)
	}
	if update.Quantity.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: quantity %s", domain.ErrInvalidQuantity, update.Quantity)
	}
	b.tick(at)

	s := b.own(update.Side)
	e, ok := s.get(orderID)
	if !ok {
		return nil, nil, domain.ErrOrderNotFound
	}

	if e.order.Price.Equal(update.Price) {
		e.level.adjust(e, update.Quantity)
		e.order.Sequence = b.time
		return nil, e.order, nil
	}

	trader := e.order.TraderID
	s.remove(orderID)
	trades, resting := b.processLimit(domain.Quote{
		Kind:      domain.OrderKindLimit,
		Side:      update.Side,
		Price:     update.Price,
		Quantity:  update.Quantity,
		TraderID:  trader,
		Timestamp: b.time,
		OrderID:   orderID,
	}, true, false)
	return trades, resting, nil
}

// tick advances the clock, or adopts an externally supplied time.
func (b *Book) tick(at *int64) {
	if at != nil {
		b.time = *at
	} else {
		b.time++
	}
}

func (b *Book) own(s domain.Side) *side {
	if s == domain.SideBid {
		return b.bids
	}
	return b.asks
}

func (b *Book) opposing(s domain.Side) *side {
	if s == domain.SideBid {
		return b.asks
	}
	return b.bids
}

// VolumeAtPrice returns the aggregate resting quantity at an exact price
// on one side, or zero when the side or level does not exist.
func (b *Book) VolumeAtPrice(s domain.Side, price decimal.Decimal) decimal.Decimal {
	if !s.Valid() {
		return decimal.Zero
	}
	return b.own(s).volumeAt(price)
}

// BestBid returns the highest bid price.
func (b *Book) BestBid() (decimal.Decimal, bool) { return b.bids.bestPrice() }

// BestAsk returns the lowest ask price.
func (b *Book) BestAsk() (decimal.Decimal, bool) { return b.asks.bestPrice() }

// WorstBid returns the lowest bid price.
func (b *Book) WorstBid() (decimal.Decimal, bool) { return b.bids.worstPrice() }

// WorstAsk returns the highest ask price.
func (b *Book) WorstAsk() (decimal.Decimal, bool) { return b.asks.worstPrice() }

// Time returns the book's current logical time.
func (b *Book) Time() int64 { return b.time }

// BidDepth returns up to n aggregated bid levels, best first. n <= 0
// returns all levels.
func (b *Book) BidDepth(n int) []PriceLevel { return b.bids.levels(n) }

// AskDepth returns up to n aggregated ask levels, best first. n <= 0
// returns all levels.
func (b *Book) AskDepth(n int) []PriceLevel { return b.asks.levels(n) }

// BidCount returns the number of resting bid orders.
func (b *Book) BidCount() int { return b.bids.orderCount() }

// AskCount returns the number of resting ask orders.
func (b *Book) AskCount() int { return b.asks.orderCount() }

// Tape returns a copy of the trade tape in chronological order.
func (b *Book) Tape() []domain.Trade {
	out := make([]domain.Trade, len(b.tape))
	copy(out, b.tape)
	return out
}

// TapeLen returns the number of trades on the tape.
func (b *Book) TapeLen() int { return len(b.tape) }

// WalkBids visits resting bids in priority order.
func (b *Book) WalkBids(fn func(*domain.Order) bool) { b.bids.walkOrders(fn) }

// WalkAsks visits resting asks in priority order.
func (b *Book) WalkAsks(fn func(*domain.Order) bool) { b.asks.walkOrders(fn) }
