// Package service exposes the matching core behind a single-writer
// boundary. The book itself is not safe for concurrent use; every
// mutation goes through MarketService's exclusive lock, and reads take
// the same lock so they always observe a settled book.
package service

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mlopes/matchbook/internal/book"
	"github.com/mlopes/matchbook/internal/domain"
	"github.com/mlopes/matchbook/internal/feed"
	"github.com/mlopes/matchbook/internal/store"
)

// SubmitQuoteRequest represents the input for quote submission.
type SubmitQuoteRequest struct {
	Kind     string
	Side     string
	Price    *decimal.Decimal // required for limit, ignored for market
	Quantity decimal.Decimal
	TraderID string
}

// SubmitResult carries everything a submission produced.
type SubmitResult struct {
	Trades  []domain.Trade
	Resting *domain.Order
}

// BookSnapshot is a point-in-time view of both sides of the book.
type BookSnapshot struct {
	Time     int64
	Bids     []book.PriceLevel
	Asks     []book.PriceLevel
	BidCount int
	AskCount int
}

// QuoteSnapshot is the current best and worst price on each side.
// Absent prices are nil.
type QuoteSnapshot struct {
	BestBid  *decimal.Decimal
	BestAsk  *decimal.Decimal
	WorstBid *decimal.Decimal
	WorstAsk *decimal.Decimal
}

// MarketService owns the book and its collaborators: the durable tape
// archive and the live trade feed.
type MarketService struct {
	mu   sync.Mutex
	book *book.Book
	tape *store.TapeStore
	hub  *feed.Hub
	log  *slog.Logger
}

// NewMarketService wires the book to its archive and feed. tape may be
// nil; archiving is then skipped. A nil hub is replaced with a fresh
// one so subscriptions always work.
func NewMarketService(b *book.Book, tape *store.TapeStore, hub *feed.Hub, log *slog.Logger) *MarketService {
	if hub == nil {
		hub = feed.NewHub()
	}
	if log == nil {
		log = slog.Default()
	}
	return &MarketService{book: b, tape: tape, hub: hub, log: log}
}

// SubmitQuote validates the request, assigns an anonymous trader id if
// none was given, and runs the quote through the book. Executed trades
// are archived and broadcast before the call returns.
func (s *MarketService) SubmitQuote(req SubmitQuoteRequest) (SubmitResult, error) {
	kind := domain.OrderKind(req.Kind)
	if !kind.Valid() {
		return SubmitResult{}, &domain.ValidationError{
			Message: fmt.Sprintf("unknown order kind: %s. Must be one of: limit, market", req.Kind),
		}
	}
	side := domain.Side(req.Side)
	if !side.Valid() {
		return SubmitResult{}, &domain.ValidationError{
			Message: "side must be 'bid' or 'ask'",
		}
	}
	if req.Quantity.Sign() <= 0 {
		return SubmitResult{}, &domain.ValidationError{
			Message: "quantity must be greater than 0",
		}
	}

	q := domain.Quote{
		Kind:     kind,
		Side:     side,
		Quantity: req.Quantity,
		TraderID: req.TraderID,
	}
	if kind == domain.OrderKindLimit {
		if req.Price == nil {
			return SubmitResult{}, &domain.ValidationError{
				Message: "price is required for limit orders",
			}
		}
		if req.Price.Sign() <= 0 {
			return SubmitResult{}, &domain.ValidationError{
				Message: "price must be greater than 0",
			}
		}
		q.Price = *req.Price
	}
	if q.TraderID == "" {
		q.TraderID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trades, resting, err := s.book.Submit(q, false, false)
	if err != nil {
		return SubmitResult{}, err
	}
	s.publish(trades)

	return SubmitResult{Trades: trades, Resting: resting}, nil
}

// Cancel removes a resting order.
func (s *MarketService) Cancel(side, orderID string) error {
	id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}
	which := domain.Side(side)
	if !which.Valid() {
		return &domain.ValidationError{Message: "side must be 'bid' or 'ask'"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Cancel(which, id, nil)
}

// Modify updates a resting order's price, quantity or side. A price or
// side change loses queue priority and may execute immediately; any
// trades that result are archived and broadcast like a submission's.
func (s *MarketService) Modify(orderID string, update domain.OrderUpdate) (SubmitResult, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !update.Side.Valid() {
		return SubmitResult{}, &domain.ValidationError{Message: "side must be 'bid' or 'ask'"}
	}
	if update.Price.Sign() <= 0 {
		return SubmitResult{}, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	if update.Quantity.Sign() <= 0 {
		return SubmitResult{}, &domain.ValidationError{Message: "quantity must be greater than 0"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trades, resting, err := s.book.Modify(id, update, nil)
	if err != nil {
		return SubmitResult{}, err
	}
	s.publish(trades)

	return SubmitResult{Trades: trades, Resting: resting}, nil
}

// publish archives trades and fans them out. Called with the lock held
// so the archive sequence matches the tape order exactly.
func (s *MarketService) publish(trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}
	if s.tape != nil {
		if err := s.tape.Append(trades); err != nil {
			// The in-memory tape stays authoritative; losing archive
			// rows must not fail the submission that produced them.
			s.log.Error("tape archive append failed", "error", err, "trades", len(trades))
		}
	}
	for _, t := range trades {
		s.hub.Broadcast(t)
	}
}

// Snapshot returns up to depth levels per side, best first. depth <= 0
// means all levels.
func (s *MarketService) Snapshot(depth int) BookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BookSnapshot{
		Time:     s.book.Time(),
		Bids:     s.book.BidDepth(depth),
		Asks:     s.book.AskDepth(depth),
		BidCount: s.book.BidCount(),
		AskCount: s.book.AskCount(),
	}
}

// Quotes returns the current best and worst prices on both sides.
func (s *MarketService) Quotes() QuoteSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap QuoteSnapshot
	if p, ok := s.book.BestBid(); ok {
		snap.BestBid = &p
	}
	if p, ok := s.book.BestAsk(); ok {
		snap.BestAsk = &p
	}
	if p, ok := s.book.WorstBid(); ok {
		snap.WorstBid = &p
	}
	if p, ok := s.book.WorstAsk(); ok {
		snap.WorstAsk = &p
	}
	return snap
}

// VolumeAt returns the total resting quantity at a price on one side,
// zero when nothing rests there.
func (s *MarketService) VolumeAt(side string, price decimal.Decimal) (decimal.Decimal, error) {
	which := domain.Side(side)
	if !which.Valid() {
		return decimal.Zero, &domain.ValidationError{Message: "side must be 'bid' or 'ask'"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.VolumeAtPrice(which, price), nil
}

// Tape returns the session's trades in chronological order.
func (s *MarketService) Tape() []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Tape()
}

// ArchivedTrades returns the most recent trades from the durable
// archive, newest first. Returns nil when no archive is configured.
func (s *MarketService) ArchivedTrades(limit int) ([]domain.Trade, error) {
	if s.tape == nil {
		return nil, nil
	}
	return s.tape.Recent(limit)
}

// Subscribe attaches a live trade feed consumer.
func (s *MarketService) Subscribe(buffer int) *feed.Subscription {
	return s.hub.Subscribe(buffer)
}

// Unsubscribe detaches a feed consumer.
func (s *MarketService) Unsubscribe(sub *feed.Subscription) {
	s.hub.Unsubscribe(sub)
}

func parseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Message: "order_id must be a positive integer"}
	}
	return id, nil
}
