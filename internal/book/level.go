package book

import (
	"github.com/shopspring/decimal"

	"github.com/mlopes/matchbook/internal/domain"
)

// entry is a node in a price level's FIFO queue. Entries are linked
// intrusively so that removal by id, via the side's index, never scans.
type entry struct {
	order *domain.Order
	level *level
	prev  *entry
	next  *entry
}

// level holds all resting orders at one exact price, in arrival order.
// The aggregate volume is maintained incrementally on every insert,
// unlink, and quantity change; it is never recomputed by a full scan.
type level struct {
	price  decimal.Decimal
	head   *entry
	tail   *entry
	volume decimal.Decimal
	count  int
}

func newLevel(price decimal.Decimal) *level {
	return &level{price: price, volume: decimal.Zero}
}

// enqueue appends an order at the tail of the FIFO.
func (l *level) enqueue(o *domain.Order) *entry {
	e := &entry{order: o, level: l}
	if l.head == nil {
		l.head = e
		l.tail = e
	} else {
		l.tail.next = e
		e.prev = l.tail
		l.tail = e
	}
	l.volume = l.volume.Add(o.Quantity)
	l.count++
	return e
}

// unlink removes an entry from the FIFO, wherever it sits.
func (l *level) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev = nil
	e.next = nil
	e.level = nil
	l.volume = l.volume.Sub(e.order.Quantity)
	l.count--
}

// reduce lowers the head order's quantity in place after a partial fill,
// keeping the cached aggregate in step.
func (l *level) reduce(e *entry, by decimal.Decimal) {
	e.order.Quantity = e.order.Quantity.Sub(by)
	l.volume = l.volume.Sub(by)
}

// adjust applies an in-place quantity change from a modify, which may
// move the aggregate in either direction.
func (l *level) adjust(e *entry, to decimal.Decimal) {
	l.volume = l.volume.Add(to.Sub(e.order.Quantity))
	e.order.Quantity = to
}

func (l *level) empty() bool {
	return l.count == 0
}
