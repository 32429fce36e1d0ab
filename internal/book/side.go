package book

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/mlopes/matchbook/internal/domain"
)

// PriceLevel is an aggregated view of one price level, used by depth
// queries and external rendering. It never exposes internal nodes.
type PriceLevel struct {
	Price      decimal.Decimal
	Volume     decimal.Decimal
	OrderCount int
}

// askLevelLess orders ask levels by price ascending, so Min() is the
// best ask.
func askLevelLess(a, b *level) bool {
	return a.price.LessThan(b.price)
}

// bidLevelLess orders bid levels by price descending, so Min() is the
// best bid.
func bidLevelLess(a, b *level) bool {
	return a.price.GreaterThan(b.price)
}

// side is one half of the book: a B-tree of price levels in priority
// order plus a flat index from order id to queue node. The index and the
// levels are kept consistent by every mutation: an id is present in the
// index exactly when its entry is linked into exactly one level.
type side struct {
	which domain.Side
	tree  *btree.BTreeG[*level]
	index map[int64]*entry
	// best caches the front of the tree so the match loop does not
	// re-derive the extremum on every iteration.
	best *level
}

func newSide(which domain.Side) *side {
	const degree = 32
	less := askLevelLess
	if which == domain.SideBid {
		less = bidLevelLess
	}
	return &side{
		which: which,
		tree:  btree.NewG[*level](degree, less),
		index: make(map[int64]*entry),
	}
}

// insert rests an order on this side, creating its price level on first
// use.
func (s *side) insert(o *domain.Order) {
	lvl, ok := s.tree.Get(&level{price: o.Price})
	if !ok {
		lvl = newLevel(o.Price)
		s.tree.ReplaceOrInsert(lvl)
		if s.best == nil || better(s.which, lvl.price, s.best.price) {
			s.best = lvl
		}
	}
	s.index[o.ID] = lvl.enqueue(o)
}

// better reports whether a has higher price priority than b on the given
// side.
func better(which domain.Side, a, b decimal.Decimal) bool {
	if which == domain.SideBid {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// remove deletes an order by id, dropping its price level if it empties.
// It reports whether the id existed.
func (s *side) remove(id int64) bool {
	e, ok := s.index[id]
	if !ok {
		return false
	}
	delete(s.index, id)
	lvl := e.level
	lvl.unlink(e)
	if lvl.empty() {
		s.dropLevel(lvl)
	}
	return true
}

func (s *side) dropLevel(lvl *level) {
	s.tree.Delete(lvl)
	if s.best == lvl {
		s.best, _ = s.tree.Min()
	}
}

// get returns the queue node for an order id.
func (s *side) get(id int64) (*entry, bool) {
	e, ok := s.index[id]
	return e, ok
}

// bestLevel returns the highest-priority price level.
func (s *side) bestLevel() (*level, bool) {
	if s.best == nil {
		return nil, false
	}
	return s.best, true
}

// bestPrice returns the best price on this side.
func (s *side) bestPrice() (decimal.Decimal, bool) {
	if s.best == nil {
		return decimal.Zero, false
	}
	return s.best.price, true
}

// worstPrice returns the lowest-priority price on this side.
func (s *side) worstPrice() (decimal.Decimal, bool) {
	lvl, ok := s.tree.Max()
	if !ok {
		return decimal.Zero, false
	}
	return lvl.price, true
}

// volumeAt returns the aggregate resting quantity at an exact price, or
// zero when no level exists there.
func (s *side) volumeAt(price decimal.Decimal) decimal.Decimal {
	lvl, ok := s.tree.Get(&level{price: price})
	if !ok {
		return decimal.Zero
	}
	return lvl.volume
}

// orderCount returns the number of resting orders on this side.
func (s *side) orderCount() int {
	return len(s.index)
}

// levels returns up to n aggregated price levels in priority order.
// n <= 0 means all levels.
func (s *side) levels(n int) []PriceLevel {
	out := make([]PriceLevel, 0, s.tree.Len())
	s.tree.Ascend(func(lvl *level) bool {
		if n > 0 && len(out) >= n {
			return false
		}
		out = append(out, PriceLevel{
			Price:      lvl.price,
			Volume:     lvl.volume,
			OrderCount: lvl.count,
		})
		return true
	})
	return out
}

// walkOrders visits every resting order in priority order: best price
// first, FIFO within a price. The callback returns false to stop.
func (s *side) walkOrders(fn func(*domain.Order) bool) {
	s.tree.Ascend(func(lvl *level) bool {
		for e := lvl.head; e != nil; e = e.next {
			if !fn(e.order) {
				return false
			}
		}
		return true
	})
}
