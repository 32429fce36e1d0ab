// Package replay reconstructs a book from a recorded quote stream.
// Input is JSON Lines, one quote per line; recorded timestamps and
// order ids are adopted as-is so the rebuilt book is identical to the
// one that produced the recording.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/mlopes/matchbook/internal/book"
	"github.com/mlopes/matchbook/internal/domain"
)

// record is one recorded quote. Price is absent for market orders;
// order_id is absent when the recording predates id assignment.
type record struct {
	Kind      string           `json:"kind"`
	Side      string           `json:"side"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Quantity  decimal.Decimal  `json:"quantity"`
	TraderID  string           `json:"trader_id"`
	Timestamp int64            `json:"timestamp"`
	OrderID   int64            `json:"order_id,omitempty"`
}

// Result summarizes a replay run.
type Result struct {
	Submitted int
	Trades    int
}

// FromReader feeds every recorded quote into the book. It stops at the
// first malformed line or rejected quote, reporting the line number.
func FromReader(b *book.Book, r io.Reader) (Result, error) {
	var res Result
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		q := domain.Quote{
			Kind:      domain.OrderKind(rec.Kind),
			Side:      domain.Side(rec.Side),
			Quantity:  rec.Quantity,
			TraderID:  rec.TraderID,
			Timestamp: rec.Timestamp,
			OrderID:   rec.OrderID,
		}
		if rec.Price != nil {
			q.Price = *rec.Price
		}

		trades, _, err := b.Submit(q, true, false)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Submitted++
		res.Trades += len(trades)
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// FromFile replays the recording at path.
func FromFile(b *book.Book, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return FromReader(b, f)
}
