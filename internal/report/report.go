// Package report renders human-readable views of a book and its trade
// tape. It consumes the book's read-only iteration surface only; the
// matching core itself never formats anything.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mlopes/matchbook/internal/book"
	"github.com/mlopes/matchbook/internal/domain"
)

// Book returns a tabular dump of both sides, best prices first, and the
// most recent tapeDisplay trades (newest first, mirroring how a tape is
// read).
func Book(b *book.Book, tapeDisplay int) string {
	var sb strings.Builder

	sb.WriteString("*** Bids ***\n")
	writeSide(&sb, b.WalkBids)
	sb.WriteString("\n*** Asks ***\n")
	writeSide(&sb, b.WalkAsks)
	sb.WriteString("\n*** Tape ***\n")
	writeTape(&sb, b.Tape(), tapeDisplay)

	return sb.String()
}

func writeSide(w io.Writer, walk func(func(*domain.Order) bool)) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "price\tquantity\tseq\torder_id\ttrader")
	walk(func(o *domain.Order) bool {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			o.Price, o.Quantity, o.Sequence, o.ID, o.TraderID)
		return true
	})
	tw.Flush()
}

func writeTape(w io.Writer, tape []domain.Trade, display int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "quantity\tprice\ttime\tresting\tincoming\tside")
	n := 0
	for i := len(tape) - 1; i >= 0; i-- {
		if display > 0 && n >= display {
			break
		}
		t := tape[i]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			t.Quantity, t.Price, t.Time, t.RestingTrader, t.IncomingTrader, t.IncomingSide)
		n++
	}
	tw.Flush()
}

// Tape writes the whole tape to w in chronological order, one line per
// trade.
func Tape(w io.Writer, tape []domain.Trade) error {
	for _, t := range tape {
		if _, err := fmt.Fprintf(w, "Time: %d, Price: %s, Quantity: %s\n",
			t.Time, t.Price, t.Quantity); err != nil {
			return err
		}
	}
	return nil
}
