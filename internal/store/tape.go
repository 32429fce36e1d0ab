// Package store provides SQLite persistence for the trade tape. The
// in-memory tape inside the matching core is authoritative for the
// current session; the store is the durable archive that survives
// restarts.
package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/mlopes/matchbook/internal/domain"
)

// TapeStore archives executed trades. Prices and quantities are stored
// as text so no precision is lost round-tripping through the database.
type TapeStore struct {
	db *sql.DB
}

// NewTapeStore opens (or creates) the database at path and initializes
// the schema. Use ":memory:" for an ephemeral store.
func NewTapeStore(path string) (*TapeStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open tape db: %w", err)
	}

	s := &TapeStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tape schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *TapeStore) Close() error {
	return s.db.Close()
}

func (s *TapeStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tape (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		time INTEGER NOT NULL,
		price TEXT NOT NULL,
		quantity TEXT NOT NULL,
		resting_trader TEXT NOT NULL,
		resting_order_id INTEGER NOT NULL,
		resting_remaining TEXT,
		incoming_trader TEXT NOT NULL,
		incoming_side TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tape_seq ON tape(seq);
	CREATE INDEX IF NOT EXISTS idx_tape_time ON tape(time);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append archives trades in one transaction, preserving their order.
// Sequence numbers continue from whatever is already archived, so
// batches written across process restarts stay in append order.
func (s *TapeStore) Append(trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq)+1, 0) FROM tape`).Scan(&seq); err != nil {
		return err
	}

	for i, t := range trades {
		var remaining any
		if t.RestingRemaining != nil {
			remaining = t.RestingRemaining.String()
		}
		_, err = tx.Exec(`
			INSERT INTO tape (id, seq, time, price, quantity, resting_trader, resting_order_id, resting_remaining, incoming_trader, incoming_side)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), seq+int64(i), t.Time, t.Price.String(), t.Quantity.String(),
			t.RestingTrader, t.RestingOrderID, remaining, t.IncomingTrader, string(t.IncomingSide))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns the most recent trades, newest first.
func (s *TapeStore) Recent(limit int) ([]domain.Trade, error) {
	rows, err := s.db.Query(`
		SELECT time, price, quantity, resting_trader, resting_order_id, resting_remaining, incoming_trader, incoming_side
		FROM tape
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// All returns every archived trade in chronological order.
func (s *TapeStore) All() ([]domain.Trade, error) {
	rows, err := s.db.Query(`
		SELECT time, price, quantity, resting_trader, resting_order_id, resting_remaining, incoming_trader, incoming_side
		FROM tape
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// Count returns the number of archived trades.
func (s *TapeStore) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tape`).Scan(&n)
	return n, err
}

func scanTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var (
			t         domain.Trade
			price     string
			qty       string
			remaining sql.NullString
			side      string
		)
		if err := rows.Scan(&t.Time, &price, &qty, &t.RestingTrader,
			&t.RestingOrderID, &remaining, &t.IncomingTrader, &side); err != nil {
			return nil, err
		}

		var err error
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("corrupt price %q: %w", price, err)
		}
		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("corrupt quantity %q: %w", qty, err)
		}
		if remaining.Valid {
			d, err := decimal.NewFromString(remaining.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt remaining %q: %w", remaining.String, err)
			}
			t.RestingRemaining = &d
		}
		t.IncomingSide = domain.Side(side)

		trades = append(trades, t)
	}
	return trades, rows.Err()
}
