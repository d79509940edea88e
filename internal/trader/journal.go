package trader

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists every order attempt to SQLite for audit. Rejections are
// recorded with the exchange's reason.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) the order journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol      TEXT NOT NULL,
		setup       TEXT NOT NULL,
		kind        TEXT NOT NULL,
		side        TEXT NOT NULL,
		category    TEXT NOT NULL,
		amount      REAL NOT NULL,
		price       REAL NOT NULL,
		stop_price  REAL DEFAULT 0,
		status      TEXT NOT NULL,
		reason      TEXT,
		placed_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_setup ON orders(setup);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// OrderRecord is one row of the orders table.
type OrderRecord struct {
	ID        int64   `json:"id"`
	Symbol    string  `json:"symbol"`
	Setup     string  `json:"setup"`
	Kind      string  `json:"kind"`
	Side      string  `json:"side"`
	Category  string  `json:"category"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	StopPrice float64 `json:"stop_price"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason"`
	PlacedAt  string  `json:"placed_at"`
}

// Record persists one order attempt.
func (j *Journal) Record(r OrderRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(
		`INSERT INTO orders (symbol, setup, kind, side, category, amount, price, stop_price, status, reason, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Symbol, r.Setup, r.Kind, r.Side, r.Category,
		r.Amount, r.Price, r.StopPrice, r.Status, r.Reason,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Recent returns the last N order attempts, newest first.
func (j *Journal) Recent(limit int) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.Query(
		`SELECT id, symbol, setup, kind, side, category, amount, price, stop_price, status, reason, placed_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		var reason sql.NullString
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Setup, &r.Kind, &r.Side, &r.Category,
			&r.Amount, &r.Price, &r.StopPrice, &r.Status, &reason, &r.PlacedAt); err != nil {
			return nil, err
		}
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error { return j.db.Close() }
