package storage

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"orderdesk/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  customerName TEXT NOT NULL,
  customerId TEXT NOT NULL,
  itemsJson TEXT NOT NULL,
  confirmationJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  source TEXT NOT NULL,
  fileName TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  totalMs REAL NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS orders_cache (
  id INTEGER PRIMARY KEY,
  customerName TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity REAL NOT NULL,
  price REAL NOT NULL,
  total REAL NOT NULL,
  fetchedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertSubmission(traceID string, draft internal.OrderDraft, confirmation string) error {
	itemsJSON, err := json.Marshal(draft.Items)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO submissions (traceId, customerName, customerId, itemsJson, confirmationJson)
VALUES (?, ?, ?, ?, ?)
`, traceID, draft.CustomerName, draft.CustomerID, string(itemsJSON), confirmation)
	return err
}

func (d *DB) ListSubmissions(limit int) ([]internal.SubmissionRow, error) {
	rows, err := d.conn.Query(`
SELECT id, traceId, customerName, customerId, itemsJson, confirmationJson, createdAt
FROM submissions ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SubmissionRow
	for rows.Next() {
		var row internal.SubmissionRow
		if err := rows.Scan(&row.ID, &row.TraceID, &row.CustomerName, &row.CustomerID, &row.ItemsJSON, &row.Confirmation, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(traceID, source, fileName string, counts map[string]int, totalMs float64) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO runs (traceId, source, fileName, countsJson, totalMs)
VALUES (?, ?, ?, ?, ?)
`, traceID, source, fileName, string(countsJSON), totalMs)
	return err
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, traceId, source, fileName, countsJson, totalMs, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		if err := rows.Scan(&row.ID, &row.TraceID, &row.Source, &row.FileName, &row.CountsJSON, &row.TimingsMs, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReplaceOrdersCache swaps the whole cached listing for the fresh one.
func (d *DB) ReplaceOrdersCache(orders []internal.OrderRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM orders_cache`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO orders_cache (id, customerName, name, quantity, price, total, fetchedAt)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.Exec(o.ID, o.CustomerName, o.Name, o.Quantity, o.Price, o.Total); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListCachedOrders() ([]internal.OrderRow, error) {
	rows, err := d.conn.Query(`
SELECT id, customerName, name, quantity, price, total
FROM orders_cache ORDER BY id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.OrderRow
	for rows.Next() {
		var o internal.OrderRow
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.Name, &o.Quantity, &o.Price, &o.Total); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
