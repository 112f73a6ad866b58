package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/finsight/broker_gateway/internal/domain"
)

// SQLiteStore persists the order journal consumed by the dashboard's history
// view. The paper ledger itself stays in memory; only returned order results
// are journaled.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			qty INTEGER NOT NULL,
			order_type TEXT NOT NULL,
			limit_price REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			avg_price REAL NOT NULL DEFAULT 0,
			realized_pnl REAL NOT NULL DEFAULT 0,
			mode TEXT NOT NULL,
			submitted_at DATETIME NOT NULL,
			filled_at DATETIME,
			error TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_submitted_at ON orders(submitted_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteStore) SaveOrder(ctx context.Context, order *domain.OrderResult) error {
	query := `INSERT INTO orders (id, symbol, side, qty, order_type, limit_price, status, avg_price, realized_pnl, mode, submitted_at, filled_at, error)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var filledAt interface{}
	if order.FilledAt != nil {
		filledAt = order.FilledAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		order.ID, order.Symbol, string(order.Side), order.Qty, string(order.Type),
		order.LimitPrice, string(order.Status), order.AvgPrice, order.RealizedPnL,
		string(order.Mode), order.SubmittedAt.UTC(), filledAt, order.Error)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, limit int) ([]*domain.OrderResult, error) {
	query := `SELECT id, symbol, side, qty, order_type, limit_price, status, avg_price, realized_pnl, mode, submitted_at, filled_at, error
			  FROM orders ORDER BY submitted_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.OrderResult
	for rows.Next() {
		var (
			o        domain.OrderResult
			side     string
			oType    string
			status   string
			mode     string
			filledAt sql.NullTime
			oErr     sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.Symbol, &side, &o.Qty, &oType, &o.LimitPrice,
			&status, &o.AvgPrice, &o.RealizedPnL, &mode, &o.SubmittedAt, &filledAt, &oErr); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Side = domain.Side(side)
		o.Type = domain.OrderType(oType)
		o.Status = domain.OrderStatus(status)
		o.Mode = domain.TradeMode(mode)
		if filledAt.Valid {
			t := filledAt.Time
			o.FilledAt = &t
		}
		if oErr.Valid {
			o.Error = oErr.String
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
