package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fuelport/notify-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS fuel_prices (
		fuel_type  TEXT PRIMARY KEY,
		price      REAL NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS orders (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id         TEXT NOT NULL,
		fuel_type       TEXT NOT NULL,
		quantity        REAL NOT NULL,
		address         TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'placed',
		delivery_boy_id TEXT NOT NULL DEFAULT '',
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== fuel prices ====

// ListFuelPrices returns all known fuel prices.
func (s *SQLiteStore) ListFuelPrices(ctx context.Context) ([]store.FuelPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fuel_type, price, updated_at FROM fuel_prices ORDER BY fuel_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list fuel prices: %w", err)
	}
	defer rows.Close()

	var prices []store.FuelPrice
	for rows.Next() {
		var p store.FuelPrice
		if err := rows.Scan(&p.FuelType, &p.Price, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan fuel price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// GetFuelPrice returns the price for one fuel type.
func (s *SQLiteStore) GetFuelPrice(ctx context.Context, fuelType string) (*store.FuelPrice, error) {
	var p store.FuelPrice
	err := s.db.QueryRowContext(ctx, `
		SELECT fuel_type, price, updated_at FROM fuel_prices WHERE fuel_type = ?
	`, fuelType).Scan(&p.FuelType, &p.Price, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fuel price: %w", err)
	}
	return &p, nil
}

// UpsertFuelPrice sets the price for a fuel type and returns the stored row.
func (s *SQLiteStore) UpsertFuelPrice(ctx context.Context, fuelType string, price float64) (*store.FuelPrice, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_prices (fuel_type, price, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(fuel_type) DO UPDATE SET price = excluded.price, updated_at = CURRENT_TIMESTAMP
	`, fuelType, price)
	if err != nil {
		return nil, fmt.Errorf("upsert fuel price: %w", err)
	}
	return s.GetFuelPrice(ctx, fuelType)
}

// ==== orders ====

// CreateOrder inserts a new order in status "placed".
func (s *SQLiteStore) CreateOrder(ctx context.Context, userID, fuelType string, quantity float64, address string) (*store.Order, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (user_id, fuel_type, quantity, address, status)
		VALUES (?, ?, ?, ?, ?)
	`, userID, fuelType, quantity, address, store.OrderStatusPlaced)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetOrder(ctx, id)
}

// GetOrder returns the order with the given id.
func (s *SQLiteStore) GetOrder(ctx context.Context, id int64) (*store.Order, error) {
	var o store.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, fuel_type, quantity, address, status, delivery_boy_id, created_at, updated_at
		FROM orders WHERE id = ?
	`, id).Scan(&o.ID, &o.UserID, &o.FuelType, &o.Quantity, &o.Address, &o.Status, &o.DeliveryBoyID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// AssignOrder records the delivery boy for an order and moves it to "assigned".
func (s *SQLiteStore) AssignOrder(ctx context.Context, id int64, deliveryBoyID string) (*store.Order, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET delivery_boy_id = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, deliveryBoyID, store.OrderStatusAssigned, id)
	if err != nil {
		return nil, fmt.Errorf("assign order: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetOrder(ctx, id)
}

// UpdateOrderStatus sets the status of an order.
func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, id int64, status string) (*store.Order, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetOrder(ctx, id)
}
