package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Order statuses.
const (
	OrderStatusPlaced         = "placed"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusAssigned       = "assigned"
	OrderStatusOutForDelivery = "outForDelivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusAssigned,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// FuelPrice is the current marketplace price for one fuel type.
type FuelPrice struct {
	FuelType  string
	Price     float64
	UpdatedAt time.Time
}

// Order is a delivery order placed by a user.
type Order struct {
	ID            int64
	UserID        string
	FuelType      string
	Quantity      float64
	Address       string
	Status        string
	DeliveryBoyID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store is the persistence interface consumed by the HTTP layer. Room
// membership is deliberately not part of it: membership is derived from live
// connections and never survives a restart.
type Store interface {
	ListFuelPrices(ctx context.Context) ([]FuelPrice, error)
	GetFuelPrice(ctx context.Context, fuelType string) (*FuelPrice, error)
	UpsertFuelPrice(ctx context.Context, fuelType string, price float64) (*FuelPrice, error)

	CreateOrder(ctx context.Context, userID, fuelType string, quantity float64, address string) (*Order, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
	AssignOrder(ctx context.Context, id int64, deliveryBoyID string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*Order, error)

	Close() error
}
