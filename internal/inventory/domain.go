package inventory

import (
	"time"

	"github.com/google/uuid"
)

// StockStatus is the three-tier stock level shown for every item.
type StockStatus string

const (
	StatusInStock    StockStatus = "In Stock"
	StatusLowStock   StockStatus = "Low Stock"
	StatusOutOfStock StockStatus = "Out of Stock"
)

// LowStockThreshold is the highest quantity still reported as Low Stock.
// It applies to every item regardless of category.
const LowStockThreshold int64 = 10

// DeriveStatus maps an on-hand quantity to its stock tier.
func DeriveStatus(quantity int64) StockStatus {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= LowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Valid reports whether s is one of the known tiers.
func (s StockStatus) Valid() bool {
	switch s {
	case StatusInStock, StatusLowStock, StatusOutOfStock:
		return true
	}
	return false
}

// NeedsAlert reports whether the tier should notify purchasing.
func (s StockStatus) NeedsAlert() bool {
	return s == StatusLowStock || s == StatusOutOfStock
}

// Item is a stocked inventory record.
type Item struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Category  string      `json:"category"`
	Quantity  int64       `json:"quantity"`
	Warehouse string      `json:"warehouse"`
	Status    StockStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// WithQuantity returns a copy of the item holding quantity and its derived status.
func (i Item) WithQuantity(quantity int64) Item {
	i.Quantity = quantity
	i.Status = DeriveStatus(quantity)
	return i
}

// CreateItemInput describes a new inventory record.
type CreateItemInput struct {
	Name      string `json:"name" validate:"required,max=200"`
	Category  string `json:"category" validate:"max=100"`
	Quantity  int64  `json:"quantity" validate:"gte=0"`
	Warehouse string `json:"warehouse" validate:"max=100"`
}

// ListFilters narrows item listings.
type ListFilters struct {
	Status    StockStatus
	Category  string
	Warehouse string
	Search    string
	Page      int
	PerPage   int
}

// Adjustment records the outcome of a stock adjustment.
type Adjustment struct {
	Item     Item  `json:"item"`
	Delta    int64 `json:"delta"`
	Previous int64 `json:"previous_quantity"`
}
