package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusOrdered  Status = "Ordered"
	StatusReceived Status = "Received"
)

// transitions lists the moves accepted by TransitionStatus.
// Ordered -> Received happens only through ReceivePurchaseOrder.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusOrdered},
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusRejected, StatusOrdered, StatusReceived}
}

// ParseStatus validates raw against the known statuses.
func ParseStatus(raw string) (Status, error) {
	for _, s := range Statuses() {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", shared.Errorf(shared.KindValidation, "unknown purchase order status %q", raw)
}

// CanTransitionTo reports whether TransitionStatus may move s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReceived
}

// invalidTransition builds the error returned for any illegal move.
func invalidTransition(current, requested Status) error {
	return shared.Errorf(shared.KindInvalidTransition, "cannot move purchase order from %s to %s", current, requested)
}

// PurchaseOrder requests an item from a supplier for a project.
type PurchaseOrder struct {
	ID          uuid.UUID       `json:"id"`
	ItemID      uuid.NullUUID   `json:"item_id"`
	ItemName    string          `json:"item_name"`
	Quantity    int64           `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	SupplierID  uuid.UUID       `json:"supplier_id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	Status      Status          `json:"status"`
	RequestedBy string          `json:"requested_by"`
	RequestedAt time.Time       `json:"requested_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TotalFor is the only way an order total is computed.
func TotalFor(quantity int64, unitCost decimal.Decimal) decimal.Decimal {
	return unitCost.Mul(decimal.NewFromInt(quantity))
}

// CreateInput describes a new purchase order.
type CreateInput struct {
	ItemID     uuid.NullUUID   `json:"item_id"`
	ItemName   string          `json:"item_name" validate:"max=200"`
	Quantity   int64           `json:"quantity" validate:"gt=0"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	SupplierID uuid.UUID       `json:"supplier_id" validate:"required"`
	ProjectID  uuid.UUID       `json:"project_id" validate:"required"`
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status     Status
	SupplierID uuid.NullUUID
	ProjectID  uuid.NullUUID
	Search     string
	Page       int
	PerPage    int
}

// TransitionResult reports the outcome of a status change.
type TransitionResult struct {
	Order         PurchaseOrder `json:"order"`
	Previous      Status        `json:"previous_status"`
	TransactionID uuid.NullUUID `json:"transaction_id"`
	LedgerReused  bool          `json:"ledger_reused"`
}

// ReceiptResult reports the outcome of receiving an order into stock.
type ReceiptResult struct {
	Order            PurchaseOrder `json:"order"`
	ItemID           uuid.UUID     `json:"item_id"`
	PreviousQuantity int64         `json:"previous_quantity"`
	Quantity         int64         `json:"quantity"`
	StockStatus      string        `json:"stock_status"`
}
