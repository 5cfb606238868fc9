package finance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// TransactionType enumerates ledger entry directions.
type TransactionType string

const (
	TypeIncome  TransactionType = "Income"
	TypeExpense TransactionType = "Expense"
)

// Valid reports whether t is a known direction.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Account is a bank or cash account that ledger entries settle against.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	Date            time.Time       `json:"date"`
	PurchaseOrderID uuid.NullUUID   `json:"purchase_order_id"`
	ProjectID       uuid.NullUUID   `json:"project_id"`
	SupplierID      uuid.NullUUID   `json:"supplier_id"`
	AccountID       uuid.NullUUID   `json:"account_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// MoneyScale is the number of decimal places stored for every amount.
const MoneyScale int32 = 2

// CheckMoneyScale rejects amounts the NUMERIC(18, 2) columns would round.
func CheckMoneyScale(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return shared.Errorf(shared.KindValidation, "%s %s has more than %d decimal places", field, amount.String(), MoneyScale)
	}
	return nil
}

// Validate checks the invariants every ledger entry must satisfy.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return shared.Errorf(shared.KindValidation, "transaction description is required")
	}
	if !t.Amount.IsPositive() {
		return shared.Errorf(shared.KindValidation, "transaction amount must be positive, got %s", t.Amount.String())
	}
	if err := CheckMoneyScale("transaction amount", t.Amount); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return shared.Errorf(shared.KindValidation, "unknown transaction type %q", t.Type)
	}
	if t.Date.IsZero() {
		return shared.Errorf(shared.KindValidation, "transaction date is required")
	}
	return nil
}

// CreateAccountInput describes a new payment account.
type CreateAccountInput struct {
	Name      string `json:"name" validate:"required,max=120"`
	Kind      string `json:"kind" validate:"omitempty,oneof=bank cash card"`
	IsDefault bool   `json:"is_default"`
}

// CreateTransactionInput describes a manual ledger entry.
type CreateTransactionInput struct {
	Description     string          `json:"description" validate:"required,max=500"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type" validate:"required,oneof=Income Expense"`
	Date            time.Time       `json:"date"`
	PurchaseOrderID uuid.NullUUID   `json:"purchase_order_id"`
	ProjectID       uuid.NullUUID   `json:"project_id"`
	SupplierID      uuid.NullUUID   `json:"supplier_id"`
	AccountID       uuid.NullUUID   `json:"account_id"`
}

// ListFilters narrows ledger listings.
type ListFilters struct {
	Type            TransactionType
	ProjectID       uuid.NullUUID
	SupplierID      uuid.NullUUID
	PurchaseOrderID uuid.NullUUID
	Page            int
	PerPage         int
}
