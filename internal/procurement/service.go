package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-build/internal/finance"
	"github.com/odyssey-erp/odyssey-build/internal/inventory"
	"github.com/odyssey-erp/odyssey-build/internal/platform/db"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards create requests carrying an Idempotency-Key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// WorkflowMetrics counts workflow outcomes.
type WorkflowMetrics interface {
	ObserveTransition(operation, from, to, outcome string)
	ObserveConflictRetry(operation string)
}

// ServiceConfig groups optional collaborators and settings.
type ServiceConfig struct {
	Logger          *slog.Logger
	Metrics         WorkflowMetrics
	Alerts          inventory.AlertPublisher
	ConflictRetries int
}

// Service is the purchase order workflow controller.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	metrics     WorkflowMetrics
	alerts      inventory.AlertPublisher
	logger      *slog.Logger
	retries     int
	now         func() time.Time
	printer     *message.Printer
}

const idempotencyModule = "procurement.purchase_order"

// NewService constructs procurement service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.ConflictRetries
	if retries < 0 {
		retries = 0
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		metrics:     cfg.Metrics,
		alerts:      cfg.Alerts,
		logger:      logger,
		retries:     retries,
		now:         time.Now,
		printer:     message.NewPrinter(language.English),
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreatePurchaseOrder records a new Pending order. A non-empty idempotencyKey
// makes repeated submissions fail with Conflict instead of creating duplicates.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreateInput, idempotencyKey string) (PurchaseOrder, error) {
	if input.Quantity <= 0 {
		return PurchaseOrder{}, shared.Errorf(shared.KindValidation, "quantity must be positive")
	}
	if input.UnitCost.IsNegative() {
		return PurchaseOrder{}, shared.Errorf(shared.KindValidation, "unit cost must not be negative")
	}
	if err := finance.CheckMoneyScale("unit cost", input.UnitCost); err != nil {
		return PurchaseOrder{}, err
	}
	if input.SupplierID == uuid.Nil || input.ProjectID == uuid.Nil {
		return PurchaseOrder{}, shared.Errorf(shared.KindValidation, "supplier and project are required")
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			return PurchaseOrder{}, err
		}
	}

	po := PurchaseOrder{
		ID:          uuid.New(),
		ItemID:      input.ItemID,
		ItemName:    strings.TrimSpace(input.ItemName),
		Quantity:    input.Quantity,
		UnitCost:    input.UnitCost,
		TotalCost:   TotalFor(input.Quantity, input.UnitCost),
		SupplierID:  input.SupplierID,
		ProjectID:   input.ProjectID,
		Status:      StatusPending,
		RequestedBy: shared.ActorFromContext(ctx),
		RequestedAt: s.now().UTC(),
	}
	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if po.ItemID.Valid {
			item, err := tx.GetItem(ctx, po.ItemID.UUID)
			if err != nil {
				return err
			}
			if po.ItemName == "" {
				po.ItemName = item.Name
			}
		}
		if po.ItemName == "" {
			return shared.Errorf(shared.KindValidation, "item name is required when no inventory item is linked")
		}
		var err error
		created, err = tx.CreatePurchaseOrder(ctx, po)
		return err
	})
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, idempotencyKey, idempotencyModule)
		}
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_CREATE", created.ID, map[string]any{
		"item":       created.ItemName,
		"quantity":   created.Quantity,
		"total_cost": s.formatAmount(created.TotalCost),
	})
	return created, nil
}

// GetPurchaseOrder loads an order by id.
func (s *Service) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

// ListPurchaseOrders returns a page of orders.
func (s *Service) ListPurchaseOrders(ctx context.Context, filters ListFilters) ([]PurchaseOrder, shared.Pagination, error) {
	if filters.Status != "" {
		if _, err := ParseStatus(string(filters.Status)); err != nil {
			return nil, shared.Pagination{}, err
		}
	}
	orders, total, err := s.repo.ListPurchaseOrders(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// TransitionStatus moves an order along the approval lifecycle.
//
// Moving to Ordered books one Expense ledger entry for the order total in the
// same transaction as the status write. When an entry already references the
// order, no new entry is created. Repeating Ordered on an order that is
// already Ordered is a read-only replay and succeeds.
func (s *Service) TransitionStatus(ctx context.Context, orderID uuid.UUID, next Status) (TransitionResult, error) {
	if _, err := ParseStatus(string(next)); err != nil {
		return TransitionResult{}, err
	}
	const op = "transition"
	var result TransitionResult
	err := s.withRetry(ctx, op, func(ctx context.Context) error {
		result = TransitionResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			po, err := tx.GetPurchaseOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			result.Previous = po.Status

			if po.Status == StatusOrdered && next == StatusOrdered {
				existing, found, err := tx.FindTransactionByOrderID(ctx, po.ID)
				if err != nil {
					return err
				}
				if found {
					result.TransactionID = uuid.NullUUID{UUID: existing.ID, Valid: true}
				}
				result.LedgerReused = true
				result.Order = po
				return nil
			}
			if !po.Status.CanTransitionTo(next) {
				return invalidTransition(po.Status, next)
			}

			if next == StatusOrdered {
				txnID, reused, err := s.bookExpense(ctx, tx, po)
				if err != nil {
					return err
				}
				result.TransactionID = txnID
				result.LedgerReused = reused
			}

			updated, err := tx.UpdatePurchaseOrderStatus(ctx, po.ID, next)
			if err != nil {
				return err
			}
			result.Order = updated
			return nil
		})
	})
	s.observe(op, result.Previous, next, err)
	if err != nil {
		return TransitionResult{}, err
	}

	meta := map[string]any{
		"from":       string(result.Previous),
		"to":         string(next),
		"total_cost": s.formatAmount(result.Order.TotalCost),
	}
	if result.TransactionID.Valid {
		meta["transaction_id"] = result.TransactionID.UUID.String()
		meta["ledger_reused"] = result.LedgerReused
	}
	s.recordAudit(ctx, "PO_STATUS_"+strings.ToUpper(string(next)), orderID, meta)
	return result, nil
}

// bookExpense creates the order's Expense entry unless one already exists.
// Zero-cost orders carry no ledger entry.
func (s *Service) bookExpense(ctx context.Context, tx TxRepository, po PurchaseOrder) (uuid.NullUUID, bool, error) {
	existing, found, err := tx.FindTransactionByOrderID(ctx, po.ID)
	if err != nil {
		return uuid.NullUUID{}, false, err
	}
	if found {
		return uuid.NullUUID{UUID: existing.ID, Valid: true}, true, nil
	}
	if !po.TotalCost.IsPositive() {
		return uuid.NullUUID{}, false, nil
	}
	account, err := tx.DefaultAccount(ctx)
	if err != nil {
		return uuid.NullUUID{}, false, err
	}
	txn, err := tx.CreateTransaction(ctx, finance.Transaction{
		ID:              uuid.New(),
		Description:     fmt.Sprintf("Purchase order: %d x %s", po.Quantity, po.ItemName),
		Amount:          po.TotalCost,
		Type:            finance.TypeExpense,
		Date:            s.now().UTC(),
		PurchaseOrderID: uuid.NullUUID{UUID: po.ID, Valid: true},
		ProjectID:       uuid.NullUUID{UUID: po.ProjectID, Valid: po.ProjectID != uuid.Nil},
		SupplierID:      uuid.NullUUID{UUID: po.SupplierID, Valid: po.SupplierID != uuid.Nil},
		AccountID:       uuid.NullUUID{UUID: account.ID, Valid: true},
	})
	if err != nil {
		return uuid.NullUUID{}, false, err
	}
	return uuid.NullUUID{UUID: txn.ID, Valid: true}, false, nil
}

// ReceivePurchaseOrder adds the ordered quantity to the linked inventory item
// and marks the order Received, both in one transaction.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, orderID uuid.UUID) (ReceiptResult, error) {
	const op = "receive"
	var result ReceiptResult
	var previous Status
	var received inventory.Item
	err := s.withRetry(ctx, op, func(ctx context.Context) error {
		result = ReceiptResult{}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			po, err := tx.GetPurchaseOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			previous = po.Status
			if po.Status != StatusOrdered {
				return invalidTransition(po.Status, StatusReceived)
			}
			if !po.ItemID.Valid {
				return shared.Errorf(shared.KindUnlinkedItem, "purchase order %s for %q is not linked to an inventory item", po.ID, po.ItemName)
			}
			item, err := tx.GetItemForUpdate(ctx, po.ItemID.UUID)
			if err != nil {
				return err
			}
			updatedItem := item.WithQuantity(item.Quantity + po.Quantity)
			if err := tx.UpdateItemStock(ctx, updatedItem); err != nil {
				return err
			}
			updated, err := tx.UpdatePurchaseOrderStatus(ctx, po.ID, StatusReceived)
			if err != nil {
				return err
			}
			received = updatedItem
			result = ReceiptResult{
				Order:            updated,
				ItemID:           item.ID,
				PreviousQuantity: item.Quantity,
				Quantity:         updatedItem.Quantity,
				StockStatus:      string(updatedItem.Status),
			}
			return nil
		})
	})
	s.observe(op, previous, StatusReceived, err)
	if err != nil {
		return ReceiptResult{}, err
	}

	s.recordAudit(ctx, "PO_RECEIVE", orderID, map[string]any{
		"item_id":           result.ItemID.String(),
		"previous_quantity": result.PreviousQuantity,
		"quantity":          result.Quantity,
		"stock_status":      result.StockStatus,
	})
	inventory.Publish(ctx, s.alerts, s.logger, received)
	return result, nil
}

func (s *Service) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := 0
	return db.RetryOnConflict(ctx, s.retries, func(ctx context.Context) error {
		if attempt > 0 && s.metrics != nil {
			s.metrics.ObserveConflictRetry(op)
		}
		attempt++
		return fn(ctx)
	})
}

func (s *Service) observe(op string, from, to Status, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(shared.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.ObserveTransition(op, string(from), string(to), outcome)
}

func (s *Service) recordAudit(ctx context.Context, action string, orderID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "purchase_order",
		EntityID: orderID.String(),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("record procurement audit", slog.String("action", action), slog.String("order_id", orderID.String()), slog.Any("error", err))
	}
}

func (s *Service) formatAmount(amount decimal.Decimal) string {
	return s.printer.Sprintf("%.2f", amount.InexactFloat64())
}
