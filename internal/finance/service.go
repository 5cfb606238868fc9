package finance

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateAccount(ctx context.Context, acc Account) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	ListTransactions(ctx context.Context, filters ListFilters) ([]Transaction, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages payment accounts and manual ledger entries.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the finance service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccount registers a payment account. A default account replaces the previous default.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Account{}, shared.Errorf(shared.KindValidation, "account name is required")
	}
	kind := input.Kind
	if kind == "" {
		kind = "bank"
	}
	acc, err := s.repo.CreateAccount(ctx, Account{ID: uuid.New(), Name: name, Kind: kind})
	if err != nil {
		return Account{}, err
	}
	if input.IsDefault {
		if acc, err = s.SetDefaultAccount(ctx, acc.ID); err != nil {
			return Account{}, err
		}
	}
	s.recordAudit(ctx, "finance.account.create", "payment_account", acc.ID, map[string]any{"name": acc.Name, "kind": acc.Kind})
	return acc, nil
}

// ListAccounts returns every payment account.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// SetDefaultAccount flags id as the account used for procurement expenses.
func (s *Service) SetDefaultAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	var acc Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.MarkDefaultAccount(ctx, id); err != nil {
			return err
		}
		current.IsDefault = true
		acc = current
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, "finance.account.default", "payment_account", acc.ID, nil)
	return acc, nil
}

// CreateTransaction appends a manual ledger entry. Entries referencing a
// purchase order are rejected when the order already has one.
func (s *Service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (Transaction, error) {
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	txn := Transaction{
		ID:              uuid.New(),
		Description:     strings.TrimSpace(input.Description),
		Amount:          input.Amount,
		Type:            input.Type,
		Date:            date.UTC(),
		PurchaseOrderID: input.PurchaseOrderID,
		ProjectID:       input.ProjectID,
		SupplierID:      input.SupplierID,
		AccountID:       input.AccountID,
	}
	if err := txn.Validate(); err != nil {
		return Transaction{}, err
	}
	var created Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if txn.PurchaseOrderID.Valid {
			exists, err := tx.PurchaseOrderExists(ctx, txn.PurchaseOrderID.UUID)
			if err != nil {
				return err
			}
			if !exists {
				return shared.NotFound("purchase order", txn.PurchaseOrderID.UUID)
			}
			if _, found, err := tx.FindTransactionByOrderID(ctx, txn.PurchaseOrderID.UUID); err != nil {
				return err
			} else if found {
				return shared.Errorf(shared.KindConflict, "purchase order %s already has a ledger entry", txn.PurchaseOrderID.UUID)
			}
		}
		if txn.AccountID.Valid {
			if _, err := tx.GetAccount(ctx, txn.AccountID.UUID); err != nil {
				return err
			}
		}
		var err error
		created, err = tx.CreateTransaction(ctx, txn)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, "finance.transaction.create", "financial_transaction", created.ID, map[string]any{
		"type":   created.Type,
		"amount": created.Amount.StringFixed(2),
	})
	return created, nil
}

// ListTransactions returns a page of ledger entries.
func (s *Service) ListTransactions(ctx context.Context, filters ListFilters) ([]Transaction, shared.Pagination, error) {
	if filters.Type != "" && !filters.Type.Valid() {
		return nil, shared.Pagination{}, shared.Errorf(shared.KindValidation, "unknown transaction type %q", filters.Type)
	}
	txns, total, err := s.repo.ListTransactions(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return txns, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("record finance audit", slog.String("action", action), slog.Any("error", err))
	}
}
