package inventory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-build/internal/platform/db"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (Item, error)
	ListItems(ctx context.Context, filters ListFilters) ([]Item, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	alerts  AlertPublisher
	logger  *slog.Logger
	retries int
}

// defaultConflictRetries matches the procurement default for PROCUREMENT_CONFLICT_RETRIES.
const defaultConflictRetries = 2

// NewService builds Service. audit and alerts may be nil.
func NewService(repo RepositoryPort, audit AuditPort, alerts AlertPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, alerts: alerts, logger: logger, retries: defaultConflictRetries}
}

// WithConflictRetries sets how often AdjustStock reruns after a serialization conflict.
func (s *Service) WithConflictRetries(n int) {
	if n < 0 {
		n = 0
	}
	s.retries = n
}

// CreateItem registers a new item with its derived stock status.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Item{}, shared.Errorf(shared.KindValidation, "item name is required")
	}
	if input.Quantity < 0 {
		return Item{}, shared.Errorf(shared.KindValidation, "quantity must be >= 0")
	}
	item := Item{
		ID:        uuid.New(),
		Name:      name,
		Category:  strings.TrimSpace(input.Category),
		Warehouse: strings.TrimSpace(input.Warehouse),
	}.WithQuantity(input.Quantity)

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "inventory.item.create", created, map[string]any{
		"quantity": created.Quantity,
		"status":   created.Status,
	})
	return created, nil
}

// GetItem loads an item by id.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns a page of items.
func (s *Service) ListItems(ctx context.Context, filters ListFilters) ([]Item, shared.Pagination, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, shared.Pagination{}, shared.Errorf(shared.KindValidation, "unknown stock status %q", filters.Status)
	}
	items, total, err := s.repo.ListItems(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// AdjustStock applies a signed quantity change. The item is locked for the
// read-modify-write and the result may never drop below zero.
func (s *Service) AdjustStock(ctx context.Context, itemID uuid.UUID, delta int64) (Adjustment, error) {
	if delta == 0 {
		return Adjustment{}, shared.Errorf(shared.KindValidation, "adjustment delta must be non zero")
	}
	var result Adjustment
	err := db.RetryOnConflict(ctx, s.retries, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			item, err := tx.GetItemForUpdate(ctx, itemID)
			if err != nil {
				return err
			}
			next := item.Quantity + delta
			if next < 0 {
				return shared.Errorf(shared.KindNegativeStock, "adjusting %s by %d would leave %d on hand", item.Name, delta, next)
			}
			updated := item.WithQuantity(next)
			if err := tx.UpdateItemStock(ctx, updated); err != nil {
				return err
			}
			result = Adjustment{Item: updated, Delta: delta, Previous: item.Quantity}
			return nil
		})
	})
	if err != nil {
		return Adjustment{}, err
	}
	s.recordAudit(ctx, "inventory.stock.adjust", result.Item, map[string]any{
		"delta":    delta,
		"previous": result.Previous,
		"quantity": result.Item.Quantity,
		"status":   result.Item.Status,
	})
	Publish(ctx, s.alerts, s.logger, result.Item)
	return result, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, item Item, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "inventory_item",
		EntityID: item.ID.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record inventory audit", slog.String("action", action), slog.Any("error", err))
	}
}
