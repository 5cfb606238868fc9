package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-build/internal/finance"
	"github.com/odyssey-erp/odyssey-build/internal/inventory"
	"github.com/odyssey-erp/odyssey-build/internal/platform/db"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// InventoryTx is the inventory collaborator available inside a workflow transaction.
type InventoryTx interface {
	GetItem(ctx context.Context, id uuid.UUID) (inventory.Item, error)
	GetItemForUpdate(ctx context.Context, id uuid.UUID) (inventory.Item, error)
	UpdateItemStock(ctx context.Context, item inventory.Item) error
}

// LedgerTx is the ledger and account-resolution collaborator available inside a workflow transaction.
type LedgerTx interface {
	FindTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (finance.Transaction, bool, error)
	CreateTransaction(ctx context.Context, txn finance.Transaction) (finance.Transaction, error)
	DefaultAccount(ctx context.Context) (finance.Account, error)
}

// TxRepository exposes every write the workflow performs within one transaction.
type TxRepository interface {
	InventoryTx
	LedgerTx
	CreatePurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, id uuid.UUID, status Status) (PurchaseOrder, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// txRepo shares one pgx.Tx between the order, inventory and ledger statements.
type txRepo struct {
	InventoryTx
	LedgerTx
	q db.Querier
}

func newTxRepo(q db.Querier) *txRepo {
	return &txRepo{
		InventoryTx: inventory.NewTxRepository(q),
		LedgerTx:    finance.NewTxRepository(q),
		q:           q,
	}
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("procurement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepo(tx))
	})
}

const orderColumns = `id, item_id, item_name, quantity, unit_cost, total_cost, supplier_id, project_id, status, requested_by, requested_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := row.Scan(&po.ID, &po.ItemID, &po.ItemName, &po.Quantity, &po.UnitCost, &po.TotalCost,
		&po.SupplierID, &po.ProjectID, &status, &po.RequestedBy, &po.RequestedAt, &po.UpdatedAt)
	po.Status = Status(status)
	return po, err
}

// GetPurchaseOrder loads an order without locking it.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, shared.NotFound("purchase order", id)
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListPurchaseOrders returns a page of orders, newest first.
func (r *Repository) ListPurchaseOrders(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(filters.Status))
		argPos++
	}
	if filters.SupplierID.Valid {
		conditions = append(conditions, fmt.Sprintf("supplier_id = $%d", argPos))
		args = append(args, filters.SupplierID.UUID)
		argPos++
	}
	if filters.ProjectID.Valid {
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", argPos))
		args = append(args, filters.ProjectID.UUID)
		argPos++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("item_name ILIKE $%d", argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_orders "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filters.Page, filters.PerPage)
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders %s ORDER BY requested_at DESC, id LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argPos, argPos+1)
	args = append(args, perPage, shared.Offset(page, perPage))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	orders := []PurchaseOrder{}
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
	}
	return orders, total, rows.Err()
}

func (r *txRepo) CreatePurchaseOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	created, err := scanOrder(r.q.QueryRow(ctx, `INSERT INTO purchase_orders
(id, item_id, item_name, quantity, unit_cost, total_cost, supplier_id, project_id, status, requested_by, requested_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING `+orderColumns,
		po.ID, po.ItemID, po.ItemName, po.Quantity, po.UnitCost, po.TotalCost,
		po.SupplierID, po.ProjectID, string(po.Status), po.RequestedBy, po.RequestedAt))
	if err != nil {
		return PurchaseOrder{}, db.Classify(err)
	}
	return created, nil
}

func (r *txRepo) GetPurchaseOrderForUpdate(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	po, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, shared.NotFound("purchase order", id)
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (r *txRepo) UpdatePurchaseOrderStatus(ctx context.Context, id uuid.UUID, status Status) (PurchaseOrder, error) {
	po, err := scanOrder(r.q.QueryRow(ctx, `UPDATE purchase_orders SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+orderColumns, id, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, shared.NotFound("purchase order", id)
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}
