package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-build/internal/platform/db"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

// Repository persists inventory items in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row-level operations that must run inside a transaction.
type TxRepository interface {
	GetItem(ctx context.Context, id uuid.UUID) (Item, error)
	GetItemForUpdate(ctx context.Context, id uuid.UUID) (Item, error)
	UpdateItemStock(ctx context.Context, item Item) error
}

type txRepository struct {
	q db.Querier
}

// NewTxRepository binds the inventory statements to an open transaction.
// Other modules use it to touch stock inside their own transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const itemColumns = `id, name, category, quantity, warehouse, status, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var status string
	if err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Quantity, &item.Warehouse, &status, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Item{}, err
	}
	item.Status = StockStatus(status)
	return item, nil
}

// CreateItem inserts a new item.
func (r *Repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO inventory_items (id, name, category, quantity, warehouse, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
RETURNING `+itemColumns, item.ID, item.Name, item.Category, item.Quantity, item.Warehouse, string(item.Status))
	created, err := scanItem(row)
	if err != nil {
		return Item{}, db.Classify(err)
	}
	return created, nil
}

// GetItem loads a single item without locking it.
func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	return NewTxRepository(r.pool).GetItem(ctx, id)
}

// ListItems returns a page of items and the total count for the filters.
func (r *Repository) ListItems(ctx context.Context, filters ListFilters) ([]Item, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(filters.Status))
		argPos++
	}
	if filters.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argPos))
		args = append(args, filters.Category)
		argPos++
	}
	if filters.Warehouse != "" {
		conditions = append(conditions, fmt.Sprintf("warehouse = $%d", argPos))
		args = append(args, filters.Warehouse)
		argPos++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM inventory_items "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filters.Page, filters.PerPage)
	query := fmt.Sprintf(`SELECT %s FROM inventory_items %s ORDER BY name, id LIMIT $%d OFFSET $%d`, itemColumns, whereClause, argPos, argPos+1)
	args = append(args, perPage, shared.Offset(page, perPage))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *txRepository) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	item, err := scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.NotFound("inventory item", id)
		}
		return Item{}, err
	}
	return item, nil
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id uuid.UUID) (Item, error) {
	item, err := scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.NotFound("inventory item", id)
		}
		return Item{}, err
	}
	return item, nil
}

func (r *txRepository) UpdateItemStock(ctx context.Context, item Item) error {
	tag, err := r.q.Exec(ctx, `UPDATE inventory_items SET quantity=$2, status=$3, updated_at=NOW() WHERE id=$1`, item.ID, item.Quantity, string(item.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("inventory item", item.ID)
	}
	return nil
}
