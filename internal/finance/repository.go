package finance

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

// Repository persists accounts and ledger entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes ledger operations that run inside a transaction.
type TxRepository interface {
	FindTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (Transaction, bool, error)
	CreateTransaction(ctx context.Context, txn Transaction) (Transaction, error)
	DefaultAccount(ctx context.Context) (Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)
	MarkDefaultAccount(ctx context.Context, id uuid.UUID) error
	PurchaseOrderExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type txRepository struct {
	q db.Querier
}

// NewTxRepository binds the ledger statements to an open transaction.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("finance repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const (
	accountColumns     = `id, name, kind, is_default, created_at`
	transactionColumns = `id, description, amount, type, occurred_on, purchase_order_id, project_id, supplier_id, account_id, created_at`
)

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	err := row.Scan(&acc.ID, &acc.Name, &acc.Kind, &acc.IsDefault, &acc.CreatedAt)
	return acc, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	var typ string
	err := row.Scan(&txn.ID, &txn.Description, &txn.Amount, &typ, &txn.Date,
		&txn.PurchaseOrderID, &txn.ProjectID, &txn.SupplierID, &txn.AccountID, &txn.CreatedAt)
	txn.Type = TransactionType(typ)
	return txn, err
}

// CreateAccount inserts an account.
func (r *Repository) CreateAccount(ctx context.Context, acc Account) (Account, error) {
	created, err := scanAccount(r.pool.QueryRow(ctx, `INSERT INTO payment_accounts (id, name, kind, is_default, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING `+accountColumns, acc.ID, acc.Name, acc.Kind, acc.IsDefault))
	if err != nil {
		return Account{}, db.Classify(err)
	}
	return created, nil
}

// ListAccounts returns every account, oldest first.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM payment_accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := []Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// CreateTransaction inserts a ledger entry outside any workflow transaction.
func (r *Repository) CreateTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	return NewTxRepository(r.pool).CreateTransaction(ctx, txn)
}

// ListTransactions returns a page of ledger entries, newest first.
func (r *Repository) ListTransactions(ctx context.Context, filters ListFilters) ([]Transaction, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filters.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, string(filters.Type))
		argPos++
	}
	if filters.ProjectID.Valid {
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", argPos))
		args = append(args, filters.ProjectID.UUID)
		argPos++
	}
	if filters.SupplierID.Valid {
		conditions = append(conditions, fmt.Sprintf("supplier_id = $%d", argPos))
		args = append(args, filters.SupplierID.UUID)
		argPos++
	}
	if filters.PurchaseOrderID.Valid {
		conditions = append(conditions, fmt.Sprintf("purchase_order_id = $%d", argPos))
		args = append(args, filters.PurchaseOrderID.UUID)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM financial_transactions "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filters.Page, filters.PerPage)
	query := fmt.Sprintf(`SELECT %s FROM financial_transactions %s ORDER BY occurred_on DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, whereClause, argPos, argPos+1)
	args = append(args, perPage, shared.Offset(page, perPage))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	txns := []Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, txn)
	}
	return txns, total, rows.Err()
}

func (r *txRepository) FindTransactionByOrderID(ctx context.Context, orderID uuid.UUID) (Transaction, bool, error) {
	txn, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM financial_transactions WHERE purchase_order_id=$1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return txn, true, nil
}

func (r *txRepository) CreateTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	created, err := scanTransaction(r.q.QueryRow(ctx, `INSERT INTO financial_transactions
(id, description, amount, type, occurred_on, purchase_order_id, project_id, supplier_id, account_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
RETURNING `+transactionColumns,
		txn.ID, txn.Description, txn.Amount, string(txn.Type), txn.Date,
		txn.PurchaseOrderID, txn.ProjectID, txn.SupplierID, txn.AccountID))
	if err != nil {
		return Transaction{}, db.Classify(err)
	}
	return created, nil
}

// DefaultAccount prefers the flagged default and falls back to the oldest account.
func (r *txRepository) DefaultAccount(ctx context.Context) (Account, error) {
	acc, err := scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM payment_accounts ORDER BY is_default DESC, created_at, id LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNoAccountConfigured
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	acc, err := scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM payment_accounts WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("payment account", id)
		}
		return Account{}, err
	}
	return acc, nil
}

func (r *txRepository) MarkDefaultAccount(ctx context.Context, id uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `UPDATE payment_accounts SET is_default=FALSE WHERE is_default AND id<>$1`, id); err != nil {
		return err
	}
	_, err := r.q.Exec(ctx, `UPDATE payment_accounts SET is_default=TRUE WHERE id=$1`, id)
	return err
}

func (r *txRepository) PurchaseOrderExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
