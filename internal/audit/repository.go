package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository reads audit_logs.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the audit repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// TimelineWindow returns up to limit entries after offset, newest first.
func (r *PostgresRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where, args := buildWhere(filters)
	query := fmt.Sprintf(`SELECT id, occurred_at, actor, action, entity, entity_id, meta
FROM audit_logs %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return r.query(ctx, query, args...)
}

// TimelineAll returns every entry matching filters, oldest first.
func (r *PostgresRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	where, args := buildWhere(filters)
	query := `SELECT id, occurred_at, actor, action, entity, entity_id, meta FROM audit_logs ` + where + ` ORDER BY occurred_at, id`
	return r.query(ctx, query, args...)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TimelineRow{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanRow(row pgx.Row) (TimelineRow, error) {
	var out TimelineRow
	var meta []byte
	if err := row.Scan(&out.ID, &out.At, &out.Actor, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
		return TimelineRow{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &out.Meta); err != nil {
			return TimelineRow{}, fmt.Errorf("decode audit meta %d: %w", out.ID, err)
		}
	}
	return out, nil
}

// buildWhere turns filters into a WHERE clause with positional args.
// To is exclusive.
func buildWhere(filters TimelineFilters) (string, []any) {
	var conditions []string
	var args []any
	add := func(expr string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at < $%d", filters.To)
	}
	if v := strings.TrimSpace(filters.Actor); v != "" {
		add("actor = $%d", v)
	}
	if v := strings.TrimSpace(filters.Entity); v != "" {
		add("entity = $%d", v)
	}
	if v := strings.TrimSpace(filters.EntityID); v != "" {
		add("entity_id = $%d", v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add("action = $%d", v)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
