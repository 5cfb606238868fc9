package inventory

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-build/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]Item
	conflicts int
	attempts  int
}

type memoryTx struct {
	items map[uuid.UUID]Item
}

func newMemoryRepo(items ...Item) *memoryRepo {
	repo := &memoryRepo{items: make(map[uuid.UUID]Item)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

// WithTx works on a copy and only publishes it when fn succeeds.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	tx := &memoryTx{items: maps.Clone(r.items)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if r.conflicts > 0 {
		r.conflicts--
		return shared.ErrConflict
	}
	r.items = tx.items
	return nil
}

func (r *memoryRepo) CreateItem(_ context.Context, item Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) GetItem(_ context.Context, id uuid.UUID) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return Item{}, shared.NotFound("inventory item", id)
	}
	return item, nil
}

func (r *memoryRepo) ListItems(_ context.Context, filters ListFilters) ([]Item, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Item
	for _, item := range r.items {
		if filters.Status != "" && item.Status != filters.Status {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (tx *memoryTx) GetItem(_ context.Context, id uuid.UUID) (Item, error) {
	item, ok := tx.items[id]
	if !ok {
		return Item{}, shared.NotFound("inventory item", id)
	}
	return item, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id uuid.UUID) (Item, error) {
	return tx.GetItem(ctx, id)
}

func (tx *memoryTx) UpdateItemStock(_ context.Context, item Item) error {
	if _, ok := tx.items[item.ID]; !ok {
		return shared.NotFound("inventory item", item.ID)
	}
	tx.items[item.ID] = item
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

type recordingAlerts struct {
	alerts []StockAlert
	err    error
}

func (p *recordingAlerts) PublishStockAlert(_ context.Context, alert StockAlert) error {
	p.alerts = append(p.alerts, alert)
	return p.err
}

func seedItem(name string, qty int64) Item {
	return Item{ID: uuid.New(), Name: name, Category: "materials", Warehouse: "site-a"}.WithQuantity(qty)
}

func TestDeriveStatus(t *testing.T) {
	cases := map[int64]StockStatus{
		0:    StatusOutOfStock,
		1:    StatusLowStock,
		5:    StatusLowStock,
		10:   StatusLowStock,
		11:   StatusInStock,
		105:  StatusInStock,
		1e12: StatusInStock,
	}
	for qty, want := range cases {
		require.Equal(t, want, DeriveStatus(qty), "quantity %d", qty)
		require.Equal(t, DeriveStatus(qty), DeriveStatus(qty))
	}
	for q := int64(0); q <= 50; q++ {
		got := DeriveStatus(q)
		switch {
		case q == 0:
			require.Equal(t, StatusOutOfStock, got)
		case q <= LowStockThreshold:
			require.Equal(t, StatusLowStock, got)
		default:
			require.Equal(t, StatusInStock, got)
		}
	}
}

func TestCreateItemDerivesStatus(t *testing.T) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit, nil, nil)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{Name: " Cement bags ", Quantity: 7, Warehouse: "yard"})
	require.NoError(t, err)
	require.Equal(t, "Cement bags", item.Name)
	require.Equal(t, StatusLowStock, item.Status)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "inventory.item.create", audit.logs[0].Action)
	require.Equal(t, shared.SystemActor, audit.logs[0].Actor)

	_, err = svc.CreateItem(context.Background(), CreateItemInput{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateItem(context.Background(), CreateItemInput{Name: "Rebar", Quantity: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdjustStockRecomputesStatus(t *testing.T) {
	item := seedItem("Rebar", 12)
	repo := newMemoryRepo(item)
	alerts := &recordingAlerts{}
	svc := NewService(repo, nil, alerts, nil)
	ctx := shared.ContextWithActor(context.Background(), "site-manager")

	adj, err := svc.AdjustStock(ctx, item.ID, -4)
	require.NoError(t, err)
	require.Equal(t, int64(12), adj.Previous)
	require.Equal(t, int64(8), adj.Item.Quantity)
	require.Equal(t, StatusLowStock, adj.Item.Status)
	require.Len(t, alerts.alerts, 1)
	require.Equal(t, StatusLowStock, alerts.alerts[0].Status)

	adj, err = svc.AdjustStock(ctx, item.ID, -8)
	require.NoError(t, err)
	require.Equal(t, StatusOutOfStock, adj.Item.Status)

	adj, err = svc.AdjustStock(ctx, item.ID, 40)
	require.NoError(t, err)
	require.Equal(t, StatusInStock, adj.Item.Status)
	require.Len(t, alerts.alerts, 2)

	stored, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(40), stored.Quantity)
}

func TestNegativeStockGuard(t *testing.T) {
	item := seedItem("Plywood", 3)
	repo := newMemoryRepo(item)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.AdjustStock(context.Background(), item.ID, -4)
	require.ErrorIs(t, err, shared.ErrNegativeStock)
	require.Equal(t, shared.KindNegativeStock, shared.KindOf(err))

	stored, err := svc.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), stored.Quantity)
	require.Equal(t, StatusLowStock, stored.Status)
}

func TestAdjustStockRejectsZeroDeltaAndMissingItem(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)

	_, err := svc.AdjustStock(context.Background(), uuid.New(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AdjustStock(context.Background(), uuid.New(), 1)
	require.ErrorIs(t, err, shared.ErrRecordNotFound)
}

func TestAdjustStockSurvivesSideEffectFailures(t *testing.T) {
	item := seedItem("Gravel", 20)
	repo := newMemoryRepo(item)
	audit := &recordingAudit{err: errors.New("audit down")}
	alerts := &recordingAlerts{err: errors.New("redis down")}
	svc := NewService(repo, audit, alerts, nil)

	adj, err := svc.AdjustStock(context.Background(), item.ID, -15)
	require.NoError(t, err)
	require.Equal(t, int64(5), adj.Item.Quantity)
	require.Len(t, audit.logs, 1)
	require.Len(t, alerts.alerts, 1)
}

func TestListItemsRejectsUnknownStatus(t *testing.T) {
	repo := newMemoryRepo(seedItem("Sand", 0), seedItem("Bricks", 400))
	svc := NewService(repo, nil, nil, nil)

	items, page, err := svc.ListItems(context.Background(), ListFilters{Status: StatusOutOfStock})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Sand", items[0].Name)
	require.Equal(t, 1, page.Total)

	_, _, err = svc.ListItems(context.Background(), ListFilters{Status: "Plenty"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdjustStockRetriesConflicts(t *testing.T) {
	item := seedItem("Gravel", 30)
	repo := newMemoryRepo(item)
	repo.conflicts = 2
	svc := NewService(repo, nil, nil, nil)

	adj, err := svc.AdjustStock(context.Background(), item.ID, -5)
	require.NoError(t, err)
	require.Equal(t, 3, repo.attempts)
	require.Equal(t, int64(25), adj.Item.Quantity)
	require.Equal(t, int64(30), adj.Previous)

	repo.conflicts, repo.attempts = 5, 0
	svc.WithConflictRetries(1)
	_, err = svc.AdjustStock(context.Background(), item.ID, -5)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, 2, repo.attempts)
	require.Equal(t, int64(25), repo.items[item.ID].Quantity)
}

func TestPublishOnlyAlertingTiers(t *testing.T) {
	ctx := context.Background()
	alerts := &recordingAlerts{}

	Publish(ctx, alerts, nil, seedItem("Sand", 40))
	require.Empty(t, alerts.alerts)

	Publish(ctx, alerts, nil, seedItem("Sand", 4))
	Publish(ctx, alerts, nil, seedItem("Lime", 0))
	require.Len(t, alerts.alerts, 2)
	require.Equal(t, StatusLowStock, alerts.alerts[0].Status)
	require.Equal(t, StatusOutOfStock, alerts.alerts[1].Status)

	alerts.err = errors.New("queue down")
	require.NotPanics(t, func() { Publish(ctx, alerts, nil, seedItem("Lime", 0)) })
	require.NotPanics(t, func() { Publish(ctx, nil, nil, seedItem("Lime", 0)) })
}
