package inventory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// StockAlert is published after commit when an item drops into Low Stock or Out of Stock.
type StockAlert struct {
	ItemID   uuid.UUID   `json:"item_id"`
	Name     string      `json:"name"`
	Quantity int64       `json:"quantity"`
	Status   StockStatus `json:"status"`
}

// AlertPublisher hands stock alerts to the background worker.
type AlertPublisher interface {
	PublishStockAlert(ctx context.Context, alert StockAlert) error
}

// AlertFor returns the alert for item when its tier warrants one.
func AlertFor(item Item) (StockAlert, bool) {
	if !item.Status.NeedsAlert() {
		return StockAlert{}, false
	}
	return StockAlert{ItemID: item.ID, Name: item.Name, Quantity: item.Quantity, Status: item.Status}, true
}

// Publish hands the alert for item to publisher when its tier warrants one.
// It runs after commit, so failures are logged and never returned.
func Publish(ctx context.Context, publisher AlertPublisher, logger *slog.Logger, item Item) {
	if publisher == nil {
		return
	}
	alert, ok := AlertFor(item)
	if !ok {
		return
	}
	if err := publisher.PublishStockAlert(ctx, alert); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("publish stock alert", slog.String("item_id", item.ID.String()), slog.Any("error", err))
	}
}
