package repositories

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("record not found")

// OrderRepository defines the interface for order data access.
//
// The two Mark* methods are conditional updates: they only write when the order is
// still in the source state, and report whether this call performed the transition.
// When it did not, the current order is returned unchanged.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	MarkPaidIfPending(ctx context.Context, sessionID string, confirmation models.PaymentConfirmation, paidAt time.Time) (*models.Order, bool, error)
	MarkDeliveredIfUndelivered(ctx context.Context, id string, deliveredAt time.Time) (*models.Order, bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	Delete(ctx context.Context, id string) error
}
