package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create inserts a new order.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

// GetBySessionID retrieves the order correlated with a payment session.
func (r *GORMOrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("order for empty session: %w", ErrNotFound)
	}
	return r.first(ctx, "payment_session_id = ?", sessionID)
}

// MarkPaidIfPending runs a single UPDATE guarded by payment_state, so racing callers
// converge on one effective write.
func (r *GORMOrderRepository) MarkPaidIfPending(ctx context.Context, sessionID string, confirmation models.PaymentConfirmation, paidAt time.Time) (*models.Order, bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("payment_session_id = ? AND payment_state = ?", sessionID, models.PaymentPending).
		Updates(map[string]interface{}{
			"payment_state":            models.PaymentPaid,
			"paid_at":                  paidAt,
			"confirmation_external_id": confirmation.ExternalID,
			"confirmation_status":      confirmation.Status,
			"confirmation_payer_email": confirmation.PayerEmail,
			"updated_at":               paidAt,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to mark order paid for session %s: %w", sessionID, res.Error)
	}

	order, err := r.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return order, res.RowsAffected == 1, nil
}

// MarkDeliveredIfUndelivered runs a single UPDATE guarded by delivery_state.
func (r *GORMOrderRepository) MarkDeliveredIfUndelivered(ctx context.Context, id string, deliveredAt time.Time) (*models.Order, bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND delivery_state = ?", id, models.DeliveryUndelivered).
		Updates(map[string]interface{}{
			"delivery_state": models.DeliveryDelivered,
			"delivered_at":   deliveredAt,
			"updated_at":     deliveredAt,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to mark order %s delivered: %w", id, res.Error)
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return order, res.RowsAffected == 1, nil
}

// ListByOwner returns the owner's orders, newest first.
func (r *GORMOrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders for owner %s: %w", ownerID, err)
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (r *GORMOrderRepository) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Delete removes an order by its ID.
func (r *GORMOrderRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *GORMOrderRepository) first(ctx context.Context, query string, arg string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", arg, err)
	}
	return &order, nil
}
