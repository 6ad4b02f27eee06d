package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders    map[string]models.Order
	bySession map[string]string
	mu        sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:    make(map[string]models.Order),
		bySession: make(map[string]string),
	}
}

// Create adds a new order.
func (r *MockOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order with ID %s already exists", order.ID)
	}
	if order.PaymentSessionID != "" {
		if _, taken := r.bySession[order.PaymentSessionID]; taken {
			return fmt.Errorf("payment session %s already assigned to an order", order.PaymentSessionID)
		}
		r.bySession[order.PaymentSessionID] = order.ID
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	out := cloneOrder(order)
	return &out, nil
}

// GetBySessionID returns the order correlated with a payment session.
func (r *MockOrderRepository) GetBySessionID(_ context.Context, sessionID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySession[sessionID]
	if !ok {
		return nil, fmt.Errorf("order for session %s: %w", sessionID, ErrNotFound)
	}
	out := cloneOrder(r.orders[id])
	return &out, nil
}

// MarkPaidIfPending flips the order to paid under the write lock.
func (r *MockOrderRepository) MarkPaidIfPending(_ context.Context, sessionID string, confirmation models.PaymentConfirmation, paidAt time.Time) (*models.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.bySession[sessionID]
	if !ok {
		return nil, false, fmt.Errorf("order for session %s: %w", sessionID, ErrNotFound)
	}
	order := r.orders[id]
	if order.PaymentState == models.PaymentPaid {
		out := cloneOrder(order)
		return &out, false, nil
	}
	order.PaymentState = models.PaymentPaid
	order.PaidAt = &paidAt
	order.PaymentConfirmation = confirmation
	order.UpdatedAt = paidAt
	r.orders[id] = order
	out := cloneOrder(order)
	return &out, true, nil
}

// MarkDeliveredIfUndelivered flips the order to delivered under the write lock.
func (r *MockOrderRepository) MarkDeliveredIfUndelivered(_ context.Context, id string, deliveredAt time.Time) (*models.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, false, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	if order.DeliveryState == models.DeliveryDelivered {
		out := cloneOrder(order)
		return &out, false, nil
	}
	order.DeliveryState = models.DeliveryDelivered
	order.DeliveredAt = &deliveredAt
	order.UpdatedAt = deliveredAt
	r.orders[id] = order
	out := cloneOrder(order)
	return &out, true, nil
}

// ListByOwner returns the owner's orders, newest first.
func (r *MockOrderRepository) ListByOwner(_ context.Context, ownerID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.OwnerID == ownerID {
			orderList = append(orderList, cloneOrder(order))
		}
	}
	sortNewestFirst(orderList)
	return orderList, nil
}

// ListAll returns all orders, newest first.
func (r *MockOrderRepository) ListAll(_ context.Context) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orderList = append(orderList, cloneOrder(order))
	}
	sortNewestFirst(orderList)
	return orderList, nil
}

// Delete removes an order.
func (r *MockOrderRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	if order.PaymentSessionID != "" {
		delete(r.bySession, order.PaymentSessionID)
	}
	delete(r.orders, id)
	return nil
}

// cloneOrder copies the slice and pointer fields so callers never alias stored state.
func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}

func sortNewestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
