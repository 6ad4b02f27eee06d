package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/validation"

	"github.com/go-playground/validator/v10"
)

// OrderPolicy holds the configurable order rules.
type OrderPolicy struct {
	RequirePaidForDelivery bool
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	publisher   events.Publisher
	pricing     PricingPolicy
	policy      OrderPolicy
	validate    *validator.Validate
	now         func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, publisher events.Publisher, pricing PricingPolicy, policy OrderPolicy) *OrderService {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		publisher:   publisher,
		pricing:     pricing,
		policy:      policy,
		validate:    validation.New(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder places an order without a hosted checkout session. It starts pending and
// is never marked paid by this service.
func (s *OrderService) CreateOrder(ctx context.Context, ownerID string, req models.DirectOrderRequest) (*models.Order, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, invalid("owner is required")
	}
	if len(req.Items) == 0 {
		return nil, invalid("no order items")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFailure(err)
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, ci := range req.Items {
		items = append(items, ci.ToOrderItem())
	}
	amounts, err := s.pricing.Totals(items, req.TaxPrice, req.ShippingPrice)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OwnerID:         ownerID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Amounts:         amounts,
		PaymentState:    models.PaymentPending,
		DeliveryState:   models.DeliveryUndelivered,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.publish(events.OrderCreated, order)
	return order, nil
}

// GetOrder returns one order to its owner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, principal models.Principal, id string) (*models.OrderView, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.CanAccess(order.OwnerID) {
		return nil, ErrForbidden
	}
	view := s.view(ctx, *order)
	return &view, nil
}

// ListMine returns the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, ownerID string) ([]models.OrderView, error) {
	orders, err := s.orderRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for %s: %w", ownerID, err)
	}
	return s.views(ctx, orders), nil
}

// ListAll returns every order, newest first.
func (s *OrderService) ListAll(ctx context.Context) ([]models.OrderView, error) {
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.views(ctx, orders), nil
}

// MarkDelivered moves an order to delivered. Repeated calls return the order unchanged.
func (s *OrderService) MarkDelivered(ctx context.Context, id string) (*models.Order, error) {
	if s.policy.RequirePaidForDelivery {
		order, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if !order.IsPaid() {
			return nil, ErrOrderNotPaid
		}
	}

	order, transitioned, err := s.orderRepo.MarkDeliveredIfUndelivered(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to mark order %s delivered: %w", id, err)
	}
	if transitioned {
		s.publish(events.OrderDelivered, order)
	}
	return order, nil
}

// DeleteOrder removes an order.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to delete order %s: %w", id, err)
	}
	log.Printf("Order %s deleted", id)
	return nil
}

func (s *OrderService) load(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	return order, nil
}

func (s *OrderService) views(ctx context.Context, orders []models.Order) []models.OrderView {
	out := make([]models.OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, s.view(ctx, o))
	}
	return out
}

// view resolves each line against the catalog. Lines whose product is gone (or was never
// in the catalog) fall back to the snapshot. The price is always the snapshot price.
func (s *OrderService) view(ctx context.Context, order models.Order) models.OrderView {
	resolved := make([]models.ResolvedItem, 0, len(order.Items))
	for _, item := range order.Items {
		ri := models.ResolvedItem{
			Source:     models.ItemSourceSnapshot,
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			ImageRef:   item.ImageRef,
		}
		if item.ProductRef != "" && s.productRepo != nil {
			product, err := s.productRepo.GetByID(ctx, item.ProductRef)
			switch {
			case err == nil:
				ri.Source = models.ItemSourcePopulated
				ri.Name = product.Name
				ri.ImageRef = product.Image
				ri.Product = product
			case !errors.Is(err, repositories.ErrNotFound):
				log.Printf("Warning: could not resolve product %s for order %s: %v", item.ProductRef, order.ID, err)
			}
		}
		resolved = append(resolved, ri)
	}
	return models.OrderView{Order: order, Items: resolved}
}

func (s *OrderService) publish(eventType string, order *models.Order) {
	if err := s.publisher.PublishOrderEvent(events.NewOrderEvent(eventType, order, s.now())); err != nil {
		log.Printf("Warning: Failed to publish %s event for order %s: %v", eventType, order.ID, err)
	}
}
