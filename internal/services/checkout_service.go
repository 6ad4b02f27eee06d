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
	"storefront/pkg/payment"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CheckoutConfig holds the redirect targets and labels for hosted checkout.
type CheckoutConfig struct {
	// SuccessURL may contain the provider placeholder {CHECKOUT_SESSION_ID}.
	SuccessURL    string
	CancelURL     string
	PaymentMethod string
}

// CheckoutResult is what the client needs to redirect the shopper.
type CheckoutResult struct {
	SessionID   string `json:"id"`
	RedirectURL string `json:"url"`
}

// CheckoutService starts hosted payment sessions and records the pending order.
type CheckoutService struct {
	orderRepo repositories.OrderRepository
	gateway   payment.Gateway
	publisher events.Publisher
	pricing   PricingPolicy
	cfg       CheckoutConfig
	validate  *validator.Validate
	now       func() time.Time
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(orderRepo repositories.OrderRepository, gateway payment.Gateway, publisher events.Publisher, pricing PricingPolicy, cfg CheckoutConfig) *CheckoutService {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &CheckoutService{
		orderRepo: orderRepo,
		gateway:   gateway,
		publisher: publisher,
		pricing:   pricing,
		cfg:       cfg,
		validate:  validation.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// InitiateCheckout creates a payment session for the cart and persists a pending order
// bound to it. Nothing is created when the request is invalid.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, ownerID string, req models.CheckoutRequest) (*CheckoutResult, error) {
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

	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		LineItems:       lineItems(items, amounts),
		SuccessURL:      s.cfg.SuccessURL,
		CancelURL:       s.cfg.CancelURL,
		ClientReference: ownerID,
		Metadata:        map[string]string{"owner_id": ownerID},
	})
	if err != nil {
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}

	order := &models.Order{
		OwnerID:          ownerID,
		Items:            items,
		ShippingAddress:  req.ShippingAddress,
		PaymentMethod:    s.cfg.PaymentMethod,
		Amounts:          amounts,
		PaymentSessionID: session.ID,
		PaymentState:     models.PaymentPending,
		DeliveryState:    models.DeliveryUndelivered,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		log.Printf("ERROR: payment session %s has no order record (owner %s): %v", session.ID, ownerID, err)
		return nil, fmt.Errorf("failed to record order for session %s: %w", session.ID, err)
	}

	if err := s.publisher.PublishOrderEvent(events.NewOrderEvent(events.OrderCreated, order, s.now())); err != nil {
		log.Printf("Warning: Failed to publish order created event for order %s: %v", order.ID, err)
	}

	return &CheckoutResult{SessionID: session.ID, RedirectURL: session.URL}, nil
}

// lineItems mirrors the order lines onto the hosted page. Non-zero tax and shipping are
// charged as extra lines so the session total equals the order grand total.
func lineItems(items []models.OrderItem, amounts models.Amounts) []payment.LineItem {
	lines := make([]payment.LineItem, 0, len(items)+2)
	for _, item := range items {
		lines = append(lines, payment.LineItem{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  int64(item.Quantity),
			ImageURL:  item.ImageRef,
		})
	}
	if amounts.TaxTotal.GreaterThan(decimal.Zero) {
		lines = append(lines, payment.LineItem{Name: "Tax", UnitPrice: amounts.TaxTotal, Quantity: 1})
	}
	if amounts.ShippingTotal.GreaterThan(decimal.Zero) {
		lines = append(lines, payment.LineItem{Name: "Shipping", UnitPrice: amounts.ShippingTotal, Quantity: 1})
	}
	return lines
}
