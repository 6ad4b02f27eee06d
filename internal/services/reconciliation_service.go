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
	"storefront/pkg/payment"
)

// WebhookOutcome describes what a verified webhook delivery led to.
type WebhookOutcome string

const (
	WebhookIgnored      WebhookOutcome = "ignored"
	WebhookUnpaid       WebhookOutcome = "unpaid"
	WebhookUnknownOrder WebhookOutcome = "unknown_order"
	WebhookAlreadyPaid  WebhookOutcome = "already_paid"
	WebhookMarkedPaid   WebhookOutcome = "marked_paid"
)

// ReconciliationService moves orders from pending to paid. Its two triggers, the provider
// webhook and the client confirmation, share one conditional transition, so whichever
// arrives first wins and the other is a no-op.
type ReconciliationService struct {
	orderRepo repositories.OrderRepository
	gateway   payment.Gateway
	publisher events.Publisher
	now       func() time.Time
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(orderRepo repositories.OrderRepository, gateway payment.Gateway, publisher events.Publisher) *ReconciliationService {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &ReconciliationService{
		orderRepo: orderRepo,
		gateway:   gateway,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook verifies and applies a provider notification. An error means the delivery
// should be retried (or rejected, for ErrSignatureInvalid); every other outcome is acknowledged.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	evt, err := s.gateway.VerifyEvent(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrSignature) {
			log.Printf("Rejected webhook: %v", err)
			return "", fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		if errors.Is(err, payment.ErrMalformedEvent) {
			log.Printf("Dropping undecodable webhook: %v", err)
			return WebhookIgnored, nil
		}
		return "", fmt.Errorf("failed to read webhook event: %w", err)
	}

	if evt.Type != payment.EventCheckoutCompleted && evt.Type != payment.EventCheckoutAsyncPaymentSucceeded {
		return WebhookIgnored, nil
	}
	if evt.Session == nil || evt.Session.ID == "" {
		log.Printf("Webhook event %s (%s) carries no session", evt.ID, evt.Type)
		return WebhookIgnored, nil
	}
	if !evt.Session.IsPaid() {
		log.Printf("Webhook event %s: session %s is %q, waiting for payment", evt.ID, evt.Session.ID, evt.Session.PaymentStatus)
		return WebhookUnpaid, nil
	}

	_, transitioned, err := s.markPaid(ctx, evt.Session)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Printf("Anomaly: paid session %s (event %s) has no order", evt.Session.ID, evt.ID)
			return WebhookUnknownOrder, nil
		}
		return "", err
	}
	if !transitioned {
		return WebhookAlreadyPaid, nil
	}
	return WebhookMarkedPaid, nil
}

// ConfirmPayment reconciles a session the client reports as finished. The provider is
// asked for the session state; the client's word alone never marks an order paid.
func (s *ReconciliationService) ConfirmPayment(ctx context.Context, principal models.Principal, sessionID string) (*models.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, invalid("session_id is required")
	}

	order, err := s.orderRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order for session %s: %w", sessionID, err)
	}
	if !principal.CanAccess(order.OwnerID) {
		return nil, ErrForbidden
	}
	if order.IsPaid() {
		return order, nil
	}

	session, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return nil, fmt.Errorf("failed to retrieve payment session %s: %w", sessionID, err)
	}
	if !session.IsPaid() {
		return nil, ErrPaymentNotCompleted
	}

	paid, _, err := s.markPaid(ctx, session)
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// markPaid applies the pending -> paid transition. The order.paid event is published only
// by the caller whose update took effect.
func (s *ReconciliationService) markPaid(ctx context.Context, session *payment.Session) (*models.Order, bool, error) {
	confirmation := models.PaymentConfirmation{
		ExternalID: session.ID,
		Status:     string(payment.StatusPaid),
		PayerEmail: session.CustomerEmail,
	}
	order, transitioned, err := s.orderRepo.MarkPaidIfPending(ctx, session.ID, confirmation, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, false, ErrOrderNotFound
		}
		return nil, false, fmt.Errorf("failed to mark order paid for session %s: %w", session.ID, err)
	}

	if transitioned {
		log.Printf("Order %s paid (session %s)", order.ID, session.ID)
		if err := s.publisher.PublishOrderEvent(events.NewOrderEvent(events.OrderPaid, order, s.now())); err != nil {
			log.Printf("Warning: Failed to publish order paid event for order %s: %v", order.ID, err)
		}
	}
	return order, transitioned, nil
}
