package handlers

import (
	"log"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader is where Stripe puts the webhook signature.
const SignatureHeader = "Stripe-Signature"

// CheckoutHandler handles hosted checkout and payment reconciliation requests.
type CheckoutHandler struct {
	checkout       *services.CheckoutService
	reconciliation *services.ReconciliationService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout *services.CheckoutService, reconciliation *services.ReconciliationService) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:       checkout,
		reconciliation: reconciliation,
	}
}

// RegisterRoutes registers the checkout routes. The webhook is authenticated by its
// signature, not by a user token.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/webhook", h.HandleWebhook)
	orderRoutes.Post("/checkout", auth, h.HandleCheckout)
	orderRoutes.Post("/confirm-payment", auth, h.HandleConfirmPayment)
}

// HandleCheckout starts a hosted checkout session for the caller's cart.
func (h *CheckoutHandler) HandleCheckout(c *fiber.Ctx) error {
	var req models.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	principal, _ := middleware.PrincipalFrom(c)
	result, err := h.checkout.InitiateCheckout(c.UserContext(), principal.UserID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleWebhook applies a provider notification. The raw body is passed through untouched
// because the signature covers the exact bytes.
func (h *CheckoutHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	outcome, err := h.reconciliation.HandleWebhook(c.UserContext(), payload, c.Get(SignatureHeader))
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("Webhook processed: %s", outcome)
	return c.JSON(fiber.Map{"received": true})
}

// confirmPaymentRequest accepts the session id as "session_id" or "sessionId".
type confirmPaymentRequest struct {
	SessionID      string `json:"session_id"`
	SessionIDCamel string `json:"sessionId"`
}

// HandleConfirmPayment reconciles a session after the shopper returns from checkout.
func (h *CheckoutHandler) HandleConfirmPayment(c *fiber.Ctx) error {
	var req confirmPaymentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = req.SessionIDCamel
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = c.Query("session_id")
	}

	principal, _ := middleware.PrincipalFrom(c)
	order, err := h.reconciliation.ConfirmPayment(c.UserContext(), principal, req.SessionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}
