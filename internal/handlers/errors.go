package handlers

import (
	"errors"
	"log"

	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// respondError writes the JSON error body for err. Unknown errors are logged and
// answered with a generic 500.
func respondError(c *fiber.Ctx, err error) error {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		body := fiber.Map{"message": vErr.Message}
		if len(vErr.Fields) > 0 {
			body["errors"] = vErr.Fields
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}

	status, message := fiber.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, services.ErrSignatureInvalid):
		status, message = fiber.StatusBadRequest, "Webhook signature verification failed"
	case errors.Is(err, services.ErrPaymentNotCompleted):
		status, message = fiber.StatusBadRequest, "Payment not completed"
	case errors.Is(err, services.ErrCannotDeleteAdmin):
		status, message = fiber.StatusBadRequest, "Cannot delete admin user"
	case errors.Is(err, services.ErrInvalidCredentials):
		status, message = fiber.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, services.ErrForbidden):
		status, message = fiber.StatusForbidden, "Not authorized to access this order"
	case errors.Is(err, services.ErrOrderNotFound):
		status, message = fiber.StatusNotFound, "Order not found"
	case errors.Is(err, services.ErrProductNotFound):
		status, message = fiber.StatusNotFound, "Product not found"
	case errors.Is(err, services.ErrCategoryNotFound):
		status, message = fiber.StatusNotFound, "Category not found"
	case errors.Is(err, services.ErrUserNotFound):
		status, message = fiber.StatusNotFound, "User not found"
	case errors.Is(err, services.ErrCategoryExists):
		status, message = fiber.StatusConflict, "Category already exists"
	case errors.Is(err, services.ErrEmailTaken):
		status, message = fiber.StatusConflict, "User already exists"
	case errors.Is(err, services.ErrOrderNotPaid):
		status, message = fiber.StatusConflict, "Order has not been paid"
	case errors.Is(err, services.ErrGatewayUnavailable):
		status, message = fiber.StatusServiceUnavailable, "Payment provider unavailable, try again"
	}

	if status >= fiber.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"message": message})
}

func badBody(c *fiber.Ctx, err error) error {
	log.Printf("Error parsing request body: %v", err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}
