package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the order routes with the Fiber app. Every route needs a
// signed-in user; admin-only routes also pass through admin.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth, admin fiber.Handler) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", auth, h.HandleCreateOrder)
	orderRoutes.Get("/", auth, admin, h.HandleGetOrders)
	orderRoutes.Get("/mine", auth, h.HandleGetMyOrders)
	orderRoutes.Get("/:id", auth, h.HandleGetOrderByID)
	orderRoutes.Put("/:id/deliver", auth, admin, h.HandleMarkDelivered)
	orderRoutes.Delete("/:id", auth, admin, h.HandleDeleteOrder)
}

// HandleCreateOrder places an order without a hosted checkout session.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req models.DirectOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}

	principal, _ := middleware.PrincipalFrom(c)
	order, err := h.service.CreateOrder(c.UserContext(), principal.UserID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleGetOrders retrieves all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetMyOrders retrieves the caller's orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFrom(c)
	orders, err := h.service.ListMine(c.UserContext(), principal.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFrom(c)
	order, err := h.service.GetOrder(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleMarkDelivered marks an order delivered.
func (h *OrderHandler) HandleMarkDelivered(c *fiber.Ctx) error {
	order, err := h.service.MarkDelivered(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleDeleteOrder deletes an order.
func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	if err := h.service.DeleteOrder(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Order removed"})
}
