package handlers

import (
	"log"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService  *services.AuthService
	validate     *validator.Validate
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler. cookieSecure marks the session cookie Secure.
func NewAuthHandler(authService *services.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		validate:     validation.New(),
		cookieSecure: cookieSecure,
	}
}

// RegisterRoutes registers the authentication and user management routes.
// Static paths are registered before "/:id".
func (h *AuthHandler) RegisterRoutes(router fiber.Router, auth, admin fiber.Handler) {
	userRoutes := router.Group("/users")
	userRoutes.Post("/", h.HandleRegister)
	userRoutes.Post("/login", h.HandleLogin)
	userRoutes.Post("/logout", h.HandleLogout)
	userRoutes.Get("/profile", auth, h.HandleProfile)
	userRoutes.Put("/profile", auth, h.HandleUpdateProfile)

	userRoutes.Get("/all", auth, admin, h.HandleListUsers)
	userRoutes.Get("/:id", auth, admin, h.HandleGetUser)
	userRoutes.Put("/:id", auth, admin, h.HandleUpdateUser)
	userRoutes.Delete("/:id", auth, admin, h.HandleDeleteUser)
}

// HandleRegister handles new user registration and signs the user in.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var user models.User
	if err := c.BodyParser(&user); err != nil {
		return badBody(c, err)
	}
	user.ID = ""
	user.IsAdmin = false

	if err := h.authService.RegisterUser(c.UserContext(), &user); err != nil {
		return respondError(c, err)
	}

	token, err := h.authService.IssueToken(&user)
	if err != nil {
		return respondError(c, err)
	}
	h.setCookie(c, token, time.Now().Add(h.authService.TokenTTL()))

	// For security, do not return the password hash
	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token in the jwt cookie.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		fields, _ := validation.Messages(err)
		return respondError(c, &services.ValidationError{Message: "Validation failed", Fields: fields})
	}

	token, user, err := h.authService.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		log.Printf("Error during login for %s: %v", req.Email, err)
		return respondError(c, err)
	}
	h.setCookie(c, token, time.Now().Add(h.authService.TokenTTL()))

	user.Password = ""
	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// HandleLogout clears the session cookie.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	h.setCookie(c, "", time.Unix(0, 0))
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// HandleProfile returns the signed-in user.
func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	principal, _ := middleware.PrincipalFrom(c)
	user, err := h.authService.GetUser(c.UserContext(), principal.UserID)
	if err != nil {
		return respondError(c, err)
	}
	user.Password = ""
	return c.JSON(user)
}

// HandleUpdateProfile changes the signed-in user's username, email or password.
func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var update models.ProfileUpdate
	if err := c.BodyParser(&update); err != nil {
		return badBody(c, err)
	}
	principal, _ := middleware.PrincipalFrom(c)
	user, err := h.authService.UpdateProfile(c.UserContext(), principal.UserID, update)
	if err != nil {
		return respondError(c, err)
	}
	user.Password = ""
	return c.JSON(fiber.Map{
		"message": "User profile updated successfully",
		"user":    user,
	})
}

// HandleListUsers returns every user. Admin only.
func (h *AuthHandler) HandleListUsers(c *fiber.Ctx) error {
	users, err := h.authService.ListUsers(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	for i := range users {
		users[i].Password = ""
	}
	return c.JSON(users)
}

// HandleGetUser returns one user. Admin only.
func (h *AuthHandler) HandleGetUser(c *fiber.Ctx) error {
	user, err := h.authService.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	user.Password = ""
	return c.JSON(user)
}

// HandleUpdateUser changes another user's username, email or admin flag. Admin only.
func (h *AuthHandler) HandleUpdateUser(c *fiber.Ctx) error {
	var update models.UserUpdate
	if err := c.BodyParser(&update); err != nil {
		return badBody(c, err)
	}
	user, err := h.authService.UpdateUser(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return respondError(c, err)
	}
	user.Password = ""
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    user,
	})
}

// HandleDeleteUser removes a non-admin user. Admin only.
func (h *AuthHandler) HandleDeleteUser(c *fiber.Ctx) error {
	if err := h.authService.DeleteUser(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
