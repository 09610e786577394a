package handlers

import (
	"log"

	"janus/internal/middleware"
	"janus/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler exposes token verification to clients
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// Verify returns the identity behind the bearer token and records the user.
// POST /auth/verify
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid authentication credentials",
		})
	}

	if h.userService != nil {
		// A failed sync must not fail verification itself
		if _, err := h.userService.SyncUser(c.UserContext(), identity); err != nil {
			log.Printf("⚠️  [AUTH] Failed to sync user %s: %v", identity.UID, err)
		}
	}

	return c.JSON(identity)
}
