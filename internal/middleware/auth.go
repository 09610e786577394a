package middleware

import (
	"errors"
	"log"

	"janus/internal/models"
	"janus/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

const identityLocal = "identity"

// AuthMiddleware verifies the bearer token on every protected route and
// stores the caller's identity in the request context.
// With no verifier configured it admits a fixed development user outside production.
func AuthMiddleware(verifier auth.Verifier, environment string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if verifier == nil {
			if environment == "production" {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "Authentication service unavailable",
				})
			}

			setIdentity(c, &models.Identity{UID: "dev-user", Email: "dev@localhost", Name: "Developer"})
			return c.Next()
		}

		token, err := auth.ExtractToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return unauthorized(c)
		}

		identity, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			// Detail stays in the log; the caller only learns the token was rejected
			if errors.Is(err, auth.ErrUnauthenticated) {
				log.Printf("❌ [AUTH] Token rejected for %s %s: %v", c.Method(), c.Path(), err)
			} else {
				log.Printf("❌ [AUTH] Verifier error for %s %s: %v", c.Method(), c.Path(), err)
			}
			return unauthorized(c)
		}

		setIdentity(c, identity)
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthMiddleware, or nil
func IdentityFrom(c *fiber.Ctx) *models.Identity {
	identity, _ := c.Locals(identityLocal).(*models.Identity)
	return identity
}

func setIdentity(c *fiber.Ctx, identity *models.Identity) {
	c.Locals(identityLocal, identity)
	c.Locals("user_id", identity.UID)
	c.Locals("user_email", identity.Email)
}

func unauthorized(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Invalid authentication credentials",
	})
}
