package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gofiber/fiber/v2"
)

// BatchTokenHeader carries the shared secret for the batch trigger endpoint
const BatchTokenHeader = "X-Batch-Token"

// BatchTriggerMiddleware guards the internal batch endpoint. With an empty
// token the endpoint stays open, matching a deployment where only the
// scheduler can reach it.
func BatchTriggerMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}

		provided := c.Get(BatchTokenHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			log.Printf("🚫 [BATCH] Rejected trigger from %s: invalid %s", c.IP(), BatchTokenHeader)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Invalid batch trigger token",
			})
		}
		return c.Next()
	}
}
