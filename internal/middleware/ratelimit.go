package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Authenticated endpoint limits (per user ID)
	AuthenticatedMax        int
	AuthenticatedExpiration time.Duration

	// Batch trigger: each run fans out to the LLM for every pending capture
	BatchTriggerMax        int
	BatchTriggerExpiration time.Duration
}

// NewRateLimitConfig derives limits from the per-minute API budget
func NewRateLimitConfig(apiPerMinute int, environment string) *RateLimitConfig {
	if apiPerMinute <= 0 {
		apiPerMinute = 120
	}

	config := &RateLimitConfig{
		GlobalAPIMax:            apiPerMinute * 2,
		GlobalAPIExpiration:     1 * time.Minute,
		AuthenticatedMax:        apiPerMinute,
		AuthenticatedExpiration: 1 * time.Minute,
		BatchTriggerMax:         6,
		BatchTriggerExpiration:  1 * time.Minute,
	}

	if environment == "development" {
		config.GlobalAPIMax = 1000
		config.AuthenticatedMax = 1000
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// AuthenticatedRateLimiter limits each verified user; it must run after AuthMiddleware
func AuthenticatedRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.AuthenticatedMax,
		Expiration: config.AuthenticatedExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
				return "auth:" + userID
			}
			return "auth-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			userID, _ := c.Locals("user_id").(string)
			log.Printf("⚠️  [RATE-LIMIT] Auth endpoint limit reached for user: %s on %s", userID, c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please wait before trying again.",
				"retry_after": int(config.AuthenticatedExpiration.Seconds()),
			})
		},
	})
}

// BatchTriggerRateLimiter limits manual batch triggers per IP
func BatchTriggerRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.BatchTriggerMax,
		Expiration: config.BatchTriggerExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "batch:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Batch trigger limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Batch trigger rate limit reached.",
				"retry_after": int(config.BatchTriggerExpiration.Seconds()),
			})
		},
	})
}
