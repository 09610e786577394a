package handlers

import "github.com/gofiber/fiber/v2"

// Routes bundles the handlers and guards mounted by Register
type Routes struct {
	Health *HealthHandler
	Auth   *AuthHandler
	Past   *PastHandler
	Future *FutureHandler

	// RequireAuth gates every user-facing route
	RequireAuth fiber.Handler
	// BatchGuard gates the internal batch trigger
	BatchGuard fiber.Handler
	// Optional per-user and per-trigger rate limits
	UserLimiter  fiber.Handler
	BatchLimiter fiber.Handler
}

// Register mounts every route at the application root
func (r *Routes) Register(app fiber.Router) {
	app.Get("/", r.Health.Root)
	app.Get("/health", r.Health.Handle)

	protected := []fiber.Handler{r.RequireAuth}
	if r.UserLimiter != nil {
		protected = append(protected, r.UserLimiter)
	}
	batchGuards := []fiber.Handler{}
	if r.BatchLimiter != nil {
		batchGuards = append(batchGuards, r.BatchLimiter)
	}
	if r.BatchGuard != nil {
		batchGuards = append(batchGuards, r.BatchGuard)
	}

	authGroup := app.Group("/auth", protected...)
	authGroup.Post("/verify", r.Auth.Verify)

	// The batch trigger is registered before the protected group so it skips the bearer check
	app.Post("/past/process-batch", append(batchGuards, r.Past.ProcessBatch)...)

	past := app.Group("/past", protected...)
	past.Post("/capture", r.Past.Capture)
	past.Get("/digest", r.Past.Digest)

	future := app.Group("/future", protected...)
	future.Get("/upcoming-events", r.Future.UpcomingEvents)
	future.Get("/briefing-candidates", r.Future.BriefingCandidates)
	future.Post("/generate-briefing", r.Future.GenerateBriefing)
	future.Get("/briefings", r.Future.ListBriefings)
}
