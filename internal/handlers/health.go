package handlers

import (
	"time"

	"janus/internal/health"
	"janus/internal/jobs"

	"github.com/gofiber/fiber/v2"
)

const serviceName = "janus-ai-butler"

// JobReporter exposes the next and last run times of scheduled jobs
type JobReporter interface {
	GetStatus() map[string]jobs.JobStatus
}

// HealthHandler handles liveness and upstream status requests
type HealthHandler struct {
	tracker *health.Tracker
	jobs    JobReporter
}

// NewHealthHandler creates a new health handler. jobs may be nil.
func NewHealthHandler(tracker *health.Tracker, jobs JobReporter) *HealthHandler {
	return &HealthHandler{tracker: tracker, jobs: jobs}
}

// Root responds with a banner so load balancers probing "/" get a 200
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Janus AI Butler API is running",
	})
}

// Handle responds with server health. The process is live whenever it can
// answer; degraded upstreams are reported alongside instead of failing the probe.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	response := fiber.Map{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.tracker != nil {
		response["upstreams"] = h.tracker.Snapshot()
		response["degraded"] = h.tracker.Degraded()
	}
	if h.jobs != nil {
		response["jobs"] = h.jobs.GetStatus()
	}
	return c.JSON(response)
}
