package handlers

import (
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"janus/internal/middleware"
	"janus/internal/models"
	"janus/internal/services"
	"janus/internal/store"

	"github.com/gofiber/fiber/v2"
)

const maxDigestLimit = 100

// PastHandler serves capture, digest and batch endpoints
type PastHandler struct {
	captures store.CaptureStore
	batch    *services.BatchService
	metrics  *services.Metrics
}

// NewPastHandler creates a new past-mode handler
func NewPastHandler(captures store.CaptureStore, batch *services.BatchService, metrics *services.Metrics) *PastHandler {
	return &PastHandler{
		captures: captures,
		batch:    batch,
		metrics:  metrics,
	}
}

// Capture stores new content for later summarization
// POST /past/capture
func (h *PastHandler) Capture(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)

	var req models.CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if msg := validateCapture(&req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	content := req.Content
	if req.Type == models.CaptureTypeURL {
		content = strings.TrimSpace(content)
	}

	capture := &models.Capture{
		UserID:    identity.UID,
		Type:      req.Type,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}

	if _, err := h.captures.SaveCapture(c.UserContext(), capture); err != nil {
		log.Printf("❌ [PAST] Failed to save capture for user %s: %v", identity.UID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save capture",
		})
	}

	h.metrics.RecordCapture(string(capture.Type))
	log.Printf("📥 [PAST] Captured %s %s for user %s", capture.Type, capture.ID, identity.UID)
	return c.JSON(capture)
}

// Digest returns the user's summarized captures, newest first
// GET /past/digest
func (h *PastHandler) Digest(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)

	limit := c.QueryInt("limit", store.DefaultDigestLimit)
	if limit < 1 || limit > maxDigestLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	captures, err := h.captures.ListProcessedCaptures(c.UserContext(), identity.UID, limit)
	if err != nil {
		log.Printf("❌ [PAST] Failed to load digest for user %s: %v", identity.UID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load digest",
		})
	}

	return c.JSON(models.DigestResponse{
		Captures:    captures,
		GeneratedAt: time.Now().UTC(),
	})
}

// ProcessBatch runs one reconciliation pass over every user's pending captures
// POST /past/process-batch
func (h *PastHandler) ProcessBatch(c *fiber.Ctx) error {
	result, err := h.batch.Run(c.UserContext())
	if errors.Is(err, services.ErrBatchInProgress) {
		return c.JSON(result)
	}
	if err != nil {
		log.Printf("❌ [BATCH] Manual run failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Batch run failed",
		})
	}
	return c.JSON(result)
}

// validateCapture returns a client-facing message, or "" when req is valid
func validateCapture(req *models.CaptureRequest) string {
	if !req.Type.Valid() {
		return "type must be one of url, text, voice"
	}
	if strings.TrimSpace(req.Content) == "" {
		return "content is required"
	}
	if req.Type == models.CaptureTypeURL {
		u, err := url.Parse(strings.TrimSpace(req.Content))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "content must be an http(s) URL for url captures"
		}
	}
	return ""
}
