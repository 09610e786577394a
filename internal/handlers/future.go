package handlers

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"time"

	"janus/internal/middleware"
	"janus/internal/models"
	"janus/internal/services"
	"janus/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/yuin/goldmark"
)

// FutureHandler serves calendar and briefing endpoints
type FutureHandler struct {
	calendar   *services.CalendarService
	summarizer *services.SummarizerService
	briefings  store.BriefingStore
	metrics    *services.Metrics
	markdown   goldmark.Markdown
}

// NewFutureHandler creates a new future-mode handler
func NewFutureHandler(calendar *services.CalendarService, summarizer *services.SummarizerService, briefings store.BriefingStore, metrics *services.Metrics) *FutureHandler {
	return &FutureHandler{
		calendar:   calendar,
		summarizer: summarizer,
		briefings:  briefings,
		metrics:    metrics,
		markdown:   goldmark.New(),
	}
}

// UpcomingEvents lists calendar events in the next daysAhead days
// GET /future/upcoming-events?daysAhead=7
func (h *FutureHandler) UpcomingEvents(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)

	daysAhead := c.QueryInt("daysAhead", 7)
	if daysAhead < 1 || daysAhead > 365 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "daysAhead must be between 1 and 365",
		})
	}

	events := h.calendar.ListUpcoming(c.UserContext(), identity.UID, daysAhead)
	return c.JSON(models.UpcomingEventsResponse{
		Events:      events,
		RetrievedAt: time.Now().UTC(),
	})
}

// BriefingCandidates lists events in the next hoursAhead hours worth briefing
// GET /future/briefing-candidates?hoursAhead=24
func (h *FutureHandler) BriefingCandidates(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)

	hoursAhead := c.QueryInt("hoursAhead", 24)
	if hoursAhead < 1 || hoursAhead > 24*30 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "hoursAhead must be between 1 and 720",
		})
	}

	events := h.calendar.ListForBriefing(c.UserContext(), identity.UID, hoursAhead)
	return c.JSON(models.UpcomingEventsResponse{
		Events:      events,
		RetrievedAt: time.Now().UTC(),
	})
}

// GenerateBriefing writes and stores a briefing for one calendar event
// POST /future/generate-briefing
func (h *FutureHandler) GenerateBriefing(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)

	var req models.BriefingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "eventId is required",
		})
	}

	// Provider failures surface as not found too; the calendar service has already logged them
	event, err := h.calendar.GetEvent(c.UserContext(), identity.UID, req.EventID)
	if err != nil {
		if !errors.Is(err, services.ErrEventNotFound) {
			log.Printf("❌ [FUTURE] Event lookup failed for %s: %v", req.EventID, err)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Event not found",
		})
	}

	content := h.summarizer.GenerateBriefing(c.UserContext(), event)

	// All-day events resolve to midnight UTC of their date
	eventTime, _ := event.Start.Instant()

	briefing := &models.Briefing{
		UserID:          identity.UID,
		EventID:         req.EventID,
		EventTitle:      event.Summary,
		EventTime:       eventTime,
		BriefingContent: content,
		CreatedAt:       time.Now().UTC(),
	}

	if _, err := h.briefings.SaveBriefing(c.UserContext(), briefing); err != nil {
		log.Printf("❌ [FUTURE] Failed to save briefing for user %s: %v", identity.UID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save briefing",
		})
	}

	h.metrics.RecordBriefing()
	log.Printf("📝 [FUTURE] Briefing %s generated for event %s (user %s)", briefing.ID, req.EventID, identity.UID)
	return c.JSON(briefing)
}

// ListBriefings returns the user's briefings, newest first.
// With format=html each briefing also carries its markdown rendered to HTML.
// GET /future/briefings
func (h *FutureHandler) ListBriefings(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)

	limit := c.QueryInt("limit", store.DefaultDigestLimit)
	if limit < 1 || limit > maxDigestLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	briefings, err := h.briefings.ListBriefings(c.UserContext(), identity.UID, limit)
	if err != nil {
		log.Printf("❌ [FUTURE] Failed to list briefings for user %s: %v", identity.UID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load briefings",
		})
	}

	if c.Query("format") == "html" {
		for i := range briefings {
			briefings[i].BriefingHTML = h.renderMarkdown(briefings[i].BriefingContent)
		}
	}

	return c.JSON(briefings)
}

func (h *FutureHandler) renderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(source), &buf); err != nil {
		log.Printf("⚠️  [FUTURE] Markdown render failed: %v", err)
		return ""
	}
	return buf.String()
}
