package services

import (
	"context"
	"errors"
	"time"

	"janus/internal/health"
	"janus/internal/logging"
	"janus/internal/models"
)

const (
	upcomingEventsLimit = 50
	briefingEventsLimit = 20
	defaultDaysAhead    = 7
	defaultHoursAhead   = 24
)

// ErrEventNotFound is returned when a calendar event is absent
var ErrEventNotFound = errors.New("event not found")

// CalendarProvider is the read-only calendar backend. Unlike CalendarService
// it reports failures, so the service can record them before degrading.
type CalendarProvider interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]models.CalendarEvent, error)
	GetEvent(ctx context.Context, eventID string) (*models.CalendarEvent, error)
}

// CalendarService exposes the calendar to handlers. Provider failures and
// missing credentials degrade to empty results; the failure is logged and
// recorded in health and metrics so it stays distinguishable from "no events".
//
// All users currently share the calendar the service account can read.
type CalendarService struct {
	provider CalendarProvider // nil when unconfigured
	tracker  *health.Tracker
	metrics  *Metrics
	now      func() time.Time
}

// NewCalendarService creates a calendar service. provider may be nil.
func NewCalendarService(provider CalendarProvider, tracker *health.Tracker, metrics *Metrics) *CalendarService {
	return &CalendarService{
		provider: provider,
		tracker:  tracker,
		metrics:  metrics,
		now:      time.Now,
	}
}

// ListUpcoming returns up to 50 events in [now, now+daysAhead], ordered by start
func (s *CalendarService) ListUpcoming(ctx context.Context, userID string, daysAhead int) []models.CalendarEvent {
	if daysAhead <= 0 {
		daysAhead = defaultDaysAhead
	}
	now := s.now()
	return s.list(ctx, "list_upcoming", userID, now, now.AddDate(0, 0, daysAhead), upcomingEventsLimit)
}

// ListForBriefing returns up to 20 events in [now, now+hoursAhead] that have
// at least one attendee or a description
func (s *CalendarService) ListForBriefing(ctx context.Context, userID string, hoursAhead int) []models.CalendarEvent {
	if hoursAhead <= 0 {
		hoursAhead = defaultHoursAhead
	}
	now := s.now()
	events := s.list(ctx, "list_for_briefing", userID, now, now.Add(time.Duration(hoursAhead)*time.Hour), briefingEventsLimit)

	candidates := make([]models.CalendarEvent, 0, len(events))
	for _, e := range events {
		if e.HasBriefingContext() {
			candidates = append(candidates, e)
		}
	}
	return candidates
}

// GetEvent looks up one event. Absent events, provider failures and missing
// credentials all return ErrEventNotFound.
func (s *CalendarService) GetEvent(ctx context.Context, userID, eventID string) (*models.CalendarEvent, error) {
	if s.provider == nil || eventID == "" {
		return nil, ErrEventNotFound
	}

	start := time.Now()
	event, err := s.provider.GetEvent(ctx, eventID)
	if errors.Is(err, ErrEventNotFound) {
		s.metrics.RecordUpstreamCall(string(health.UpstreamCalendar), "get_event", time.Since(start).Seconds(), nil)
		s.markHealthy()
		return nil, ErrEventNotFound
	}
	s.metrics.RecordUpstreamCall(string(health.UpstreamCalendar), "get_event", time.Since(start).Seconds(), err)
	if err != nil {
		s.markFailure("get_event", userID, err)
		return nil, ErrEventNotFound
	}

	s.markHealthy()
	return event, nil
}

func (s *CalendarService) list(ctx context.Context, operation, userID string, from, to time.Time, limit int) []models.CalendarEvent {
	if s.provider == nil {
		return []models.CalendarEvent{}
	}

	start := time.Now()
	events, err := s.provider.ListEvents(ctx, from, to, limit)
	s.metrics.RecordUpstreamCall(string(health.UpstreamCalendar), operation, time.Since(start).Seconds(), err)
	if err != nil {
		s.markFailure(operation, userID, err)
		return []models.CalendarEvent{}
	}

	s.markHealthy()
	if len(events) > limit {
		events = events[:limit]
	}
	return events
}

func (s *CalendarService) markHealthy() {
	if s.tracker != nil {
		s.tracker.MarkHealthy(health.UpstreamCalendar)
	}
}

func (s *CalendarService) markFailure(operation, userID string, err error) {
	if s.tracker != nil {
		s.tracker.MarkFailure(health.UpstreamCalendar, err.Error())
	}
	logging.WithUpstream(string(health.UpstreamCalendar)).Warn("calendar call failed, returning empty result",
		"operation", operation, "user_id", userID, "error", err)
}
