package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"janus/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const calendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

// GoogleCalendarProvider reads events from the Google Calendar v3 REST API
type GoogleCalendarProvider struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
}

// NewGoogleCalendarProvider creates a provider over an already authorized HTTP client
func NewGoogleCalendarProvider(httpClient *http.Client, baseURL, calendarID string) *GoogleCalendarProvider {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendarProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		calendarID: calendarID,
	}
}

// NewGoogleCalendarFromCredentials loads a service account key file and
// returns a provider whose requests carry read-only calendar tokens.
func NewGoogleCalendarFromCredentials(ctx context.Context, credentialsFile, baseURL, calendarID string, timeout time.Duration) (*GoogleCalendarProvider, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, calendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar credentials: %w", err)
	}

	// Token refreshes use the same deadline as API calls
	base := &http.Client{Timeout: timeout}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(tokenCtx, creds.TokenSource)
	client.Timeout = timeout

	return NewGoogleCalendarProvider(client, baseURL, calendarID), nil
}

type calendarEventList struct {
	Items []models.CalendarEvent `json:"items"`
}

// ListEvents returns single (expanded) event instances starting in [timeMin, timeMax], ordered by start
func (p *GoogleCalendarProvider) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]models.CalendarEvent, error) {
	query := url.Values{}
	query.Set("timeMin", timeMin.UTC().Format(time.RFC3339))
	query.Set("timeMax", timeMax.UTC().Format(time.RFC3339))
	query.Set("maxResults", strconv.Itoa(maxResults))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", p.baseURL, url.PathEscape(p.calendarID), query.Encode())

	var list calendarEventList
	if err := p.get(ctx, endpoint, &list); err != nil {
		return nil, err
	}

	events := list.Items
	if events == nil {
		events = []models.CalendarEvent{}
	}
	for i := range events {
		normalizeEvent(&events[i])
	}
	if len(events) > maxResults {
		events = events[:maxResults]
	}
	return events, nil
}

// GetEvent fetches one event. A 404 or 410 yields ErrEventNotFound.
func (p *GoogleCalendarProvider) GetEvent(ctx context.Context, eventID string) (*models.CalendarEvent, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", p.baseURL, url.PathEscape(p.calendarID), url.PathEscape(eventID))

	var event models.CalendarEvent
	if err := p.get(ctx, endpoint, &event); err != nil {
		return nil, err
	}
	normalizeEvent(&event)
	return &event, nil
}

func (p *GoogleCalendarProvider) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create calendar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrEventNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("calendar API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode calendar response: %w", err)
	}
	return nil
}

func normalizeEvent(e *models.CalendarEvent) {
	if e.Summary == "" {
		e.Summary = "No title"
	}
	if e.Attendees == nil {
		e.Attendees = []models.Attendee{}
	}
}
