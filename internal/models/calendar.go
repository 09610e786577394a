package models

import "time"

// EventTime is either a precise instant or an all-day date
type EventTime struct {
	DateTime *time.Time `json:"dateTime,omitempty"`
	Date     string     `json:"date,omitempty"` // YYYY-MM-DD for all-day events
	TimeZone string     `json:"timeZone,omitempty"`
}

// Instant resolves the event time to a concrete instant. All-day dates
// resolve to midnight UTC of that date. ok is false when neither is set.
func (t EventTime) Instant() (instant time.Time, ok bool) {
	if t.DateTime != nil {
		return *t.DateTime, true
	}
	if t.Date != "" {
		d, err := time.Parse("2006-01-02", t.Date)
		if err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// Attendee is one invitee of a calendar event
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
	Organizer      bool   `json:"organizer,omitempty"`
	Self           bool   `json:"self,omitempty"`
}

// CalendarEvent is a read-only view of an event owned by the calendar provider
type CalendarEvent struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Start       EventTime  `json:"start"`
	End         EventTime  `json:"end"`
	Attendees   []Attendee `json:"attendees"`
	Location    string     `json:"location"`
	Created     string     `json:"created,omitempty"`
	Updated     string     `json:"updated,omitempty"`
}

// AttendeeEmails returns the non-empty attendee email addresses in order
func (e *CalendarEvent) AttendeeEmails() []string {
	emails := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if a.Email != "" {
			emails = append(emails, a.Email)
		}
	}
	return emails
}

// HasBriefingContext reports whether the event has enough context to brief:
// at least one attendee or a non-empty description.
func (e *CalendarEvent) HasBriefingContext() bool {
	return len(e.Attendees) > 0 || e.Description != ""
}

// UpcomingEventsResponse is returned by GET /future/upcoming-events
type UpcomingEventsResponse struct {
	Events      []CalendarEvent `json:"events"`
	RetrievedAt time.Time       `json:"retrievedAt"`
}
