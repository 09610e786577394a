package models

import "time"

// Briefing is an AI-generated pre-meeting brief for one calendar event.
// Immutable once created. EventID is not validated against the calendar.
type Briefing struct {
	ID              string    `bson:"_id" json:"id"`
	UserID          string    `bson:"userId" json:"userId"`
	EventID         string    `bson:"eventId" json:"eventId"`
	EventTitle      string    `bson:"eventTitle" json:"eventTitle"`
	EventTime       time.Time `bson:"eventTime" json:"eventTime"`
	BriefingContent string    `bson:"briefingContent" json:"briefingContent"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`

	// Rendered on request only, never persisted
	BriefingHTML string `bson:"-" json:"briefingHtml,omitempty"`
}

// BriefingRequest is the body of POST /future/generate-briefing.
// HoursBefore is accepted for client compatibility but does not affect generation.
type BriefingRequest struct {
	EventID     string `json:"eventId"`
	HoursBefore int    `json:"hoursBefore,omitempty"`
}
