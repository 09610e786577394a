// Package store persists captures, briefings and users. Two backends exist:
// MongoDB (flat collections keyed by userId) and SQL (MySQL or SQLite).
package store

import (
	"context"
	"errors"
	"time"

	"janus/internal/models"
)

// ErrNotFound is returned by point updates whose target does not exist
var ErrNotFound = errors.New("record not found")

// DefaultDigestLimit is used when a caller passes a non-positive limit
const DefaultDigestLimit = 20

// CaptureStore is the per-user capture collection
type CaptureStore interface {
	// SaveCapture assigns a fresh id and always inserts
	SaveCapture(ctx context.Context, capture *models.Capture) (string, error)
	// ListProcessedCaptures returns processed captures, newest first
	ListProcessedCaptures(ctx context.Context, userID string, limit int) ([]models.Capture, error)
	// ListUnprocessedCapturesSince scans across all users
	ListUnprocessedCapturesSince(ctx context.Context, cutoff time.Time) ([]models.Capture, error)
	// MarkSummarized sets summary and processed=true for one record
	MarkSummarized(ctx context.Context, userID, captureID, summary string) error
}

// BriefingStore is the per-user briefing collection
type BriefingStore interface {
	SaveBriefing(ctx context.Context, briefing *models.Briefing) (string, error)
	ListBriefings(ctx context.Context, userID string, limit int) ([]models.Briefing, error)
}

// UserStore maintains the users collection
type UserStore interface {
	UpsertUser(ctx context.Context, identity *models.Identity) (*models.User, error)
}

// Store bundles every collection a backend provides
type Store interface {
	CaptureStore
	BriefingStore
	UserStore
	Close(ctx context.Context) error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultDigestLimit
	}
	return limit
}
