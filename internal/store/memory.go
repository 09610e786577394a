package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"janus/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It backs the degraded
// mode used when no database is configured; data is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	captures  map[string]*models.Capture
	briefings map[string]*models.Briefing
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*models.User),
		captures:  make(map[string]*models.Capture),
		briefings: make(map[string]*models.Briefing),
	}
}

func (s *MemoryStore) SaveCapture(ctx context.Context, capture *models.Capture) (string, error) {
	capture.ID = uuid.New().String()
	capture.Processed = false
	capture.Summary = ""
	if capture.Timestamp.IsZero() {
		capture.Timestamp = time.Now().UTC()
	}

	stored := *capture
	s.mu.Lock()
	s.captures[stored.ID] = &stored
	s.mu.Unlock()
	return stored.ID, nil
}

func (s *MemoryStore) ListProcessedCaptures(ctx context.Context, userID string, limit int) ([]models.Capture, error) {
	s.mu.RLock()
	results := make([]models.Capture, 0)
	for _, c := range s.captures {
		if c.UserID == userID && c.Processed {
			results = append(results, *c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	if n := normalizeLimit(limit); len(results) > n {
		results = results[:n]
	}
	return results, nil
}

func (s *MemoryStore) ListUnprocessedCapturesSince(ctx context.Context, cutoff time.Time) ([]models.Capture, error) {
	s.mu.RLock()
	results := make([]models.Capture, 0)
	for _, c := range s.captures {
		if !c.Processed && !c.Timestamp.Before(cutoff) {
			results = append(results, *c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	return results, nil
}

func (s *MemoryStore) MarkSummarized(ctx context.Context, userID, captureID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.captures[captureID]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	c.Summary = summary
	c.Processed = true
	return nil
}

func (s *MemoryStore) SaveBriefing(ctx context.Context, briefing *models.Briefing) (string, error) {
	briefing.ID = uuid.New().String()
	if briefing.CreatedAt.IsZero() {
		briefing.CreatedAt = time.Now().UTC()
	}

	stored := *briefing
	s.mu.Lock()
	s.briefings[stored.ID] = &stored
	s.mu.Unlock()
	return stored.ID, nil
}

func (s *MemoryStore) ListBriefings(ctx context.Context, userID string, limit int) ([]models.Briefing, error) {
	s.mu.RLock()
	results := make([]models.Briefing, 0)
	for _, b := range s.briefings {
		if b.UserID == userID {
			results = append(results, *b)
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if n := normalizeLimit(limit); len(results) > n {
		results = results[:n]
	}
	return results, nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, identity *models.Identity) (*models.User, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[identity.UID]
	if !ok {
		user = &models.User{ID: identity.UID, CreatedAt: now}
		s.users[identity.UID] = user
	}
	user.Email = identity.Email
	user.Name = identity.Name
	user.LastSeenAt = now

	copied := *user
	return &copied, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
