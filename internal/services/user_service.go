package services

import (
	"context"
	"fmt"
	"log"

	"janus/internal/models"
	"janus/internal/store"
)

// UserService keeps the users collection in sync with verified identities
type UserService struct {
	users store.UserStore
}

// NewUserService creates a new user service
func NewUserService(users store.UserStore) *UserService {
	return &UserService{users: users}
}

// SyncUser creates or refreshes the stored user for a verified identity.
// This should be called whenever a client verifies its token.
func (s *UserService) SyncUser(ctx context.Context, identity *models.Identity) (*models.User, error) {
	if identity == nil || identity.UID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	user, err := s.users.UpsertUser(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to sync user: %w", err)
	}

	if user.CreatedAt.Equal(user.LastSeenAt) {
		log.Printf("✅ [USER] New user registered: %s", user.ID)
	}
	return user, nil
}
