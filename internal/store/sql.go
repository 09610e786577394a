package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"janus/internal/database"
	"janus/internal/models"

	"github.com/google/uuid"
)

// SQLStore implements Store on MySQL or SQLite. Instants are stored as
// UTC unix nanoseconds.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore creates a store over an initialized SQL connection
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

const captureColumns = "id, user_id, type, content, metadata, timestamp, processed, summary"

// SaveCapture inserts a new capture with a fresh id
func (s *SQLStore) SaveCapture(ctx context.Context, capture *models.Capture) (string, error) {
	capture.ID = uuid.New().String()
	capture.Processed = false
	capture.Summary = ""
	if capture.Timestamp.IsZero() {
		capture.Timestamp = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(capture.Metadata) > 0 {
		raw, err := json.Marshal(capture.Metadata)
		if err != nil {
			return "", fmt.Errorf("failed to encode capture metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captures (`+captureColumns+`) VALUES (?, ?, ?, ?, ?, ?, 0, NULL)`,
		capture.ID, capture.UserID, string(capture.Type), capture.Content, metadata, capture.Timestamp.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert capture: %w", err)
	}
	return capture.ID, nil
}

// ListProcessedCaptures returns processed captures for one user, newest first
func (s *SQLStore) ListProcessedCaptures(ctx context.Context, userID string, limit int) ([]models.Capture, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+captureColumns+` FROM captures
		 WHERE user_id = ? AND processed = 1
		 ORDER BY timestamp DESC LIMIT ?`,
		userID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	return scanCaptures(rows)
}

// ListUnprocessedCapturesSince returns pending captures of every user at or after cutoff
func (s *SQLStore) ListUnprocessedCapturesSince(ctx context.Context, cutoff time.Time) ([]models.Capture, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+captureColumns+` FROM captures
		 WHERE processed = 0 AND timestamp >= ?
		 ORDER BY timestamp ASC`,
		cutoff.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending captures: %w", err)
	}
	return scanCaptures(rows)
}

// MarkSummarized performs a point update on (user_id, id)
func (s *SQLStore) MarkSummarized(ctx context.Context, userID, captureID, summary string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE captures SET summary = ?, processed = 1 WHERE id = ? AND user_id = ?`,
		summary, captureID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark capture summarized: %w", err)
	}

	// MySQL reports 0 affected rows when values are unchanged, so confirm existence separately
	affected, err := result.RowsAffected()
	if err == nil && affected > 0 {
		return nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM captures WHERE id = ? AND user_id = ?`, captureID, userID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to confirm capture update: %w", err)
	}
	return nil
}

// SaveBriefing inserts a new briefing with a fresh id
func (s *SQLStore) SaveBriefing(ctx context.Context, briefing *models.Briefing) (string, error) {
	briefing.ID = uuid.New().String()
	if briefing.CreatedAt.IsZero() {
		briefing.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO briefings (id, user_id, event_id, event_title, event_time, briefing_content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		briefing.ID, briefing.UserID, briefing.EventID, briefing.EventTitle,
		briefing.EventTime.UnixNano(), briefing.BriefingContent, briefing.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert briefing: %w", err)
	}
	return briefing.ID, nil
}

// ListBriefings returns briefings for one user, newest first
func (s *SQLStore) ListBriefings(ctx context.Context, userID string, limit int) ([]models.Briefing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, event_id, event_title, event_time, briefing_content, created_at
		 FROM briefings WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query briefings: %w", err)
	}
	defer rows.Close()

	briefings := make([]models.Briefing, 0)
	for rows.Next() {
		var b models.Briefing
		var eventTime, createdAt int64
		if err := rows.Scan(&b.ID, &b.UserID, &b.EventID, &b.EventTitle, &eventTime, &b.BriefingContent, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan briefing: %w", err)
		}
		b.EventTime = time.Unix(0, eventTime).UTC()
		b.CreatedAt = time.Unix(0, createdAt).UTC()
		briefings = append(briefings, b)
	}
	return briefings, rows.Err()
}

// UpsertUser creates the user on first sight and refreshes profile fields after
func (s *SQLStore) UpsertUser(ctx context.Context, identity *models.Identity) (*models.User, error) {
	now := time.Now().UTC().UnixNano()

	query := `INSERT INTO users (id, email, name, created_at, last_seen_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name, last_seen_at = excluded.last_seen_at`
	if s.db.Dialect == database.DialectMySQL {
		query = `INSERT INTO users (id, email, name, created_at, last_seen_at) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE email = VALUES(email), name = VALUES(name), last_seen_at = VALUES(last_seen_at)`
	}

	if _, err := s.db.ExecContext(ctx, query, identity.UID, identity.Email, identity.Name, now, now); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var user models.User
	var createdAt, lastSeenAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, last_seen_at FROM users WHERE id = ?`, identity.UID,
	).Scan(&user.ID, &user.Email, &user.Name, &createdAt, &lastSeenAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	user.LastSeenAt = time.Unix(0, lastSeenAt).UTC()
	return &user, nil
}

// Close closes the SQL connection pool
func (s *SQLStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func scanCaptures(rows *sql.Rows) ([]models.Capture, error) {
	defer rows.Close()

	captures := make([]models.Capture, 0)
	for rows.Next() {
		var c models.Capture
		var captureType string
		var metadata, summary sql.NullString
		var timestamp int64
		var processed int

		if err := rows.Scan(&c.ID, &c.UserID, &captureType, &c.Content, &metadata, &timestamp, &processed, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}

		c.Type = models.CaptureType(captureType)
		c.Timestamp = time.Unix(0, timestamp).UTC()
		c.Processed = processed != 0
		c.Summary = summary.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode capture metadata: %w", err)
			}
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}
