package models

import "time"

// CaptureType identifies what kind of content a capture holds
type CaptureType string

const (
	CaptureTypeURL   CaptureType = "url"
	CaptureTypeText  CaptureType = "text"
	CaptureTypeVoice CaptureType = "voice"
)

// Valid reports whether t is one of the accepted capture types
func (t CaptureType) Valid() bool {
	switch t {
	case CaptureTypeURL, CaptureTypeText, CaptureTypeVoice:
		return true
	}
	return false
}

// Capture is one user-submitted item awaiting (or having received) a summary.
// Processed only ever moves from false to true; Summary is empty until then.
type Capture struct {
	ID        string         `bson:"_id" json:"id"`
	UserID    string         `bson:"userId" json:"userId"`
	Type      CaptureType    `bson:"type" json:"type"`
	Content   string         `bson:"content" json:"content"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Processed bool           `bson:"processed" json:"processed"`
	Summary   string         `bson:"summary,omitempty" json:"summary,omitempty"`
}

// CaptureRequest is the body of POST /past/capture
type CaptureRequest struct {
	Type     CaptureType    `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DigestResponse is returned by GET /past/digest
type DigestResponse struct {
	Captures    []Capture `json:"captures"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// BatchResult aggregates one run of the batch reconciliation workflow
type BatchResult struct {
	RunID          string `json:"runId"`
	ProcessedCount int    `json:"processedCount"`
	FailedCount    int    `json:"failedCount"`
	SkippedCount   int    `json:"skippedCount"`
	CandidateCount int    `json:"candidateCount"`
	Skipped        bool   `json:"skipped,omitempty"` // another run holds the lease
}
