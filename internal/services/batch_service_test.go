package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"janus/internal/models"
	"janus/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSummarizer fails for any content listed in failOn
type fakeSummarizer struct {
	mu     sync.Mutex
	failOn map[string]bool
	empty  map[string]bool
	calls  []string
}

func (f *fakeSummarizer) summarize(content, prefix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, content)
	if f.failOn[content] {
		return "", errors.New("upstream unavailable")
	}
	if f.empty[content] {
		return "   ", nil
	}
	return prefix + content, nil
}

func (f *fakeSummarizer) TrySummarizeURL(ctx context.Context, rawURL string) (string, error) {
	return f.summarize(rawURL, "url summary: ")
}

func (f *fakeSummarizer) TrySummarizeText(ctx context.Context, text string) (string, error) {
	return f.summarize(text, "text summary: ")
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// failingMarkStore wraps a store and refuses to mark one capture
type failingMarkStore struct {
	store.CaptureStore
	failID string
}

func (s *failingMarkStore) MarkSummarized(ctx context.Context, userID, captureID, summary string) error {
	if captureID == s.failID {
		return errors.New("write conflict")
	}
	return s.CaptureStore.MarkSummarized(ctx, userID, captureID, summary)
}

func saveCapture(t *testing.T, s store.CaptureStore, userID string, captureType models.CaptureType, content string) string {
	t.Helper()
	id, err := s.SaveCapture(context.Background(), &models.Capture{
		UserID:  userID,
		Type:    captureType,
		Content: content,
	})
	require.NoError(t, err)
	return id
}

func TestBatchRun_TextCaptureScenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	summarizer := &fakeSummarizer{}
	batch := NewBatchService(st, summarizer, NewLocalLease(), 24*time.Hour, 2, nil)

	id := saveCapture(t, st, "user-1", models.CaptureTypeText, "hello")

	pending, err := st.ListUnprocessedCapturesSince(ctx, time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.False(t, pending[0].Processed)

	result, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.CandidateCount)
	assert.NotEmpty(t, result.RunID)

	digest, err := st.ListProcessedCaptures(ctx, "user-1", 20)
	require.NoError(t, err)
	require.Len(t, digest, 1)
	assert.Equal(t, id, digest[0].ID)
	assert.Equal(t, "text summary: hello", digest[0].Summary)
}

func TestBatchRun_IsolatesItemFailures(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	summarizer := &fakeSummarizer{failOn: map[string]bool{"https://broken.example.com": true}}
	batch := NewBatchService(st, summarizer, nil, 24*time.Hour, 4, nil)

	saveCapture(t, st, "user-1", models.CaptureTypeText, "first")
	saveCapture(t, st, "user-2", models.CaptureTypeURL, "https://ok.example.com")
	brokenID := saveCapture(t, st, "user-2", models.CaptureTypeURL, "https://broken.example.com")
	saveCapture(t, st, "user-3", models.CaptureTypeText, "second")
	saveCapture(t, st, "user-3", models.CaptureTypeText, "third")

	result, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 5, result.CandidateCount)

	pending, err := st.ListUnprocessedCapturesSince(ctx, time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, brokenID, pending[0].ID)
	assert.Empty(t, pending[0].Summary)
}

func TestBatchRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	summarizer := &fakeSummarizer{}
	batch := NewBatchService(st, summarizer, NewLocalLease(), 24*time.Hour, 2, nil)

	saveCapture(t, st, "user-1", models.CaptureTypeText, "a")
	saveCapture(t, st, "user-1", models.CaptureTypeURL, "https://example.com")

	first, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.ProcessedCount)

	second, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ProcessedCount)
	assert.Equal(t, 0, second.CandidateCount)
	assert.Equal(t, 2, summarizer.callCount())
}

func TestBatchRun_RetriesFailedItemsOnNextRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	summarizer := &fakeSummarizer{failOn: map[string]bool{"flaky": true}}
	batch := NewBatchService(st, summarizer, nil, 24*time.Hour, 1, nil)

	id := saveCapture(t, st, "user-1", models.CaptureTypeText, "flaky")

	result, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)

	summarizer.mu.Lock()
	summarizer.failOn = nil
	summarizer.mu.Unlock()

	result, err = batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)

	digest, err := st.ListProcessedCaptures(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, digest, 1)
	assert.Equal(t, id, digest[0].ID)
}

func TestBatchRun_SkipsVoiceCaptures(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	summarizer := &fakeSummarizer{}
	batch := NewBatchService(st, summarizer, nil, 24*time.Hour, 2, nil)

	voiceID := saveCapture(t, st, "user-1", models.CaptureTypeVoice, "transcript")
	saveCapture(t, st, "user-1", models.CaptureTypeText, "note")

	result, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, 1, summarizer.callCount())

	pending, err := st.ListUnprocessedCapturesSince(ctx, time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, voiceID, pending[0].ID)
}

func TestBatchRun_IgnoresCapturesOutsideWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	summarizer := &fakeSummarizer{}
	batch := NewBatchService(st, summarizer, nil, 24*time.Hour, 2, nil)

	_, err := st.SaveCapture(ctx, &models.Capture{
		UserID:    "user-1",
		Type:      models.CaptureTypeText,
		Content:   "stale",
		Timestamp: time.Now().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	saveCapture(t, st, "user-1", models.CaptureTypeText, "fresh")

	result, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CandidateCount)
	assert.Equal(t, 1, result.ProcessedCount)
}

func TestBatchRun_CommitFailureLeavesItemPending(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	okID := saveCapture(t, mem, "user-1", models.CaptureTypeText, "ok")
	badID := saveCapture(t, mem, "user-1", models.CaptureTypeText, "bad")

	st := &failingMarkStore{CaptureStore: mem, failID: badID}
	batch := NewBatchService(st, &fakeSummarizer{}, nil, 24*time.Hour, 2, nil)

	result, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)

	digest, err := mem.ListProcessedCaptures(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, digest, 1)
	assert.Equal(t, okID, digest[0].ID)
}

func TestBatchRun_EmptySummaryCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	batch := NewBatchService(st, &fakeSummarizer{empty: map[string]bool{"blank": true}}, nil, 24*time.Hour, 1, nil)

	saveCapture(t, st, "user-1", models.CaptureTypeText, "blank")

	result, err := batch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
}

func TestBatchRun_LeaseHeld(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	lease := NewLocalLease()
	summarizer := &fakeSummarizer{}
	batch := NewBatchService(st, summarizer, lease, 24*time.Hour, 1, nil)

	saveCapture(t, st, "user-1", models.CaptureTypeText, "waiting")

	acquired, err := lease.Acquire(ctx, "other-run")
	require.NoError(t, err)
	require.True(t, acquired)

	result, err := batch.Run(ctx)
	assert.ErrorIs(t, err, ErrBatchInProgress)
	require.NotNil(t, result)
	assert.True(t, result.Skipped)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 0, summarizer.callCount())

	require.NoError(t, lease.Release(ctx, "other-run"))

	result, err = batch.Run(ctx)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.ProcessedCount)
}

func TestLocalLease(t *testing.T) {
	ctx := context.Background()
	lease := NewLocalLease()

	ok, err := lease.Acquire(ctx, "run-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lease.Acquire(ctx, "run-b")
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the holder can release
	require.NoError(t, lease.Release(ctx, "run-b"))
	ok, _ = lease.Acquire(ctx, "run-b")
	assert.False(t, ok)

	require.NoError(t, lease.Release(ctx, "run-a"))
	ok, _ = lease.Acquire(ctx, "run-b")
	assert.True(t, ok)
}
