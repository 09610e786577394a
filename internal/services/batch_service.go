package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"janus/internal/logging"
	"janus/internal/models"
	"janus/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrBatchInProgress is returned when another run holds the batch lease
var ErrBatchInProgress = errors.New("batch run already in progress")

// CaptureSummarizer is the failure-reporting side of the summarizer used by the batch
type CaptureSummarizer interface {
	TrySummarizeURL(ctx context.Context, rawURL string) (string, error)
	TrySummarizeText(ctx context.Context, text string) (string, error)
}

type itemOutcome string

const (
	outcomeProcessed itemOutcome = "processed"
	outcomeFailed    itemOutcome = "failed"
	outcomeSkipped   itemOutcome = "skipped"
)

// BatchService runs the reconciliation pass that summarizes every pending
// capture of every user inside the trailing window.
//
// Items are independent: a failure leaves that capture unprocessed (so the
// next run retries it) and never cancels its siblings.
type BatchService struct {
	captures    store.CaptureStore
	summarizer  CaptureSummarizer
	lease       BatchLease
	window      time.Duration
	concurrency int
	metrics     *Metrics
	now         func() time.Time
}

// NewBatchService creates the batch workflow. lease may be nil to allow overlapping runs.
func NewBatchService(captures store.CaptureStore, summarizer CaptureSummarizer, lease BatchLease, window time.Duration, concurrency int, metrics *Metrics) *BatchService {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchService{
		captures:    captures,
		summarizer:  summarizer,
		lease:       lease,
		window:      window,
		concurrency: concurrency,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Run performs one pass. If another run holds the lease it returns a
// skipped result together with ErrBatchInProgress. An error from the fetch
// phase aborts the run before any item is dispatched.
func (s *BatchService) Run(ctx context.Context) (*models.BatchResult, error) {
	runID := uuid.New().String()
	logger := logging.WithBatchRun(runID)
	started := time.Now()
	result := &models.BatchResult{RunID: runID}

	if s.lease != nil {
		acquired, err := s.lease.Acquire(ctx, runID)
		if err != nil {
			s.metrics.RecordBatchRun("failed", time.Since(started).Seconds())
			return nil, err
		}
		if !acquired {
			logger.Info("batch lease held by another run, skipping")
			result.Skipped = true
			s.metrics.RecordBatchRun("skipped", 0)
			return result, ErrBatchInProgress
		}
		defer func() {
			// Release even if the caller's context was cancelled mid-run
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := s.lease.Release(releaseCtx, runID); err != nil {
				logger.Warn("failed to release batch lease", "error", err)
			}
		}()
	}

	cutoff := s.now().Add(-s.window)
	candidates, err := s.captures.ListUnprocessedCapturesSince(ctx, cutoff)
	if err != nil {
		s.metrics.RecordBatchRun("failed", time.Since(started).Seconds())
		return nil, fmt.Errorf("failed to fetch pending captures: %w", err)
	}
	result.CandidateCount = len(candidates)
	logger.Info("batch run started", "candidates", len(candidates), "cutoff", cutoff, "concurrency", s.concurrency)

	var processed, failed, skipped atomic.Int64

	// Plain Group: siblings keep running when one item fails
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range candidates {
		capture := candidates[i]
		g.Go(func() error {
			outcome := s.processItem(ctx, logger, capture)
			switch outcome {
			case outcomeProcessed:
				processed.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			}
			s.metrics.RecordBatchItem(string(capture.Type), string(outcome))
			return nil
		})
	}
	_ = g.Wait()

	result.ProcessedCount = int(processed.Load())
	result.FailedCount = int(failed.Load())
	result.SkippedCount = int(skipped.Load())

	duration := time.Since(started)
	s.metrics.RecordBatchRun("completed", duration.Seconds())
	log.Printf("✅ [BATCH] Run %s finished: processed=%d failed=%d skipped=%d candidates=%d (%dms)",
		runID, result.ProcessedCount, result.FailedCount, result.SkippedCount, result.CandidateCount, duration.Milliseconds())

	return result, nil
}

// processItem summarizes and commits one capture
func (s *BatchService) processItem(ctx context.Context, runLogger *slog.Logger, capture models.Capture) itemOutcome {
	logger := logging.WithCapture(runLogger, capture.UserID, capture.ID, string(capture.Type))

	var summary string
	var err error
	switch capture.Type {
	case models.CaptureTypeURL:
		summary, err = s.summarizer.TrySummarizeURL(ctx, capture.Content)
	case models.CaptureTypeText:
		summary, err = s.summarizer.TrySummarizeText(ctx, capture.Content)
	default:
		// Voice and unknown types wait for a transcription step that does not exist yet
		logger.Debug("capture type not summarizable, leaving unprocessed")
		return outcomeSkipped
	}

	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("summarizer returned empty text")
	}
	if err != nil {
		logger.Warn("capture summarization failed, will retry next run", "error", err)
		return outcomeFailed
	}

	if err := s.captures.MarkSummarized(ctx, capture.UserID, capture.ID, summary); err != nil {
		logger.Error("failed to store capture summary", "error", err)
		return outcomeFailed
	}

	logger.Debug("capture summarized", "summary_chars", len([]rune(summary)))
	return outcomeProcessed
}
