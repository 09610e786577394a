package jobs

import (
	"context"
	"errors"
	"log"

	"janus/internal/models"
	"janus/internal/services"
)

// BatchRunner is the part of the batch service the scheduler needs
type BatchRunner interface {
	Run(ctx context.Context) (*models.BatchResult, error)
}

// BatchJob runs the nightly capture reconciliation
type BatchJob struct {
	batch BatchRunner
}

// NewBatchJob creates a new batch reconciliation job
func NewBatchJob(batch BatchRunner) *BatchJob {
	return &BatchJob{batch: batch}
}

// Run executes one reconciliation pass. A run that finds the lease held is not a failure.
func (j *BatchJob) Run(ctx context.Context) error {
	result, err := j.batch.Run(ctx)
	if errors.Is(err, services.ErrBatchInProgress) {
		log.Println("⏭️  [BATCH-JOB] Another run holds the lease, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("[BATCH-JOB] Run %s: %d processed, %d failed, %d skipped",
		result.RunID, result.ProcessedCount, result.FailedCount, result.SkippedCount)
	return nil
}
