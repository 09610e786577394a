package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithBatchRun returns a logger with batch run context attached.
// Use this for all logging within one reconciliation pass.
func WithBatchRun(runID string) *slog.Logger {
	return slog.With(
		"component", "batch",
		"run_id", runID,
	)
}

// WithCapture returns a logger scoped to one capture within a batch run.
func WithCapture(logger *slog.Logger, userID, captureID, captureType string) *slog.Logger {
	return logger.With(
		"user_id", userID,
		"capture_id", captureID,
		"capture_type", captureType,
	)
}

// WithUpstream returns a logger for calls to an external provider.
func WithUpstream(upstream string) *slog.Logger {
	return slog.With("upstream", upstream)
}
