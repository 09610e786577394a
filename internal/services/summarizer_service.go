package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"janus/internal/health"
	"janus/internal/logging"
	"janus/internal/models"
)

// PageSource fetches a URL and returns its extracted text
type PageSource interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// SummarizerService turns captures and calendar events into readable text.
//
// The Try* methods report failures to the caller; the batch workflow uses
// them so a failed item stays unprocessed and is retried on the next run.
// The plain methods never fail: every error degrades to a placeholder string
// for interactive callers.
type SummarizerService struct {
	llm      TextGenerator // nil when unconfigured
	pages    PageSource
	language string
	tracker  *health.Tracker
	metrics  *Metrics
}

// NewSummarizerService creates a summarizer. llm may be nil, in which case
// every Try* call fails with ErrLLMUnconfigured.
func NewSummarizerService(llm TextGenerator, pages PageSource, language string, tracker *health.Tracker, metrics *Metrics) *SummarizerService {
	if language == "" {
		language = "Japanese"
	}
	return &SummarizerService{
		llm:      llm,
		pages:    pages,
		language: language,
		tracker:  tracker,
		metrics:  metrics,
	}
}

// TrySummarizeURL fetches the page and summarizes its text
func (s *SummarizerService) TrySummarizeURL(ctx context.Context, rawURL string) (string, error) {
	if s.llm == nil {
		return "", ErrLLMUnconfigured
	}

	start := time.Now()
	text, err := s.pages.FetchText(ctx, rawURL)
	s.metrics.RecordUpstreamCall(string(health.UpstreamScraper), "fetch", time.Since(start).Seconds(), err)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("fetch timed out for %s: %w", rawURL, err)
		}
		return "", fmt.Errorf("fetch failed for %s: %w", rawURL, err)
	}

	prompt := fmt.Sprintf(`Summarize the following web page concisely.
- Organize at most 3 key points
- Explain each point in 1-2 sentences
- Output as an easy-to-read bulleted list

URL: %s

Content:
%s`, rawURL, text)

	return s.generate(ctx, "summarize_url", prompt)
}

// TrySummarizeText summarizes raw text
func (s *SummarizerService) TrySummarizeText(ctx context.Context, text string) (string, error) {
	if s.llm == nil {
		return "", ErrLLMUnconfigured
	}

	prompt := fmt.Sprintf(`Summarize the following text concisely.
- Organize at most 3 key points
- Explain each point in 1-2 sentences
- Output as an easy-to-read bulleted list

Text:
%s`, text)

	return s.generate(ctx, "summarize_text", prompt)
}

// TryGenerateBriefing writes a pre-meeting briefing from event metadata
func (s *SummarizerService) TryGenerateBriefing(ctx context.Context, event *models.CalendarEvent) (string, error) {
	if s.llm == nil {
		return "", ErrLLMUnconfigured
	}

	prompt := fmt.Sprintf(`Write a pre-meeting briefing for the following event.

Event: %s
Description: %s
Attendees: %s

Cover these points:
1. Purpose and importance of the meeting
2. Information and materials to prepare in advance
3. What to know about the attendees
4. Keys to making the meeting a success

Keep it concise and practical.`, event.Summary, event.Description, strings.Join(event.AttendeeEmails(), ", "))

	return s.generate(ctx, "generate_briefing", prompt)
}

// SummarizeURL is TrySummarizeURL with a placeholder on failure
func (s *SummarizerService) SummarizeURL(ctx context.Context, rawURL string) string {
	summary, err := s.TrySummarizeURL(ctx, rawURL)
	if errors.Is(err, ErrLLMUnconfigured) {
		return fmt.Sprintf("URL: %s\nSummary unavailable (%v)", rawURL, err)
	}
	if err != nil {
		return fmt.Sprintf("URL: %s\nAn error occurred while summarizing: %v", rawURL, err)
	}
	return summary
}

// SummarizeText is TrySummarizeText with a placeholder on failure
func (s *SummarizerService) SummarizeText(ctx context.Context, text string) string {
	summary, err := s.TrySummarizeText(ctx, text)
	if errors.Is(err, ErrLLMUnconfigured) {
		return fmt.Sprintf("Summary unavailable (%v)\n\nOriginal text: %s", err, truncateRunes(text, 200))
	}
	if err != nil {
		return fmt.Sprintf("An error occurred while summarizing: %v", err)
	}
	return summary
}

// GenerateBriefing is TryGenerateBriefing with a placeholder on failure
func (s *SummarizerService) GenerateBriefing(ctx context.Context, event *models.CalendarEvent) string {
	briefing, err := s.TryGenerateBriefing(ctx, event)
	if errors.Is(err, ErrLLMUnconfigured) {
		return fmt.Sprintf("Event: %s\nBriefing unavailable (%v)", event.Summary, err)
	}
	if err != nil {
		return fmt.Sprintf("An error occurred while generating the briefing: %v", err)
	}
	return briefing
}

func (s *SummarizerService) generate(ctx context.Context, operation, prompt string) (string, error) {
	system := fmt.Sprintf("You are a personal butler preparing concise, practical notes. Always respond in %s.", s.language)

	start := time.Now()
	out, err := s.llm.Generate(ctx, system, prompt)
	s.metrics.RecordUpstreamCall(string(health.UpstreamLLM), operation, time.Since(start).Seconds(), err)

	if err != nil {
		if s.tracker != nil {
			s.tracker.MarkFailure(health.UpstreamLLM, err.Error())
		}
		logging.WithUpstream(string(health.UpstreamLLM)).Warn("text generation failed",
			"operation", operation, "model", s.llm.Model(), "error", err)
		return "", err
	}

	if s.tracker != nil {
		s.tracker.MarkHealthy(health.UpstreamLLM)
	}
	log.Printf("✅ [SUMMARIZER] %s completed (model: %s, latency: %dms, length: %d chars)",
		operation, s.llm.Model(), time.Since(start).Milliseconds(), len([]rune(out)))
	return out, nil
}
