package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"janus/internal/database"
	"janus/internal/health"
	"janus/internal/jobs"
	"janus/internal/middleware"
	"janus/internal/models"
	"janus/internal/services"
	"janus/internal/store"
	"janus/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

const testSecret = "handlers-test-secret"

type fakeCalendar struct {
	events map[string]models.CalendarEvent
}

func (f *fakeCalendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]models.CalendarEvent, error) {
	events := make([]models.CalendarEvent, 0, len(f.events))
	for _, e := range f.events {
		events = append(events, e)
	}
	return events, nil
}

func (f *fakeCalendar) GetEvent(ctx context.Context, eventID string) (*models.CalendarEvent, error) {
	e, ok := f.events[eventID]
	if !ok {
		return nil, services.ErrEventNotFound
	}
	return &e, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return "## Summary\n\n- " + strings.Fields(prompt)[0], nil
}

func (echoGenerator) Model() string { return "echo" }

type fixedJobs map[string]jobs.JobStatus

func (f fixedJobs) GetStatus() map[string]jobs.JobStatus { return f }

type testEnv struct {
	app     *fiber.App
	db      *database.DB
	store   *store.SQLStore
	tracker *health.Tracker
}

func setupTestApp(t *testing.T, batchToken string) *testEnv {
	t.Helper()

	db, err := database.New("sqlite://" + filepath.Join(t.TempDir(), "test_handlers.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	st := store.NewSQLStore(db)
	t.Cleanup(func() { st.Close(context.Background()) })

	verifier, err := auth.NewJWTVerifier(auth.JWTOptions{Secret: testSecret, Issuer: "janus-test"})
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}

	tracker := health.NewTracker(3)
	tracker.Register(health.UpstreamStore, true, "sqlite")
	tracker.Register(health.UpstreamCalendar, true, "fake")
	tracker.Register(health.UpstreamLLM, false, "LLM_API_KEY not set")

	calendar := services.NewCalendarService(&fakeCalendar{events: map[string]models.CalendarEvent{
		"evt-1": {
			ID:          "evt-1",
			Summary:     "Roadmap review",
			Description: "Walk through H2 roadmap",
			Start:       models.EventTime{Date: "2026-04-01"},
			Attendees:   []models.Attendee{{Email: "lead@example.com"}},
		},
		"evt-2": {
			ID:      "evt-2",
			Summary: "Lunch",
			Start:   models.EventTime{Date: "2026-04-01"},
		},
	}}, tracker, nil)

	pages := services.NewPageFetcher(services.PageFetcherOptions{
		Timeout:           5 * time.Second,
		MaxChars:          5000,
		AllowPrivateHosts: true,
	})
	summarizer := services.NewSummarizerService(echoGenerator{}, pages, "English", tracker, nil)
	batch := services.NewBatchService(st, summarizer, services.NewLocalLease(), 24*time.Hour, 2, nil)

	scheduled := fixedJobs{
		"batch-reconciliation": {Name: "batch-reconciliation", NextRunTime: time.Date(2026, 4, 2, 3, 0, 0, 0, time.UTC)},
	}

	routes := &Routes{
		Health:      NewHealthHandler(tracker, scheduled),
		Auth:        NewAuthHandler(services.NewUserService(st)),
		Past:        NewPastHandler(st, batch, nil),
		Future:      NewFutureHandler(calendar, summarizer, st, nil),
		RequireAuth: middleware.AuthMiddleware(verifier, "production"),
		BatchGuard:  middleware.BatchTriggerMiddleware(batchToken),
	}

	app := fiber.New()
	routes.Register(app)

	return &testEnv{app: app, db: db, store: st, tracker: tracker}
}

func bearer(t *testing.T, uid string) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, models.Identity{UID: uid, Email: uid + "@example.com", Name: "Test " + uid}, "janus-test", time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return "Bearer " + token
}

func (e *testEnv) do(t *testing.T, method, path, authHeader string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := e.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp, respBody
}

func TestHealthHandler(t *testing.T) {
	env := setupTestApp(t, "")

	resp, body := env.do(t, "GET", "/health", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if result["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", result["status"])
	}
	if result["service"] != "janus-ai-butler" {
		t.Errorf("Unexpected service %v", result["service"])
	}
	if result["timestamp"] == nil {
		t.Error("Expected 'timestamp' field in response")
	}

	upstreams, ok := result["upstreams"].(map[string]any)
	if !ok {
		t.Fatalf("Expected upstreams map, got %T", result["upstreams"])
	}
	llm, _ := upstreams["llm"].(map[string]any)
	if llm["status"] != "unconfigured" {
		t.Errorf("Expected llm unconfigured, got %v", llm["status"])
	}
	if result["degraded"] != true {
		t.Error("Expected degraded=true with an unconfigured upstream")
	}

	scheduled, ok := result["jobs"].(map[string]any)
	if !ok {
		t.Fatalf("Expected jobs map, got %T", result["jobs"])
	}
	batchJob, _ := scheduled["batch-reconciliation"].(map[string]any)
	if batchJob["next_run_time"] != "2026-04-02T03:00:00Z" {
		t.Errorf("Unexpected batch next run %v", batchJob["next_run_time"])
	}

	resp, body = env.do(t, "GET", "/", "", nil)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(body), "Janus AI Butler API is running") {
		t.Errorf("Unexpected root response %d %s", resp.StatusCode, body)
	}
}

func TestCapture_RequiresAuthAndWritesNothing(t *testing.T) {
	env := setupTestApp(t, "")
	payload := map[string]any{"type": "text", "content": "hello"}

	for _, header := range []string{"", "Bearer not-a-jwt", "Token abc"} {
		resp, body := env.do(t, "POST", "/past/capture", header, payload)
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("Header %q: expected 401, got %d", header, resp.StatusCode)
		}
		if !strings.Contains(string(body), "Invalid authentication credentials") {
			t.Errorf("Header %q: unexpected body %s", header, body)
		}
	}

	pending, err := env.store.ListUnprocessedCapturesSince(context.Background(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Failed to list captures: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no stored captures, got %d", len(pending))
	}
}

func TestCapture_Validation(t *testing.T) {
	env := setupTestApp(t, "")
	auth := bearer(t, "user-1")

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"unknown type", map[string]any{"type": "video", "content": "x"}},
		{"empty content", map[string]any{"type": "text", "content": "   "}},
		{"url without scheme", map[string]any{"type": "url", "content": "example.com"}},
		{"non-http url", map[string]any{"type": "url", "content": "javascript:alert(1)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(t, "POST", "/past/capture", auth, tt.payload)
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Errorf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestCaptureBatchDigestFlow(t *testing.T) {
	env := setupTestApp(t, "")
	auth := bearer(t, "user-1")

	resp, body := env.do(t, "POST", "/past/capture", auth, map[string]any{
		"type":     "text",
		"content":  "hello",
		"metadata": map[string]any{"source": "ios"},
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var capture models.Capture
	if err := json.Unmarshal(body, &capture); err != nil {
		t.Fatalf("Failed to parse capture: %v", err)
	}
	if capture.ID == "" || capture.UserID != "user-1" || capture.Processed || capture.Summary != "" {
		t.Errorf("Unexpected capture %+v", capture)
	}

	// Voice captures are accepted but never summarized
	env.do(t, "POST", "/past/capture", auth, map[string]any{"type": "voice", "content": "transcript"})

	resp, body = env.do(t, "GET", "/past/digest", auth, nil)
	var digest models.DigestResponse
	json.Unmarshal(body, &digest)
	if resp.StatusCode != fiber.StatusOK || len(digest.Captures) != 0 {
		t.Fatalf("Expected empty digest before batch, got %d %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, "POST", "/past/process-batch", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected batch 200, got %d: %s", resp.StatusCode, body)
	}
	var result map[string]any
	json.Unmarshal(body, &result)
	if result["processedCount"] != float64(1) {
		t.Errorf("Expected processedCount 1, got %v", result["processedCount"])
	}
	if result["skippedCount"] != float64(1) {
		t.Errorf("Expected skippedCount 1, got %v", result["skippedCount"])
	}

	resp, body = env.do(t, "GET", "/past/digest", auth, nil)
	if err := json.Unmarshal(body, &digest); err != nil {
		t.Fatalf("Failed to parse digest: %v", err)
	}
	if len(digest.Captures) != 1 {
		t.Fatalf("Expected 1 digest entry, got %d", len(digest.Captures))
	}
	if digest.Captures[0].ID != capture.ID || digest.Captures[0].Summary == "" || !digest.Captures[0].Processed {
		t.Errorf("Unexpected digest entry %+v", digest.Captures[0])
	}
	if digest.Captures[0].Metadata["source"] != "ios" {
		t.Errorf("Expected metadata to survive, got %v", digest.Captures[0].Metadata)
	}

	// Second run finds nothing new
	_, body = env.do(t, "POST", "/past/process-batch", "", nil)
	json.Unmarshal(body, &result)
	if result["processedCount"] != float64(0) {
		t.Errorf("Expected processedCount 0 on rerun, got %v", result["processedCount"])
	}

	// Another user's digest stays empty
	_, body = env.do(t, "GET", "/past/digest", bearer(t, "user-2"), nil)
	json.Unmarshal(body, &digest)
	if len(digest.Captures) != 0 {
		t.Errorf("Expected user-2 digest to be empty, got %d", len(digest.Captures))
	}
}

func TestCaptureURL_TrimsWhitespaceBeforeFetch(t *testing.T) {
	var fetched []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = append(fetched, r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><article><p>Pasted from the share sheet with a trailing newline.</p></article></body></html>"))
	}))
	defer server.Close()

	env := setupTestApp(t, "")
	auth := bearer(t, "user-1")

	resp, body := env.do(t, "POST", "/past/capture", auth, map[string]any{
		"type":    "url",
		"content": server.URL + "/article\n",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}
	var capture models.Capture
	if err := json.Unmarshal(body, &capture); err != nil {
		t.Fatalf("Failed to parse capture: %v", err)
	}
	if capture.Content != server.URL+"/article" {
		t.Errorf("Expected trimmed URL, got %q", capture.Content)
	}

	_, body = env.do(t, "POST", "/past/process-batch", "", nil)
	var result map[string]any
	json.Unmarshal(body, &result)
	if result["processedCount"] != float64(1) || result["failedCount"] != float64(0) {
		t.Fatalf("Expected the URL to be processed, got %s", body)
	}
	if len(fetched) != 1 || fetched[0] != "/article" {
		t.Errorf("Expected one fetch of /article, got %v", fetched)
	}

	_, body = env.do(t, "GET", "/past/digest", auth, nil)
	var digest models.DigestResponse
	json.Unmarshal(body, &digest)
	if len(digest.Captures) != 1 || digest.Captures[0].Summary == "" {
		t.Errorf("Expected a summarized URL in the digest, got %s", body)
	}
}

func TestProcessBatch_TriggerToken(t *testing.T) {
	env := setupTestApp(t, "cron-secret")

	resp, _ := env.do(t, "POST", "/past/process-batch", "", nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected 403 without trigger token, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest("POST", "/past/process-batch", nil)
	req.Header.Set(middleware.BatchTokenHeader, "cron-secret")
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 with trigger token, got %d", resp.StatusCode)
	}
}

func TestGenerateBriefing_UnknownEvent(t *testing.T) {
	env := setupTestApp(t, "")
	auth := bearer(t, "user-1")

	resp, body := env.do(t, "POST", "/future/generate-briefing", auth, map[string]any{"eventId": "missing"})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", resp.StatusCode, body)
	}

	briefings, err := env.store.ListBriefings(context.Background(), "user-1", 100)
	if err != nil {
		t.Fatalf("Failed to list briefings: %v", err)
	}
	if len(briefings) != 0 {
		t.Errorf("Expected no briefing to be written, got %d", len(briefings))
	}
}

func TestGenerateBriefing_AndList(t *testing.T) {
	env := setupTestApp(t, "")
	auth := bearer(t, "user-1")

	resp, body := env.do(t, "POST", "/future/generate-briefing", auth, map[string]any{"eventId": "evt-1", "hoursBefore": 2})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var briefing models.Briefing
	if err := json.Unmarshal(body, &briefing); err != nil {
		t.Fatalf("Failed to parse briefing: %v", err)
	}
	if briefing.ID == "" || briefing.EventID != "evt-1" || briefing.EventTitle != "Roadmap review" {
		t.Errorf("Unexpected briefing %+v", briefing)
	}
	if !briefing.EventTime.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected all-day event time at midnight UTC, got %s", briefing.EventTime)
	}
	if briefing.BriefingContent == "" {
		t.Error("Expected briefing content")
	}

	resp, body = env.do(t, "GET", "/future/briefings", auth, nil)
	var list []models.Briefing
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("Failed to parse list: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK || len(list) != 1 {
		t.Fatalf("Expected 1 briefing, got %d: %s", resp.StatusCode, body)
	}
	if list[0].BriefingHTML != "" {
		t.Error("HTML should only be rendered on request")
	}

	_, body = env.do(t, "GET", "/future/briefings?format=html", auth, nil)
	json.Unmarshal(body, &list)
	if !strings.Contains(list[0].BriefingHTML, "<h2>Summary</h2>") {
		t.Errorf("Expected rendered HTML, got %q", list[0].BriefingHTML)
	}

	resp, _ = env.do(t, "POST", "/future/generate-briefing", auth, map[string]any{})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400 without eventId, got %d", resp.StatusCode)
	}
}

func TestUpcomingEventsAndCandidates(t *testing.T) {
	env := setupTestApp(t, "")
	auth := bearer(t, "user-1")

	resp, body := env.do(t, "GET", "/future/upcoming-events", auth, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var upcoming models.UpcomingEventsResponse
	if err := json.Unmarshal(body, &upcoming); err != nil {
		t.Fatalf("Failed to parse events: %v", err)
	}
	if len(upcoming.Events) != 2 || upcoming.RetrievedAt.IsZero() {
		t.Errorf("Unexpected upcoming response %s", body)
	}

	_, body = env.do(t, "GET", "/future/briefing-candidates?hoursAhead=48", auth, nil)
	var candidates models.UpcomingEventsResponse
	json.Unmarshal(body, &candidates)
	if len(candidates.Events) != 1 || candidates.Events[0].ID != "evt-1" {
		t.Errorf("Expected only evt-1 as candidate, got %s", body)
	}

	resp, _ = env.do(t, "GET", "/future/upcoming-events?daysAhead=0", auth, nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for daysAhead=0, got %d", resp.StatusCode)
	}
}

func TestVerify_UpsertsUser(t *testing.T) {
	env := setupTestApp(t, "")

	resp, body := env.do(t, "POST", "/auth/verify", bearer(t, "user-9"), nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var identity models.Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		t.Fatalf("Failed to parse identity: %v", err)
	}
	if identity.UID != "user-9" || identity.Email != "user-9@example.com" || identity.Name != "Test user-9" {
		t.Errorf("Unexpected identity %+v", identity)
	}

	var email, name string
	err := env.db.QueryRow(`SELECT email, name FROM users WHERE id = ?`, "user-9").Scan(&email, &name)
	if err != nil {
		t.Fatalf("Expected verify to store the user: %v", err)
	}
	if email != "user-9@example.com" || name != "Test user-9" {
		t.Errorf("Unexpected stored user %q %q", email, name)
	}

	resp, _ = env.do(t, "POST", "/auth/verify", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}
}
