package health

import (
	"log"
	"sync"
	"time"
)

const defaultFailureThreshold = 3

// Tracker records the availability of each upstream so that degraded
// responses ("no events", placeholder summaries) can be told apart from
// genuine empty results.
type Tracker struct {
	mu               sync.RWMutex
	upstreams        map[Upstream]*UpstreamHealth
	failureThreshold int
}

// NewTracker creates a tracker. An upstream turns unhealthy after
// failureThreshold consecutive failures.
func NewTracker(failureThreshold int) *Tracker {
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	return &Tracker{
		upstreams:        make(map[Upstream]*UpstreamHealth),
		failureThreshold: failureThreshold,
	}
}

// Register adds an upstream. Unconfigured upstreams stay unconfigured until
// re-registered; success and failure reports for them are ignored.
func (t *Tracker) Register(upstream Upstream, configured bool, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := StatusUnknown
	if !configured {
		status = StatusUnconfigured
	}
	t.upstreams[upstream] = &UpstreamHealth{
		Upstream: upstream,
		Status:   status,
		Detail:   detail,
	}

	if configured {
		log.Printf("[HEALTH] Registered upstream %s (%s)", upstream, detail)
	} else {
		log.Printf("⚠️  [HEALTH] Upstream %s is not configured, running degraded (%s)", upstream, detail)
	}
}

// MarkHealthy records a successful call
func (t *Tracker) MarkHealthy(upstream Upstream) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.upstreams[upstream]
	if h == nil || h.Status == StatusUnconfigured {
		return
	}

	wasUnhealthy := h.Status == StatusUnhealthy || h.Status == StatusCooldown
	now := time.Now()
	h.Status = StatusHealthy
	h.LastChecked = now
	h.LastSuccessAt = now
	h.FailureCount = 0
	h.LastError = ""
	h.CooldownUntil = time.Time{}

	if wasUnhealthy {
		log.Printf("✅ [HEALTH] Upstream %s recovered", upstream)
	}
}

// MarkFailure records a failed call. Quota errors put the upstream into cooldown.
func (t *Tracker) MarkFailure(upstream Upstream, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.upstreams[upstream]
	if h == nil || h.Status == StatusUnconfigured {
		return
	}

	h.FailureCount++
	h.LastError = truncateStr(errMsg, 300)
	h.LastChecked = time.Now()

	if IsQuotaError(errMsg) {
		h.Status = StatusCooldown
		h.CooldownUntil = time.Now().Add(CooldownFor(errMsg))
		log.Printf("[HEALTH] Upstream %s in COOLDOWN until %s (reason: %s)",
			upstream, h.CooldownUntil.Format(time.RFC3339), truncateStr(errMsg, 100))
		return
	}

	if h.FailureCount >= t.failureThreshold {
		if h.Status != StatusUnhealthy {
			log.Printf("❌ [HEALTH] Upstream %s marked UNHEALTHY after %d failures: %s",
				upstream, h.FailureCount, truncateStr(errMsg, 200))
		}
		h.Status = StatusUnhealthy
	} else {
		log.Printf("[HEALTH] Upstream %s failure %d/%d: %s",
			upstream, h.FailureCount, t.failureThreshold, truncateStr(errMsg, 200))
	}
}

// Get returns the current state of one upstream
func (t *Tracker) Get(upstream Upstream) (UpstreamHealth, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.upstreams[upstream]
	if !ok {
		return UpstreamHealth{}, false
	}
	return snapshotOf(h), true
}

// Snapshot returns every registered upstream keyed by name
func (t *Tracker) Snapshot() map[string]UpstreamHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]UpstreamHealth, len(t.upstreams))
	for name, h := range t.upstreams {
		result[string(name)] = snapshotOf(h)
	}
	return result
}

// An expired cooldown reads as unknown until the next call reports in
func snapshotOf(h *UpstreamHealth) UpstreamHealth {
	snapshot := *h
	if snapshot.Status == StatusCooldown && time.Now().After(snapshot.CooldownUntil) {
		snapshot.Status = StatusUnknown
	}
	return snapshot
}

// Degraded reports whether any registered upstream is not healthy or unknown
func (t *Tracker) Degraded() bool {
	for _, h := range t.Snapshot() {
		switch h.Status {
		case StatusUnhealthy, StatusCooldown, StatusUnconfigured:
			return true
		}
	}
	return false
}

// truncateStr keeps at most maxLen runes
func truncateStr(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
