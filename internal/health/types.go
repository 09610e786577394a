package health

import "time"

// Upstream names an external dependency whose availability is tracked
type Upstream string

const (
	UpstreamStore    Upstream = "store"
	UpstreamCalendar Upstream = "calendar"
	UpstreamLLM      Upstream = "llm"
	UpstreamScraper  Upstream = "scraper"
	UpstreamLease    Upstream = "lease"
)

// Status represents the health state of an upstream
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusUnhealthy    Status = "unhealthy"
	StatusCooldown     Status = "cooldown"
	StatusUnconfigured Status = "unconfigured" // credentials absent, running degraded
	StatusUnknown      Status = "unknown"
)

// UpstreamHealth tracks one upstream
type UpstreamHealth struct {
	Upstream      Upstream  `json:"-"`
	Status        Status    `json:"status"`
	Detail        string    `json:"detail,omitempty"`
	LastChecked   time.Time `json:"lastChecked,omitempty"`
	LastSuccessAt time.Time `json:"lastSuccessAt,omitempty"`
	FailureCount  int       `json:"failureCount,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
	CooldownUntil time.Time `json:"cooldownUntil,omitempty"`
}
