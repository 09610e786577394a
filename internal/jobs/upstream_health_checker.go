package jobs

import (
	"context"
	"log"
	"time"

	"janus/internal/health"
)

// ProbeFunc checks one upstream and returns nil when it is reachable
type ProbeFunc func(ctx context.Context) error

// UpstreamHealthChecker periodically probes upstreams that have no request
// traffic of their own to report on, such as the database and redis
type UpstreamHealthChecker struct {
	tracker *health.Tracker
	probes  map[health.Upstream]ProbeFunc
	timeout time.Duration
}

// NewUpstreamHealthChecker creates a new upstream health checker job
func NewUpstreamHealthChecker(tracker *health.Tracker, timeout time.Duration) *UpstreamHealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UpstreamHealthChecker{
		tracker: tracker,
		probes:  make(map[health.Upstream]ProbeFunc),
		timeout: timeout,
	}
}

// AddProbe registers a probe for upstream. Call before the scheduler starts.
func (p *UpstreamHealthChecker) AddProbe(upstream health.Upstream, probe ProbeFunc) {
	p.probes[upstream] = probe
}

// Run probes every registered upstream and records the outcome
func (p *UpstreamHealthChecker) Run(ctx context.Context) error {
	healthy, failed := 0, 0

	for upstream, probe := range p.probes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := probe(probeCtx)
		cancel()

		if err != nil {
			failed++
			p.tracker.MarkFailure(upstream, err.Error())
			log.Printf("[HEALTH-JOB] %s: FAILED (%v)", upstream, err)
			continue
		}
		healthy++
		p.tracker.MarkHealthy(upstream)
	}

	if failed > 0 {
		log.Printf("[HEALTH-JOB] Probes complete: %d healthy, %d failed", healthy, failed)
	}
	return nil
}
