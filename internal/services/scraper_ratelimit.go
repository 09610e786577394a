package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FetchThrottle applies two tiers of rate limiting to page fetches: a global
// budget for this process and a per-domain budget derived from crawl-delay.
type FetchThrottle struct {
	global    *rate.Limiter
	perDomain sync.Map // map[string]*rate.Limiter
}

// NewFetchThrottle creates a throttle allowing globalRate requests per second overall
func NewFetchThrottle(globalRate float64) *FetchThrottle {
	burst := int(globalRate * 2)
	if burst < 1 {
		burst = 1
	}
	return &FetchThrottle{
		global: rate.NewLimiter(rate.Limit(globalRate), burst),
	}
}

// Wait blocks until both tiers admit a request to domain
func (ft *FetchThrottle) Wait(ctx context.Context, domain string, crawlDelay time.Duration) error {
	if err := ft.global.Wait(ctx); err != nil {
		return err
	}
	return ft.domainLimiter(domain, crawlDelay).Wait(ctx)
}

// domainLimiter is created on first use; later crawl-delay values for the same domain are ignored
func (ft *FetchThrottle) domainLimiter(domain string, crawlDelay time.Duration) *rate.Limiter {
	if limiter, ok := ft.perDomain.Load(domain); ok {
		return limiter.(*rate.Limiter)
	}

	perSecond := 5.0
	if crawlDelay > 0 {
		perSecond = 1.0 / crawlDelay.Seconds()
	}
	if perSecond > 5.0 {
		perSecond = 5.0
	}
	if perSecond < 0.1 {
		perSecond = 0.1
	}

	actual, _ := ft.perDomain.LoadOrStore(domain, rate.NewLimiter(rate.Limit(perSecond), 1))
	return actual.(*rate.Limiter)
}
