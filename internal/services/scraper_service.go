package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const (
	defaultMaxBodySize   = 5 * 1024 * 1024 // 5MB
	defaultMaxConcurrent = 8
	defaultGlobalRate    = 10.0 // requests per second
)

// ErrPageBlocked is returned when robots.txt disallows the page
var ErrPageBlocked = errors.New("access blocked by robots.txt")

// PageFetcherOptions configures a PageFetcher
type PageFetcherOptions struct {
	Timeout           time.Duration
	MaxChars          int
	Extractor         ContentExtractor
	AllowPrivateHosts bool // only for tests against local servers
	RespectRobots     bool
}

// PageFetcher downloads a captured URL and reduces it to bounded plain text
type PageFetcher struct {
	client       *PageClient
	throttle     *FetchThrottle
	robots       *RobotsChecker
	slots        *FetchSlots
	contentCache *cache.Cache
	extractor    ContentExtractor
	maxChars     int
	allowPrivate bool
}

// NewPageFetcher creates a fetcher from opts
func NewPageFetcher(opts PageFetcherOptions) *PageFetcher {
	client := NewPageClient(opts.Timeout, opts.AllowPrivateHosts)
	extractor := opts.Extractor
	if extractor == nil {
		extractor = MarkupExtractor{}
	}

	f := &PageFetcher{
		client:       client,
		throttle:     NewFetchThrottle(defaultGlobalRate),
		slots:        NewFetchSlots(defaultMaxConcurrent, defaultMaxBodySize),
		contentCache: cache.New(1*time.Hour, 10*time.Minute),
		extractor:    extractor,
		maxChars:     opts.MaxChars,
		allowPrivate: opts.AllowPrivateHosts,
	}
	if opts.RespectRobots {
		f.robots = NewRobotsChecker(client)
	}

	log.Printf("✅ [SCRAPER] Page fetcher initialized: timeout=%s, max_chars=%d, robots=%v",
		client.Timeout(), opts.MaxChars, opts.RespectRobots)
	return f
}

// FetchText returns the extracted text of rawURL truncated to the configured
// character budget. The robots.txt lookup and the page fetch share one fetch
// timeout; waiting for the throttle or a fetch slot is bounded only by ctx.
func (f *PageFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	startTime := time.Now()

	pageURL, err := f.validateURL(rawURL)
	if err != nil {
		return "", err
	}
	pageKey := pageURL.String()

	if cached, found := f.contentCache.Get(pageKey); found {
		return cached.(string), nil
	}

	budget := f.client.Timeout()
	crawlDelay := defaultCrawlDelay
	if f.robots != nil {
		robotsStart := time.Now()
		robotsCtx, cancel := context.WithTimeout(ctx, budget)
		allowed, delay, err := f.robots.CanFetch(robotsCtx, pageURL)
		cancel()
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", fmt.Errorf("%w: %s", ErrPageBlocked, pageKey)
		}
		crawlDelay = delay

		budget -= time.Since(robotsStart)
		if budget <= 0 {
			return "", fmt.Errorf("robots.txt lookup for %s used the fetch timeout: %w", pageURL.Host, context.DeadlineExceeded)
		}
	}

	if err := f.throttle.Wait(ctx, pageURL.Host, crawlDelay); err != nil {
		return "", fmt.Errorf("rate limit wait aborted: %w", err)
	}

	if err := f.slots.Acquire(ctx); err != nil {
		return "", err
	}
	defer f.slots.Release()

	fetchCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	resp, err := f.client.Get(fetchCtx, pageKey)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP error %d fetching %s", resp.StatusCode, pageKey)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isSupportedContentType(contentType) {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	body, err := f.slots.ReadBody(resp.Body)
	if err != nil {
		return "", err
	}

	var text string
	if strings.Contains(strings.ToLower(contentType), "text/plain") {
		text = collapseWhitespace(string(body))
	} else {
		text, err = f.extractor.Extract(body, pageURL)
		if err != nil {
			return "", err
		}
	}
	if text == "" {
		return "", fmt.Errorf("no content extracted from %s", pageKey)
	}

	text = truncateRunes(text, f.maxChars)
	f.contentCache.Set(pageKey, text, cache.DefaultExpiration)

	log.Printf("✅ [SCRAPER] Fetched %s (latency: %dms, length: %d chars)",
		pageKey, time.Since(startTime).Milliseconds(), len([]rune(text)))
	return text, nil
}

// validateURL rejects non-HTTP schemes and, unless allowed, private hosts
func (f *PageFetcher) validateURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("only HTTP/HTTPS URLs are supported, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("URL has no host: %s", rawURL)
	}
	if !f.allowPrivate && isPrivateHost(parsed.Hostname()) {
		return nil, fmt.Errorf("private or loopback hosts are not allowed: %s", parsed.Hostname())
	}
	return parsed, nil
}

func isPrivateHost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && isPrivateIP(ip)
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

func isSupportedContentType(contentType string) bool {
	// Servers that omit the header are given the benefit of the doubt
	if contentType == "" {
		return true
	}
	contentType = strings.ToLower(contentType)
	for _, ct := range []string{"text/html", "text/plain", "application/xhtml+xml"} {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// isTimeout reports whether err came from a deadline rather than the remote page
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}
