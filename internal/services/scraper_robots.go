package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	defaultCrawlDelay = 1 * time.Second
	maxCrawlDelay     = 10 * time.Second
)

// RobotsChecker fetches and caches robots.txt per origin
type RobotsChecker struct {
	cache     *cache.Cache
	userAgent string
	client    *PageClient
}

// NewRobotsChecker creates a robots.txt checker sharing the page client
func NewRobotsChecker(client *PageClient) *RobotsChecker {
	return &RobotsChecker{
		cache:     cache.New(24*time.Hour, 1*time.Hour),
		userAgent: client.userAgent,
		client:    client,
	}
}

// CanFetch reports whether pageURL may be fetched and the crawl delay to honour.
// A missing or unreadable robots.txt allows the fetch.
func (rc *RobotsChecker) CanFetch(ctx context.Context, pageURL *url.URL) (bool, time.Duration, error) {
	origin := pageURL.Scheme + "://" + pageURL.Host

	robots, err := rc.load(ctx, origin)
	if err != nil {
		return false, 0, err
	}
	if robots == nil {
		return true, defaultCrawlDelay, nil
	}

	group := robots.FindGroup(rc.userAgent)
	return group.Test(pageURL.Path), crawlDelayOf(group), nil
}

// load returns nil robots data when the origin publishes none
func (rc *RobotsChecker) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	if cached, found := rc.cache.Get(origin); found {
		robots, _ := cached.(*robotstxt.RobotsData)
		return robots, nil
	}

	resp, err := rc.client.Get(ctx, origin+"/robots.txt")
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("robots.txt lookup cancelled: %w", ctx.Err())
		}
		// Unreachable robots.txt is not a reason to refuse the page
		return nil, nil
	}
	defer resp.Body.Close()

	var robots *robotstxt.RobotsData
	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
		if err == nil {
			robots, _ = robotstxt.FromBytes(body)
		}
	}

	rc.cache.Set(origin, robots, cache.DefaultExpiration)
	return robots, nil
}

func crawlDelayOf(group *robotstxt.Group) time.Duration {
	if group == nil || group.CrawlDelay <= 0 {
		return defaultCrawlDelay
	}
	if group.CrawlDelay > maxCrawlDelay {
		return maxCrawlDelay
	}
	return group.CrawlDelay
}
