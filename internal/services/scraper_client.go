package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

const pageUserAgent = "Janus-Butler/1.0"

// ErrPrivateAddress is returned when a page host resolves to a non-public address
var ErrPrivateAddress = errors.New("private or loopback address not allowed")

// PageClient is the HTTP client used to fetch captured pages. Every request
// is bounded by the fetch timeout so one unresponsive host cannot stall a batch.
type PageClient struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

// NewPageClient creates a client whose requests time out after timeout.
// Unless allowPrivate is set, connections to private or loopback addresses
// are refused at dial time, after DNS resolution.
func NewPageClient(timeout time.Duration, allowPrivate bool) *PageClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	if !allowPrivate {
		dialer.Control = refusePrivateAddress
	}

	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10, // default is 2
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: timeout,
		DialContext:         dialer.DialContext,
	}

	return &PageClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (max 10)")
				}
				return nil
			},
		},
		userAgent: pageUserAgent,
		timeout:   timeout,
	}
}

// Get performs an HTTP GET bounded by the client timeout
func (c *PageClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")

	return c.httpClient.Do(req)
}

// Timeout returns the per-request deadline
func (c *PageClient) Timeout() time.Duration {
	return c.timeout
}

// refusePrivateAddress runs on the resolved address of every outgoing connection
func refusePrivateAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || isPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}
