package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/net/http2"

	"github.com/shortontech/edgeprobe/internal/detection"
)

// ErrChallenge is returned when the edge answered with a security challenge
// instead of the page.
var ErrChallenge = errors.New("security challenge intercepted the request")

// Fetcher obtains response headers for a target
type Fetcher interface {
	Head(ctx context.Context, target string) (detection.HeaderSet, error)
}

// HTTPFetcher issues HEAD requests over HTTP/1.1 or HTTP/2
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with a per-request timeout
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if _, err := http2.ConfigureTransports(transport); err != nil {
		log.Printf("probe: http2 unavailable, using http/1.1: %v", err)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: userAgent,
	}
}

// Head requests target and returns its response headers. Any HTTP status is
// accepted; only transport failures and challenges are errors.
func (f *HTTPFetcher) Head(ctx context.Context, target string) (detection.HeaderSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	// forward the caller's trace, if any, so edge logs can be correlated
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	if isChallenge(resp) {
		return nil, fmt.Errorf("HEAD %s returned %d: %w", target, resp.StatusCode, ErrChallenge)
	}
	return detection.NewHeaderSet(resp.Header), nil
}

func isChallenge(resp *http.Response) bool {
	return strings.EqualFold(resp.Header.Get("cf-mitigated"), "challenge")
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, target string) (detection.HeaderSet, error)

func (f FetcherFunc) Head(ctx context.Context, target string) (detection.HeaderSet, error) {
	return f(ctx, target)
}
