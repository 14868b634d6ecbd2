// Package crawler resolves a media listing page into the set of direct
// download links for its episodes: it derives the site's info API, enumerates
// episode identifiers under a bounded number of in-flight requests, and
// extracts the final link from each intermediate embed page.
package crawler

import (
	"context"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/alvarorichard/aniworld/internal/util"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	// maxFetchAttempts bounds retries for one API or embed-page request.
	maxFetchAttempts = 4

	// requestsPerSecond paces outbound requests per client so a wide worker
	// cap cannot turn into a request flood against a single origin.
	requestsPerSecond = 20
)

// ErrResolution marks a fatal resolution failure: the run cannot proceed.
var ErrResolution = errors.New("resolution failed")

// errAttemptsExhausted reports that every retry attempt failed with a
// transient error. Callers treat the affected slot as absent, not fatal.
var errAttemptsExhausted = errors.New("retry attempts exhausted")

// Client bundles what the crawler needs to talk to one site: a pooled HTTP
// client, the configured header set and a request pacer.
type Client struct {
	http    *http.Client
	headers map[string]string
	limiter *rate.Limiter

	// backoff is swapped out in tests to avoid real sleeps.
	backoff func(attempt int) time.Duration
}

// NewClient creates a crawler client. The headers are attached verbatim to
// every outbound request.
func NewClient(httpClient *http.Client, headers map[string]string) *Client {
	return &Client{
		http:    httpClient,
		headers: headers,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		backoff: resolveBackoff,
	}
}

// resolveBackoff grows exponentially: 2^attempt seconds plus up to two
// seconds of jitter, mirroring how quickly short API exchanges recover.
func resolveBackoff(attempt int) time.Duration {
	jitter := time.Duration(rand.Float64() * 2 * float64(time.Second))
	return time.Duration(math.Pow(2, float64(attempt)))*time.Second + jitter
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	return c.http.Do(req)
}

// getWithRetries issues a GET and retries transient failures (timeouts and
// non-2xx statuses) with exponential backoff. Non-transient transport errors
// such as an unreachable host surface immediately; exhausted retries return
// errAttemptsExhausted.
func (c *Client) getWithRetries(ctx context.Context, rawURL string, query url.Values) (*http.Response, error) {
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		resp, err := c.get(ctx, rawURL, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !isTimeout(err) {
				return nil, err
			}
			util.Debugf("request timed out (attempt %d/%d): %s", attempt+1, maxFetchAttempts, rawURL)
		} else {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			util.Debugf("server returned %s (attempt %d/%d): %s", resp.Status, attempt+1, maxFetchAttempts, rawURL)
			_ = resp.Body.Close()
		}

		if attempt < maxFetchAttempts-1 {
			if err := sleepContext(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, errors.Wrap(errAttemptsExhausted, rawURL)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleepContext waits for the backoff delay or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
