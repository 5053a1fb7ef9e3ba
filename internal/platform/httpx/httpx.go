package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 10 * time.Second
)

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "http " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// Policy retries an HTTP call with exponential, jittered backoff. Retry-After
// on the failed response takes precedence over the computed backoff.
type Policy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
	// Sleep defaults to the package Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Attempt performs one try. The response, when non-nil, is only read for its
// headers.
type Attempt func(ctx context.Context) (*http.Response, error)

func (p Policy) Do(ctx context.Context, attempt Attempt) error {
	backoff := p.BaseBackoff
	if backoff <= 0 {
		backoff = DefaultBaseBackoff
	}
	maxWait := p.MaxBackoff
	if maxWait <= 0 {
		maxWait = DefaultMaxBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := attempt(ctx)
		if err == nil {
			return nil
		}
		if n >= p.MaxRetries || !IsRetryable(err) {
			return err
		}
		wait := jitter(retryAfter(resp, backoff, maxWait))
		if p.OnRetry != nil {
			p.OnRetry(n+1, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		if backoff *= 2; backoff > maxWait {
			backoff = maxWait
		}
	}
}

// IsRetryable reports whether err is worth another attempt: network timeouts,
// 408, 429 and 5xx. A canceled or expired context never is.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusRequestTimeout ||
			se.StatusCode == http.StatusTooManyRequests ||
			(se.StatusCode >= 500 && se.StatusCode <= 599)
	}
	return false
}

func retryAfter(resp *http.Response, fallback, max time.Duration) time.Duration {
	d := fallback
	if resp != nil {
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			d = time.Duration(secs) * time.Second
		}
	}
	if d > max {
		d = max
	}
	return d
}

// jitter spreads d by ±20%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := float64(d) * 0.2
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}

// Sleep waits for d or until ctx is done, whichever happens first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
