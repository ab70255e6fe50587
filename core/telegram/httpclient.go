package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/sam17/fxlifesheet/core/telegram/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshake      = 5 * time.Second
	idleConnTimeout   = 90 * time.Second
	keepAliveInterval = 30 * time.Second

	// getUpdates holds the response open for the whole long-poll window,
	// so the header timeout must outlast it with margin.
	responseHeaderTimeout = 65 * time.Second

	// Covers long polls and photo downloads for image answers.
	clientTimeout = 75 * time.Second

	transportRetries      = 3
	transportRetryBackoff = 2 * time.Second
)

// BuildHTTPClient returns the client shared by all Bot API calls. Transient
// transport errors are retried here; per-message retries live in the sender
// dispatcher.
func BuildHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshake,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: clientTimeout,
		Transport: &retryRoundTripper{
			next:       transport,
			maxRetries: transportRetries,
			backoff:    transportRetryBackoff,
		},
	}
}

type retryRoundTripper struct {
	next       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil {
				// non-replayable body, cannot retry
				return nil, lastErr
			}
		}

		resp, err := next.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
