package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/pulseguard/pulseguard/pkg/models"
)

// HTTPProbe issues a single GET request and judges the monitor up when the
// response status is below 400.
type HTTPProbe struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProbe creates an HTTP probe with a bounded total timeout
func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
			MaxIdleConns:      10,
			IdleConnTimeout:   30 * time.Second,
			DisableKeepAlives: false,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Allow up to 5 redirects
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPProbe{client: client, timeout: timeout}
}

// Probe performs the HTTP check. Latency is measured from request start to
// response headers; on failure it reflects elapsed time up to the failure.
func (h *HTTPProbe) Probe(ctx context.Context, m *models.Monitor) *models.ProbeResult {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.URL, nil)
	if err != nil {
		return failedResult(start, fmt.Errorf("%w: %v", ErrInvalidTarget, err))
	}
	req.Header.Set("User-Agent", "PulseGuard/1.0")

	resp, err := h.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		result := failedResult(start, err)
		result.Duration = duration
		return result
	}
	defer resp.Body.Close()

	result := &models.ProbeResult{
		Duration:  duration,
		Timestamp: time.Now(),
		HTTP:      &models.HTTPProbeData{StatusCode: resp.StatusCode},
	}

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{Code: resp.StatusCode}
		result.Up = false
		result.FailureKind = models.FailureProtocolError
		result.Error = statusErr.Error()
		return result
	}

	result.Up = true
	return result
}
