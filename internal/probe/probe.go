// Package probe provides bounded, timed check drivers for HTTP reachability,
// TLS certificate validity, full-browser rendering, and ICMP ping.
package probe

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/pkg/models"
)

// Prober is the contract for all probe drivers. Implementations never return
// an error: probe failures are captured on the result itself.
type Prober interface {
	// Probe performs one bounded check against the monitor's target
	Probe(ctx context.Context, m *models.Monitor) *models.ProbeResult
}

// Timeouts bounds every driver in a registry
type Timeouts struct {
	HTTP            time.Duration
	TLS             time.Duration
	BrowserNav      time.Duration
	BrowserSelector time.Duration
}

// DefaultTimeouts returns the recommended probe bounds
func DefaultTimeouts() Timeouts {
	return Timeouts{
		HTTP:            10 * time.Second,
		TLS:             10 * time.Second,
		BrowserNav:      20 * time.Second,
		BrowserSelector: 10 * time.Second,
	}
}

// Registry dispatches monitors to the driver matching their type
type Registry struct {
	http    Prober
	tls     Prober
	browser Prober
	ping    Prober
}

// NewRegistry creates a registry with one driver per monitor class
func NewRegistry(timeouts Timeouts, warningDays, pingCount int, logger *logging.Logger) *Registry {
	return &Registry{
		http:    NewHTTPProbe(timeouts.HTTP),
		tls:     NewTLSProbe(timeouts.TLS, warningDays),
		browser: NewBrowserProbe(timeouts.BrowserNav, timeouts.BrowserSelector, logger),
		ping:    NewPingProbe(timeouts.HTTP, pingCount),
	}
}

// For returns the driver matching the monitor's type
func (r *Registry) For(m *models.Monitor) (Prober, error) {
	switch m.Type {
	case models.MonitorTypeHTTP, models.MonitorTypeHTTPS:
		return r.http, nil
	case models.MonitorTypePing:
		return r.ping, nil
	case models.MonitorTypeBrowser:
		return r.browser, nil
	case models.MonitorTypeSSL:
		return r.tls, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, m.Type)
	}
}

// TLSProber returns the registry's TLS driver for certificate-class runs
func (r *Registry) TLSProber() Prober {
	return r.tls
}

// SetBrowser replaces the browser driver. Used by tests to avoid spawning
// a real browser process.
func (r *Registry) SetBrowser(p Prober) {
	r.browser = p
}

// SetTLS replaces the TLS driver. Used by tests to avoid live handshakes.
func (r *Registry) SetTLS(p Prober) {
	r.tls = p
}

// failedResult builds a failed ProbeResult from an error
func failedResult(start time.Time, err error) *models.ProbeResult {
	return &models.ProbeResult{
		Up:          false,
		Duration:    time.Since(start),
		FailureKind: Classify(err),
		Error:       err.Error(),
		Timestamp:   time.Now(),
	}
}

// TargetHost extracts the hostname to contact from a monitor's URL. Bare
// hostnames (common for ping monitors) are accepted as-is.
func TargetHost(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidTarget)
	}

	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		if parsed.Hostname() == "" {
			return "", fmt.Errorf("%w: no host in %q", ErrInvalidTarget, raw)
		}
		return parsed.Hostname(), nil
	}

	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host, nil
	}

	return raw, nil
}
