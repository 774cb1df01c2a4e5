package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulseguard/pulseguard/pkg/models"
)

func TestHTTPProbeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "PulseGuard/1.0" {
			t.Errorf("expected User-Agent header to be set")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	p := NewHTTPProbe(5 * time.Second)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: server.URL, Type: models.MonitorTypeHTTP})

	if !result.Up {
		t.Fatalf("expected up result, got error %q", result.Error)
	}
	if result.HTTP == nil || result.HTTP.StatusCode != 200 {
		t.Fatalf("expected status code 200, got %+v", result.HTTP)
	}
	if result.Duration == 0 {
		t.Fatalf("expected non-zero duration")
	}
	if result.FailureKind != models.FailureNone {
		t.Fatalf("expected no failure kind, got %s", result.FailureKind)
	}
}

func TestHTTPProbeRedirectCountsAsUp(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	p := NewHTTPProbe(5 * time.Second)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: redirecting.URL, Type: models.MonitorTypeHTTP})

	if !result.Up {
		t.Fatalf("expected redirect to resolve to up, got error %q", result.Error)
	}
}

func TestHTTPProbeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPProbe(5 * time.Second)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: server.URL, Type: models.MonitorTypeHTTP})

	if result.Up {
		t.Fatalf("expected down result for 500 response")
	}
	if result.FailureKind != models.FailureProtocolError {
		t.Fatalf("expected protocol error, got %s", result.FailureKind)
	}
	if result.HTTP == nil || result.HTTP.StatusCode != 500 {
		t.Fatalf("expected status code 500 to be captured, got %+v", result.HTTP)
	}
}

func TestHTTPProbeConnectionRefused(t *testing.T) {
	// Bind a port and close it so nothing is listening
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := NewHTTPProbe(2 * time.Second)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: url, Type: models.MonitorTypeHTTP})

	if result.Up {
		t.Fatalf("expected down result for refused connection")
	}
	if result.FailureKind != models.FailureConnectionError {
		t.Fatalf("expected connection error, got %s", result.FailureKind)
	}
	if result.Error == "" {
		t.Fatalf("expected error text to be captured")
	}
}

func TestHTTPProbeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	p := NewHTTPProbe(100 * time.Millisecond)
	start := time.Now()
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: server.URL, Type: models.MonitorTypeHTTP})
	elapsed := time.Since(start)

	if result.Up {
		t.Fatalf("expected down result for timed-out request")
	}
	if result.FailureKind != models.FailureTimeout {
		t.Fatalf("expected timeout failure, got %s (%s)", result.FailureKind, result.Error)
	}
	if elapsed > time.Second {
		t.Fatalf("probe did not respect its bound, took %v", elapsed)
	}
}

func TestHTTPProbeInvalidURL(t *testing.T) {
	p := NewHTTPProbe(time.Second)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "http://exa mple.com", Type: models.MonitorTypeHTTP})

	if result.Up {
		t.Fatalf("expected down result for malformed URL")
	}
	if result.Error == "" {
		t.Fatalf("expected error text for malformed URL")
	}
}
