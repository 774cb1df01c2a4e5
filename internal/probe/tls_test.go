package probe

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/pulseguard/pulseguard/pkg/models"
)

func TestSnapshotFromCertStateBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		notAfter     time.Time
		expectedDays int
		expected     models.SSLState
	}{
		{name: "29 days left", notAfter: now.Add(29 * 24 * time.Hour), expectedDays: 29, expected: models.SSLStateExpiringSoon},
		{name: "30 days left", notAfter: now.Add(30 * 24 * time.Hour), expectedDays: 30, expected: models.SSLStateValid},
		{name: "expired one day ago", notAfter: now.Add(-24 * time.Hour), expectedDays: -1, expected: models.SSLStateExpired},
		{name: "zero days left", notAfter: now, expectedDays: 0, expected: models.SSLStateExpiringSoon},
		{name: "partial day rounds up", notAfter: now.Add(29*24*time.Hour + 12*time.Hour), expectedDays: 30, expected: models.SSLStateValid},
		{name: "expired half day ago", notAfter: now.Add(-12 * time.Hour), expectedDays: 0, expected: models.SSLStateExpiringSoon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{
				NotBefore: now.Add(-time.Hour),
				NotAfter:  tt.notAfter,
				Issuer:    pkix.Name{Organization: []string{"Test CA"}},
			}

			snap := SnapshotFromCert("m1", cert, now, 30)
			if snap.DaysUntilExpiry != tt.expectedDays {
				t.Errorf("expected %d days, got %d", tt.expectedDays, snap.DaysUntilExpiry)
			}
			if snap.State != tt.expected {
				t.Errorf("expected state %s, got %s", tt.expected, snap.State)
			}
			if snap.MonitorID != "m1" {
				t.Errorf("expected monitor id to carry over")
			}
		})
	}
}

func TestSnapshotFromCertIssuer(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		issuer   pkix.Name
		expected string
	}{
		{name: "organization", issuer: pkix.Name{Organization: []string{"Let's Encrypt"}, CommonName: "R3"}, expected: "Let's Encrypt"},
		{name: "common name fallback", issuer: pkix.Name{CommonName: "R3"}, expected: "R3"},
		{name: "unknown", issuer: pkix.Name{}, expected: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{NotAfter: now.Add(90 * 24 * time.Hour), Issuer: tt.issuer}
			snap := SnapshotFromCert("m1", cert, now, 30)
			if snap.IssuerName != tt.expected {
				t.Errorf("expected issuer %q, got %q", tt.expected, snap.IssuerName)
			}
		})
	}
}

// startTLSServer runs a TLS listener presenting a self-signed certificate
// with the given validity window and returns its port.
func startTLSServer(t *testing.T, notBefore, notAfter time.Time) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"PulseGuard Test"}, CommonName: "127.0.0.1"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	tlsCert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{tlsCert}})
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if tc, ok := c.(*tls.Conn); ok {
					_ = tc.Handshake()
				}
			}(conn)
		}
	}()

	_, port, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("failed to parse listener address: %v", err)
	}
	return port
}

func TestTLSProbeValidCertificate(t *testing.T) {
	now := time.Now()
	port := startTLSServer(t, now.Add(-time.Hour), now.Add(90*24*time.Hour))

	p := NewTLSProbe(5*time.Second, 30)
	p.port = port

	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "https://127.0.0.1", Type: models.MonitorTypeSSL})

	if !result.Up {
		t.Fatalf("expected up result, got error %q", result.Error)
	}
	if result.TLS == nil || result.TLS.Snapshot == nil {
		t.Fatalf("expected certificate snapshot")
	}

	snap := result.TLS.Snapshot
	if snap.State != models.SSLStateValid {
		t.Errorf("expected valid state, got %s", snap.State)
	}
	if snap.IssuerName != "PulseGuard Test" {
		t.Errorf("expected issuer from organization, got %q", snap.IssuerName)
	}
	if snap.DaysUntilExpiry < 89 || snap.DaysUntilExpiry > 90 {
		t.Errorf("expected ~90 days until expiry, got %d", snap.DaysUntilExpiry)
	}
}

func TestTLSProbeExpiredCertificate(t *testing.T) {
	now := time.Now()
	port := startTLSServer(t, now.Add(-48*time.Hour), now.Add(-25*time.Hour))

	p := NewTLSProbe(5*time.Second, 30)
	p.port = port

	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "https://127.0.0.1", Type: models.MonitorTypeSSL})

	if result.Up {
		t.Fatalf("expected down result for expired certificate")
	}
	if result.TLS == nil || result.TLS.Snapshot == nil {
		t.Fatalf("expected snapshot even for expired certificate")
	}
	if result.TLS.Snapshot.State != models.SSLStateExpired {
		t.Errorf("expected expired state, got %s", result.TLS.Snapshot.State)
	}
	if result.Error == "" {
		t.Errorf("expected error text for expired certificate")
	}
}

func TestTLSProbeConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(listener.Addr().String())
	listener.Close()

	p := NewTLSProbe(2*time.Second, 30)
	p.port = port

	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "https://127.0.0.1", Type: models.MonitorTypeSSL})

	if result.Up {
		t.Fatalf("expected down result for refused connection")
	}
	if result.TLS != nil {
		t.Fatalf("expected no snapshot on connection failure")
	}
	if result.FailureKind != models.FailureConnectionError {
		t.Fatalf("expected connection error, got %s", result.FailureKind)
	}
}

func TestTLSProbeInvalidTarget(t *testing.T) {
	p := NewTLSProbe(time.Second, 30)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "", Type: models.MonitorTypeSSL})

	if result.Up {
		t.Fatalf("expected down result for empty target")
	}
}
