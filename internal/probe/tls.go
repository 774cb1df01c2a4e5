package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/pulseguard/pulseguard/pkg/models"
)

// TLSProbe opens a raw TLS connection, reads the peer's leaf certificate, and
// derives an expiry-based state. No chain validation is attempted beyond
// presence and expiry.
type TLSProbe struct {
	timeout     time.Duration
	warningDays int
	port        string
}

// NewTLSProbe creates a TLS probe with a bounded connection timeout
func NewTLSProbe(timeout time.Duration, warningDays int) *TLSProbe {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if warningDays <= 0 {
		warningDays = 30
	}

	return &TLSProbe{timeout: timeout, warningDays: warningDays, port: "443"}
}

// Probe performs the TLS check against host:443
func (t *TLSProbe) Probe(ctx context.Context, m *models.Monitor) *models.ProbeResult {
	start := time.Now()

	host, err := TargetHost(m.URL)
	if err != nil {
		return failedResult(start, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.timeout},
		Config: &tls.Config{
			ServerName: host,
			// Expired or otherwise untrusted certificates must still be
			// readable; expiry is judged from the handshake data itself.
			InsecureSkipVerify: true,
		},
	}

	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(host, t.port))
	if err != nil {
		return failedResult(start, err)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return failedResult(start, fmt.Errorf("%w: non-TLS connection", ErrConnectionFailed))
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return failedResult(start, fmt.Errorf("%w from %s", ErrNoCertificate, host))
	}

	snapshot := SnapshotFromCert(m.ID, certs[0], time.Now(), t.warningDays)

	result := &models.ProbeResult{
		Duration:  time.Since(start),
		Timestamp: time.Now(),
		TLS:       &models.TLSProbeData{Snapshot: snapshot},
	}

	switch snapshot.State {
	case models.SSLStateExpired:
		result.Up = false
		result.FailureKind = models.FailureProtocolError
		result.Error = fmt.Sprintf("certificate expired %d days ago", -snapshot.DaysUntilExpiry)
	default:
		result.Up = true
	}

	return result
}

// SnapshotFromCert derives a certificate snapshot from a leaf certificate.
// daysUntilExpiry is the ceiling of the remaining lifetime in days, so a
// certificate expiring in 29.5 days reports 30.
func SnapshotFromCert(monitorID string, cert *x509.Certificate, now time.Time, warningDays int) *models.SSLCertificateSnapshot {
	remaining := cert.NotAfter.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}

	state := models.SSLStateValid
	switch {
	case days < 0:
		state = models.SSLStateExpired
	case days < warningDays:
		state = models.SSLStateExpiringSoon
	}

	return &models.SSLCertificateSnapshot{
		MonitorID:       monitorID,
		ValidFrom:       cert.NotBefore,
		ValidTo:         cert.NotAfter,
		IssuerName:      issuerName(cert),
		DaysUntilExpiry: days,
		State:           state,
		CheckedAt:       now,
	}
}

func issuerName(cert *x509.Certificate) string {
	if len(cert.Issuer.Organization) > 0 && cert.Issuer.Organization[0] != "" {
		return cert.Issuer.Organization[0]
	}
	if cert.Issuer.CommonName != "" {
		return cert.Issuer.CommonName
	}
	return "Unknown"
}
