package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/pulseguard/pulseguard/pkg/models"
)

type stubPinger struct {
	stats   *probing.Statistics
	runErr  error
	count   int
	timeout time.Duration
}

func (s *stubPinger) RunWithContext(ctx context.Context) error { return s.runErr }
func (s *stubPinger) SetCount(count int)                       { s.count = count }
func (s *stubPinger) SetTimeout(timeout time.Duration)         { s.timeout = timeout }
func (s *stubPinger) Statistics() *probing.Statistics          { return s.stats }

func newStubbedPingProbe(stub *stubPinger, factoryErr error) *PingProbe {
	p := NewPingProbe(2*time.Second, 3)
	p.newPinger = func(target string) (pinger, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return stub, nil
	}
	return p
}

func TestPingProbeSuccess(t *testing.T) {
	stub := &stubPinger{
		stats: &probing.Statistics{
			PacketsSent: 3,
			PacketsRecv: 3,
			PacketLoss:  0,
			AvgRtt:      12 * time.Millisecond,
		},
	}

	p := newStubbedPingProbe(stub, nil)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "example.com", Type: models.MonitorTypePing})

	if !result.Up {
		t.Fatalf("expected up result, got error %q", result.Error)
	}
	if result.Ping == nil || result.Ping.PacketsReceived != 3 {
		t.Fatalf("expected ping data to be captured, got %+v", result.Ping)
	}
	if stub.count != 3 {
		t.Fatalf("expected packet count 3, got %d", stub.count)
	}
	if stub.timeout != 2*time.Second {
		t.Fatalf("expected timeout to be applied, got %v", stub.timeout)
	}
}

func TestPingProbeTotalLoss(t *testing.T) {
	stub := &stubPinger{
		stats: &probing.Statistics{PacketsSent: 3, PacketsRecv: 0, PacketLoss: 100},
	}

	p := newStubbedPingProbe(stub, nil)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "example.com", Type: models.MonitorTypePing})

	if result.Up {
		t.Fatalf("expected down result for total packet loss")
	}
	if result.FailureKind != models.FailureConnectionError {
		t.Fatalf("expected connection error, got %s", result.FailureKind)
	}
}

func TestPingProbeHighLoss(t *testing.T) {
	stub := &stubPinger{
		stats: &probing.Statistics{PacketsSent: 4, PacketsRecv: 2, PacketLoss: 50},
	}

	p := newStubbedPingProbe(stub, nil)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "example.com", Type: models.MonitorTypePing})

	if result.Up {
		t.Fatalf("expected down result for 50%% packet loss")
	}
}

func TestPingProbeModerateLossStaysUp(t *testing.T) {
	stub := &stubPinger{
		stats: &probing.Statistics{PacketsSent: 3, PacketsRecv: 2, PacketLoss: 33.3, AvgRtt: 40 * time.Millisecond},
	}

	p := newStubbedPingProbe(stub, nil)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "example.com", Type: models.MonitorTypePing})

	if !result.Up {
		t.Fatalf("expected up result for moderate loss, got error %q", result.Error)
	}
}

func TestPingProbeResolveFailure(t *testing.T) {
	p := newStubbedPingProbe(nil, errors.New("lookup failed"))
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "nope.invalid", Type: models.MonitorTypePing})

	if result.Up {
		t.Fatalf("expected down result for resolve failure")
	}
	if result.FailureKind != models.FailureConnectionError {
		t.Fatalf("expected connection error, got %s", result.FailureKind)
	}
}

func TestPingProbeRunError(t *testing.T) {
	stub := &stubPinger{runErr: context.DeadlineExceeded}

	p := newStubbedPingProbe(stub, nil)
	result := p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "example.com", Type: models.MonitorTypePing})

	if result.Up {
		t.Fatalf("expected down result for run error")
	}
	if result.FailureKind != models.FailureTimeout {
		t.Fatalf("expected timeout failure, got %s", result.FailureKind)
	}
}

func TestPingProbeHostFromURL(t *testing.T) {
	stub := &stubPinger{
		stats: &probing.Statistics{PacketsSent: 3, PacketsRecv: 3, PacketLoss: 0},
	}

	p := NewPingProbe(time.Second, 3)
	var target string
	p.newPinger = func(host string) (pinger, error) {
		target = host
		return stub, nil
	}

	p.Probe(context.Background(), &models.Monitor{ID: "m1", URL: "https://example.com/health", Type: models.MonitorTypePing})

	if target != "example.com" {
		t.Fatalf("expected bare host to be pinged, got %q", target)
	}
}
