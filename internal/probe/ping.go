package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/pulseguard/pulseguard/pkg/models"
)

type pinger interface {
	RunWithContext(ctx context.Context) error
	SetCount(int)
	SetTimeout(time.Duration)
	Statistics() *probing.Statistics
}

type probingPinger struct {
	*probing.Pinger
}

func (p *probingPinger) SetCount(count int) {
	p.Pinger.Count = count
}

func (p *probingPinger) SetTimeout(timeout time.Duration) {
	p.Pinger.Timeout = timeout
}

func defaultPingerFactory(target string) (pinger, error) {
	p, err := probing.NewPinger(target)
	if err != nil {
		return nil, err
	}
	return &probingPinger{Pinger: p}, nil
}

// PingProbe performs real ICMP echo checks. This replaces the HTTP-GET
// stand-in used historically for "ping" monitors: a ping monitor now tests
// ICMP reachability of the host, not HTTP availability.
type PingProbe struct {
	timeout   time.Duration
	count     int
	newPinger func(string) (pinger, error)
}

// NewPingProbe creates an ICMP ping probe
func NewPingProbe(timeout time.Duration, count int) *PingProbe {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if count <= 0 {
		count = 3
	}

	return &PingProbe{
		timeout:   timeout,
		count:     count,
		newPinger: defaultPingerFactory,
	}
}

// Probe performs the ping check. More than 50% packet loss counts as down.
func (p *PingProbe) Probe(ctx context.Context, m *models.Monitor) *models.ProbeResult {
	start := time.Now()

	host, err := TargetHost(m.URL)
	if err != nil {
		return failedResult(start, err)
	}

	pg, err := p.newPinger(host)
	if err != nil {
		return failedResult(start, fmt.Errorf("%w: %v", ErrConnectionFailed, err))
	}
	pg.SetCount(p.count)
	pg.SetTimeout(p.timeout)

	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := pg.RunWithContext(pingCtx); err != nil {
		return failedResult(start, err)
	}

	stats := pg.Statistics()
	data := &models.PingProbeData{
		PacketsSent:     stats.PacketsSent,
		PacketsReceived: stats.PacketsRecv,
		PacketLoss:      stats.PacketLoss,
		AvgRTT:          stats.AvgRtt,
	}

	result := &models.ProbeResult{
		Duration:  time.Since(start),
		Timestamp: time.Now(),
		Ping:      data,
	}

	switch {
	case stats.PacketLoss >= 100.0:
		result.Up = false
		result.FailureKind = models.FailureConnectionError
		result.Error = "100% packet loss"
	case stats.PacketLoss >= 50.0:
		result.Up = false
		result.FailureKind = models.FailureConnectionError
		result.Error = fmt.Sprintf("high packet loss: %.1f%%", stats.PacketLoss)
	default:
		result.Up = true
	}

	return result
}
