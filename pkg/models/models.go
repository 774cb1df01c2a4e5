// Package models defines core data structures for monitors, probe results,
// check history, and incidents shared across the engine.
package models

import (
	"time"
)

// MonitorType represents the type of monitor
type MonitorType string

const (
	MonitorTypeHTTP    MonitorType = "http"
	MonitorTypeHTTPS   MonitorType = "https"
	MonitorTypePing    MonitorType = "ping"
	MonitorTypeBrowser MonitorType = "browser"
	MonitorTypeSSL     MonitorType = "ssl"
)

// MonitorStatus represents the current status of a monitor
type MonitorStatus string

const (
	StatusUp      MonitorStatus = "up"
	StatusDown    MonitorStatus = "down"
	StatusUnknown MonitorStatus = "unknown"
)

// SSLState represents the derived state of a monitor's certificate
type SSLState string

const (
	SSLStateValid        SSLState = "valid"
	SSLStateExpiringSoon SSLState = "expiring_soon"
	SSLStateExpired      SSLState = "expired"
	SSLStateInvalid      SSLState = "invalid"
)

// IncidentStatus represents the lifecycle state of an incident
type IncidentStatus string

const (
	IncidentOpen     IncidentStatus = "open"
	IncidentResolved IncidentStatus = "resolved"
)

// IncidentSeverity classifies how serious an incident is
type IncidentSeverity string

const (
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
	SeverityWarning  IncidentSeverity = "warning"
)

// FailureKind categorizes why a probe failed
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureTimeout          FailureKind = "timeout"
	FailureConnectionError  FailureKind = "connection_error"
	FailureProtocolError    FailureKind = "protocol_error"
	FailureNoCertificate    FailureKind = "no_certificate"
	FailureSelectorNotFound FailureKind = "selector_not_found"
	FailureSkippedInactive  FailureKind = "skipped_inactive"
)

// BrowserCheckConfig configures full-browser rendering checks for a monitor.
// SelectorWait overrides the probe's default selector wait when positive.
type BrowserCheckConfig struct {
	Enabled         bool     `yaml:"enabled" json:"enabled"`
	WaitForSelector string   `yaml:"waitForSelector,omitempty" json:"waitForSelector,omitempty"`
	SelectorWait    Duration `yaml:"selectorWait,omitempty" json:"selectorWait,omitempty"`
}

// SSLInfo holds the certificate fields stored on a monitor
type SSLInfo struct {
	Status          SSLState   `yaml:"status,omitempty" json:"status,omitempty"`
	ExpiryDate      *time.Time `yaml:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	Issuer          string     `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	DaysUntilExpiry int        `yaml:"daysUntilExpiry,omitempty" json:"daysUntilExpiry,omitempty"`
}

// Monitor represents a single monitoring target. Records are created by an
// external configuration layer; the engine only mutates the status fields
// after each check and never deletes a monitor.
type Monitor struct {
	ID                  string              `yaml:"id" json:"id"`
	OwnerID             string              `yaml:"ownerId,omitempty" json:"ownerId,omitempty"`
	Name                string              `yaml:"name" json:"name"`
	URL                 string              `yaml:"url" json:"url"`
	Type                MonitorType         `yaml:"type" json:"type"`
	IsActive            bool                `yaml:"isActive" json:"isActive"`
	BrowserCheck        *BrowserCheckConfig `yaml:"browserCheck,omitempty" json:"browserCheck,omitempty"`
	CurrentStatus       MonitorStatus       `yaml:"currentStatus,omitempty" json:"currentStatus"`
	ConsecutiveFailures int                 `yaml:"consecutiveFailures,omitempty" json:"consecutiveFailures"`
	LastUp              *time.Time          `yaml:"lastUp,omitempty" json:"lastUp,omitempty"`
	LastDown            *time.Time          `yaml:"lastDown,omitempty" json:"lastDown,omitempty"`
	LastCheckedAt       *time.Time          `yaml:"lastCheckedAt,omitempty" json:"lastCheckedAt,omitempty"`
	SSL                 *SSLInfo            `yaml:"ssl,omitempty" json:"ssl,omitempty"`
	UpdatedAt           time.Time           `yaml:"updatedAt,omitempty" json:"updatedAt"`
}

// BrowserCheckEnabled reports whether the monitor has browser checks turned on
func (m *Monitor) BrowserCheckEnabled() bool {
	return m.BrowserCheck != nil && m.BrowserCheck.Enabled
}

// DisplayName returns the monitor name, falling back to its URL
func (m *Monitor) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.URL
}

// CheckResult is one immutable record of a single probe execution
type CheckResult struct {
	ID             string    `json:"id"`
	MonitorID      string    `json:"monitorId"`
	OwnerID        string    `json:"ownerId,omitempty"`
	Status         bool      `json:"status"`
	ResponseTimeMs *int64    `json:"responseTimeMs,omitempty"`
	HTTPStatusCode *int      `json:"httpStatusCode,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SSLCertificateSnapshot is the result of a TLS probe against a monitor
type SSLCertificateSnapshot struct {
	MonitorID       string    `json:"monitorId"`
	ValidFrom       time.Time `json:"validFrom"`
	ValidTo         time.Time `json:"validTo"`
	IssuerName      string    `json:"issuerName"`
	DaysUntilExpiry int       `json:"daysUntilExpiry"`
	State           SSLState  `json:"state"`
	CheckedAt       time.Time `json:"checkedAt"`
}

// SSLAlert records the first transition of a monitor's certificate into an
// alertable state. Repeated checks in the same state do not create new alerts.
type SSLAlert struct {
	ID        string    `json:"id"`
	MonitorID string    `json:"monitorId"`
	State     SSLState  `json:"state"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Incident is an open-or-resolved record of monitor unavailability.
// For a given monitor at most one open incident exists at any time.
type Incident struct {
	ID          string           `json:"id"`
	MonitorID   string           `json:"monitorId"`
	OwnerID     string           `json:"ownerId,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Severity    IncidentSeverity `json:"severity"`
	Status      IncidentStatus   `json:"status"`
	StartTime   time.Time        `json:"startTime"`
	ResolvedAt  *time.Time       `json:"resolvedAt,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ProbeResult is the normalized outcome of one bounded, timed check
type ProbeResult struct {
	Up          bool          `json:"up"`
	Duration    time.Duration `json:"duration"`
	FailureKind FailureKind   `json:"failure_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`

	// Type-specific result data
	HTTP    *HTTPProbeData    `json:"http,omitempty"`
	TLS     *TLSProbeData     `json:"tls,omitempty"`
	Browser *BrowserProbeData `json:"browser,omitempty"`
	Ping    *PingProbeData    `json:"ping,omitempty"`
}

// ResponseTimeMs returns the probe latency in whole milliseconds
func (r *ProbeResult) ResponseTimeMs() int64 {
	return r.Duration.Milliseconds()
}

// HTTPProbeData contains HTTP-specific probe results
type HTTPProbeData struct {
	StatusCode int `json:"status_code"`
}

// TLSProbeData contains TLS-specific probe results
type TLSProbeData struct {
	Snapshot *SSLCertificateSnapshot `json:"snapshot,omitempty"`
}

// BrowserProbeData contains browser-specific probe results
type BrowserProbeData struct {
	StatusCode    int           `json:"status_code"`
	NavTime       time.Duration `json:"nav_time"`
	DOMReadyMs    int64         `json:"dom_ready_ms,omitempty"`
	SelectorFound bool          `json:"selector_found"`
}

// PingProbeData contains ICMP ping probe results
type PingProbeData struct {
	PacketsSent     int           `json:"packets_sent"`
	PacketsReceived int           `json:"packets_received"`
	PacketLoss      float64       `json:"packet_loss"`
	AvgRTT          time.Duration `json:"avg_rtt"`
}

// CheckOutcome is the verdict of evaluating one monitor once. The incident
// manager and the result store both act on the same outcome so the monitor
// status write and the incident update cannot diverge.
type CheckOutcome struct {
	Monitor     *Monitor      `json:"monitor"`
	Up          bool          `json:"up"`
	Skipped     bool          `json:"skipped"`
	PriorStatus MonitorStatus `json:"prior_status"`
	Result      *ProbeResult  `json:"result,omitempty"`
	CheckedAt   time.Time     `json:"checked_at"`
}

// ToCheckResult converts the outcome into an append-only history record.
// Skipped checks produce no history and return nil.
func (o *CheckOutcome) ToCheckResult(id string) *CheckResult {
	if o.Skipped {
		return nil
	}

	cr := &CheckResult{
		ID:        id,
		MonitorID: o.Monitor.ID,
		OwnerID:   o.Monitor.OwnerID,
		Status:    o.Up,
		CreatedAt: o.CheckedAt,
	}

	if o.Result != nil {
		ms := o.Result.ResponseTimeMs()
		cr.ResponseTimeMs = &ms
		cr.ErrorMessage = o.Result.Error
		if o.Result.HTTP != nil && o.Result.HTTP.StatusCode != 0 {
			code := o.Result.HTTP.StatusCode
			cr.HTTPStatusCode = &code
		}
		if o.Result.Browser != nil && o.Result.Browser.StatusCode != 0 {
			code := o.Result.Browser.StatusCode
			cr.HTTPStatusCode = &code
		}
	}

	return cr
}

// UptimeStats represents aggregated check history over a time window
type UptimeStats struct {
	MonitorID     string        `json:"monitor_id"`
	WindowStart   time.Time     `json:"window_start"`
	WindowEnd     time.Time     `json:"window_end"`
	TotalChecks   int           `json:"total_checks"`
	UpChecks      int           `json:"up_checks"`
	DownChecks    int           `json:"down_checks"`
	UptimePercent float64       `json:"uptime_percent"`
	AvgResponse   time.Duration `json:"avg_response"`
}
