package probe

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pulseguard/pulseguard/pkg/models"
)

// Sentinel errors for common probe failures
var (
	// ErrTimeout indicates a probe did not complete within its bound
	ErrTimeout = errors.New("probe timed out")

	// ErrConnectionFailed indicates DNS failure, refusal, or reset
	ErrConnectionFailed = errors.New("connection failed")

	// ErrUnexpectedStatus indicates a non-ok response status
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrNoCertificate indicates a handshake that returned no peer certificate
	ErrNoCertificate = errors.New("no certificate presented")

	// ErrSelectorNotFound indicates a configured selector never appeared
	ErrSelectorNotFound = errors.New("selector not found")

	// ErrInvalidTarget indicates an unusable monitor target
	ErrInvalidTarget = errors.New("invalid probe target")

	// ErrUnsupportedType indicates a monitor type with no matching driver
	ErrUnsupportedType = errors.New("unsupported monitor type")
)

// StatusError reports a response whose status code is outside the ok range
type StatusError struct {
	Code int
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status: %d", e.Code)
}

// Is allows error comparison
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// SelectorError reports a selector that did not appear within its wait bound
type SelectorError struct {
	Selector string
	Wait     string
}

// Error implements the error interface
func (e *SelectorError) Error() string {
	return fmt.Sprintf("selector %q did not appear within %s", e.Selector, e.Wait)
}

// Is allows error comparison
func (e *SelectorError) Is(target error) bool {
	return target == ErrSelectorNotFound
}

// Classify maps a probe error onto the engine's failure taxonomy. Probe
// errors are data, not faults: every classified failure still produces a
// check result and a monitor status update.
func Classify(err error) models.FailureKind {
	if err == nil {
		return models.FailureNone
	}

	switch {
	case errors.Is(err, ErrSelectorNotFound):
		return models.FailureSelectorNotFound
	case errors.Is(err, ErrNoCertificate):
		return models.FailureNoCertificate
	case errors.Is(err, ErrUnexpectedStatus):
		return models.FailureProtocolError
	case isTimeout(err):
		return models.FailureTimeout
	default:
		return models.FailureConnectionError
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
