package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pulseguard/pulseguard/internal/logging"
	"github.com/pulseguard/pulseguard/pkg/models"
)

// BrowserRunner navigates a headless browser to a URL and reports navigation
// metrics. Injected so tests can run without a browser binary.
type BrowserRunner func(ctx context.Context, url, selector string, selectorWait time.Duration) (*models.BrowserProbeData, error)

// BrowserProbe performs full-browser rendering checks. Each probe launches an
// isolated headless browser instance which is released on every exit path,
// including cancellation.
type BrowserProbe struct {
	navTimeout   time.Duration
	selectorWait time.Duration
	logger       *logging.Logger
	run          BrowserRunner
}

// NewBrowserProbe creates a browser probe with bounded navigation and
// selector waits
func NewBrowserProbe(navTimeout, selectorWait time.Duration, logger *logging.Logger) *BrowserProbe {
	if navTimeout == 0 {
		navTimeout = 20 * time.Second
	}
	if selectorWait == 0 {
		selectorWait = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &BrowserProbe{
		navTimeout:   navTimeout,
		selectorWait: selectorWait,
		logger:       logger,
		run:          runHeadlessChrome,
	}
}

// SetRunner replaces the browser runner. Used by tests.
func (b *BrowserProbe) SetRunner(run BrowserRunner) {
	b.run = run
}

// Probe performs the browser check. Success requires an ok navigation
// response and, when a selector is configured, its appearance within the
// secondary wait.
func (b *BrowserProbe) Probe(ctx context.Context, m *models.Monitor) *models.ProbeResult {
	start := time.Now()

	selector := ""
	selectorWait := b.selectorWait
	if m.BrowserCheck != nil {
		selector = m.BrowserCheck.WaitForSelector
		if m.BrowserCheck.SelectorWait > 0 {
			selectorWait = m.BrowserCheck.SelectorWait.ToDuration()
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, b.navTimeout)
	defer cancel()

	data, err := b.run(navCtx, m.URL, selector, selectorWait)
	duration := time.Since(start)

	if err != nil {
		b.logger.WithMonitor(m.ID, m.Name, string(m.Type)).
			WithFields(map[string]interface{}{"error": err.Error()}).
			Debug("Browser check failed")
		result := failedResult(start, err)
		result.Duration = duration
		result.Browser = data
		return result
	}

	result := &models.ProbeResult{
		Duration:  duration,
		Timestamp: time.Now(),
		Browser:   data,
	}

	if data.StatusCode >= 400 {
		statusErr := &StatusError{Code: data.StatusCode}
		result.Up = false
		result.FailureKind = models.FailureProtocolError
		result.Error = statusErr.Error()
		return result
	}

	result.Up = true
	return result
}

// runHeadlessChrome is the production BrowserRunner. The allocator and tab
// contexts are cancelled via defer so the browser process is torn down on
// every exit path.
func runHeadlessChrome(ctx context.Context, url, selector string, selectorWait time.Duration) (*models.BrowserProbeData, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	data := &models.BrowserProbeData{}

	navStart := time.Now()
	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	data.NavTime = time.Since(navStart)
	if err != nil {
		return data, fmt.Errorf("navigation failed: %w", err)
	}
	if resp != nil {
		data.StatusCode = int(resp.Status)
	}

	// DOM-ready delta, when the page exposes performance timing
	var domReady float64
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(
		"performance.timing.domContentLoadedEventEnd - performance.timing.navigationStart", &domReady,
	)); err == nil && domReady > 0 {
		data.DOMReadyMs = int64(domReady)
	}

	if selector != "" {
		selCtx, cancelSel := context.WithTimeout(tabCtx, selectorWait)
		defer cancelSel()

		if err := chromedp.Run(selCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
			return data, &SelectorError{Selector: selector, Wait: selectorWait.String()}
		}
		data.SelectorFound = true
	}

	return data, nil
}
