package overlay

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/superengineer/overlaywatch/internal/pagescript"
)

// scanResult mirrors the object returned by the in-page scan expression.
type scanResult struct {
	Present bool   `json:"present"`
	Found   bool   `json:"found"`
	DOM     string `json:"dom"`
}

// Scanner looks for resolved framework error overlays inside a page. A scan
// reports at most one overlay and stops at the first whose header element
// has rendered.
type Scanner struct {
	selector string
	retries  int
	delay    time.Duration
	log      logrus.FieldLogger
}

// NewScanner creates a Scanner for the given overlay element selector.
// retries bounds how often a scan is repeated while an overlay is present
// but its header has not rendered yet; delay is the wait between attempts.
func NewScanner(selector string, retries int, delay time.Duration, log logrus.FieldLogger) *Scanner {
	return &Scanner{
		selector: selector,
		retries:  retries,
		delay:    delay,
		log:      log,
	}
}

// Scan evaluates the overlay scan expression in the page behind ctx and
// returns the serialized overlay markup and whether one was found. When no
// overlay element exists at all the scan returns immediately; when one is
// present without a header yet, the scan polls up to the retry bound.
func (s *Scanner) Scan(ctx context.Context) (string, bool, error) {
	expr := pagescript.ScanExpression(s.selector)

	for attempt := 0; ; attempt++ {
		var res scanResult
		if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &res)); err != nil {
			return "", false, fmt.Errorf("overlay scan failed: %w", err)
		}

		if res.Found {
			return res.DOM, true, nil
		}
		if !res.Present {
			return "", false, nil
		}
		if attempt >= s.retries {
			s.log.WithField("attempts", attempt+1).
				Debug("overlay present but header never rendered, giving up")
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(s.delay):
		}
	}
}
