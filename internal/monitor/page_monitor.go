// Package monitor attaches error interception to individual browser pages.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/superengineer/overlaywatch/internal/config"
	"github.com/superengineer/overlaywatch/internal/envelope"
	"github.com/superengineer/overlaywatch/internal/overlay"
	"github.com/superengineer/overlaywatch/internal/pagescript"
	"github.com/superengineer/overlaywatch/internal/redact"
	"github.com/superengineer/overlaywatch/internal/report"
)

// mutationBinding is the CDP binding the injected MutationObserver calls
// when a qualifying DOM mutation occurs.
const mutationBinding = "__overlaywatchMutation"

// overlayScanner looks for a resolved error overlay in the page behind ctx.
// Satisfied by overlay.Scanner.
type overlayScanner interface {
	Scan(ctx context.Context) (markup string, found bool, err error)
}

// PageMonitor intercepts console errors and framework error overlays on a
// single page and forwards reports through its sink. It owns all detection
// state explicitly; Stop is the only cancellation primitive.
type PageMonitor struct {
	targetID  string
	pageID    string
	sessionID string
	url       string

	cfg      *config.Config
	sink     report.Sink
	scrubber *redact.Scrubber
	scanner  overlayScanner
	log      logrus.FieldLogger

	// Detection state. lastHash holds the dedup fingerprint of the most
	// recently reported console error; overlay reports bypass it.
	mu        sync.Mutex
	running   bool
	lastHash  string
	targetCtx context.Context

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPageMonitor creates a monitor for one page target.
func NewPageMonitor(
	parentCtx context.Context,
	targetID, pageID, sessionID, url string,
	sink report.Sink,
	cfg *config.Config,
	log logrus.FieldLogger,
) *PageMonitor {
	ctx, cancel := context.WithCancel(parentCtx)

	return &PageMonitor{
		targetID:  targetID,
		pageID:    pageID,
		sessionID: sessionID,
		url:       url,
		cfg:       cfg,
		sink:      sink,
		scrubber:  redact.New(cfg.Scrub),
		scanner:   overlay.NewScanner(cfg.OverlaySelector, cfg.HeaderRetries, cfg.HeaderRetryDelay, log),
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start attaches to the page and begins interception. It blocks until Stop
// is called or the target goes away. A stopped monitor cannot be restarted;
// the manager creates a fresh PageMonitor when a target is re-attached.
func (pm *PageMonitor) Start(browserCtx context.Context) error {
	if pm.ctx.Err() != nil {
		return fmt.Errorf("monitor for page %s already stopped", pm.pageID)
	}

	targetCtx, cancel := chromedp.NewContext(browserCtx,
		chromedp.WithTargetID(target.ID(pm.targetID)),
	)
	defer cancel()

	pm.mu.Lock()
	if pm.running {
		pm.mu.Unlock()
		return fmt.Errorf("monitor for page %s already running", pm.pageID)
	}
	pm.running = true
	pm.targetCtx = targetCtx
	pm.mu.Unlock()

	observerScript := pagescript.ObserverScript(pm.cfg.OverlaySelector, mutationBinding)

	if err := chromedp.Run(targetCtx,
		page.Enable(),
		runtime.Enable(),
		runtime.AddBinding(mutationBinding),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Reinstall the observer after every navigation.
			_, err := page.AddScriptToEvaluateOnNewDocument(observerScript).Do(ctx)
			return err
		}),
	); err != nil {
		pm.markStopped()
		return fmt.Errorf("failed to attach to page %s: %w", pm.pageID, err)
	}

	// The document currently loaded never saw the new-document script.
	if err := chromedp.Run(targetCtx, chromedp.Evaluate(observerScript, nil)); err != nil {
		pm.log.WithError(err).Warn("failed to install mutation observer on current document")
	}

	chromedp.ListenTarget(targetCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			if ev.Type != runtime.APITypeError {
				return
			}
			args := make([]interface{}, 0, len(ev.Args))
			for _, arg := range ev.Args {
				args = append(args, remoteValue(arg))
			}
			// Detection runs CDP commands of its own; never block the
			// event dispatch goroutine.
			go pm.handleConsoleError(args)

		case *runtime.EventExceptionThrown:
			// Uncaught errors and unhandled rejections follow the same
			// overlay-first policy as intercepted console errors.
			go pm.handleConsoleError([]interface{}{exceptionMessage(ev.ExceptionDetails)})

		case *runtime.EventBindingCalled:
			if ev.Name != mutationBinding {
				return
			}
			go pm.CheckForErrors(pm.ctx)
		}
	})

	pm.log.WithFields(logrus.Fields{
		"page": pm.pageID,
		"url":  pm.url,
	}).Info("page monitor attached")

	// Catch overlays rendered before interception was installed.
	go pm.CheckForErrors(pm.ctx)

	select {
	case <-pm.ctx.Done():
	case <-targetCtx.Done():
	}

	return nil
}

// handleConsoleError runs the overlay-first reporting policy for a single
// console error occurrence. It returns whether an overlay report was sent
// in preference to the console report.
func (pm *PageMonitor) handleConsoleError(args []interface{}) bool {
	message := overlay.FormatMessage(args...)
	hash := overlay.DedupHash(message)

	pm.mu.Lock()
	if !pm.running || pm.targetCtx == nil {
		pm.mu.Unlock()
		return false
	}
	if hash == pm.lastHash {
		pm.mu.Unlock()
		pm.log.WithField("page", pm.pageID).Debug("suppressed duplicate console error")
		return false
	}
	pm.lastHash = hash
	targetCtx := pm.targetCtx
	pm.mu.Unlock()

	if pm.reportOverlay(targetCtx) {
		return true
	}

	message = pm.scrubber.ScrubMessage(message)
	argStrings := pm.scrubber.ScrubArgs(overlay.CoerceArgs(args))

	if err := pm.sink.Send(envelope.NewConsole("error", message, argStrings)); err != nil {
		pm.log.WithError(err).Warn("failed to deliver console report")
	}
	return false
}

// reportOverlay scans for a resolved overlay and reports it. Overlay reports
// are never deduplicated; only console-kind reports are.
func (pm *PageMonitor) reportOverlay(targetCtx context.Context) bool {
	markup, found, err := pm.scanner.Scan(targetCtx)
	if err != nil {
		pm.log.WithError(err).Warn("overlay scan failed")
		return false
	}
	if !found {
		return false
	}

	if err := pm.sink.Send(envelope.NewDOM(markup)); err != nil {
		pm.log.WithError(err).Warn("failed to deliver overlay report")
	}
	return true
}

// SendError routes an arbitrary error through the same reporting flow as an
// intercepted console error. It returns whether an overlay report won over
// the console report.
func (pm *PageMonitor) SendError(err error) bool {
	if err == nil {
		return false
	}
	return pm.handleConsoleError([]interface{}{err.Error()})
}

// CheckForErrors actively scans the page for an error overlay, reporting one
// when found. Independent of console activity.
func (pm *PageMonitor) CheckForErrors(ctx context.Context) bool {
	pm.mu.Lock()
	running := pm.running
	targetCtx := pm.targetCtx
	pm.mu.Unlock()

	if !running || targetCtx == nil || ctx.Err() != nil {
		return false
	}
	return pm.reportOverlay(targetCtx)
}

// Stop ends the monitor permanently: the mutation binding is detached
// best-effort, the sink is closed, and the monitor's context is cancelled,
// which unblocks Start. The monitor cannot be reused afterward.
func (pm *PageMonitor) Stop() {
	pm.mu.Lock()
	if !pm.running {
		pm.mu.Unlock()
		return
	}
	pm.running = false
	targetCtx := pm.targetCtx
	pm.targetCtx = nil
	pm.lastHash = ""
	pm.mu.Unlock()

	if targetCtx != nil && targetCtx.Err() == nil {
		detachCtx, cancel := context.WithTimeout(targetCtx, 2*time.Second)
		_ = chromedp.Run(detachCtx, runtime.RemoveBinding(mutationBinding))
		cancel()
	}

	if err := pm.sink.Close(); err != nil {
		pm.log.WithError(err).Warn("failed to close report sink")
	}

	pm.cancel()
	pm.log.WithField("page", pm.pageID).Info("page monitor stopped")
}

// markStopped clears the running state after a failed Start.
func (pm *PageMonitor) markStopped() {
	pm.mu.Lock()
	pm.running = false
	pm.targetCtx = nil
	pm.mu.Unlock()
}

// PageID returns the stable page ID.
func (pm *PageMonitor) PageID() string {
	return pm.pageID
}

// URL returns the page URL observed at attach time.
func (pm *PageMonitor) URL() string {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.url
}

// SetURL records a navigation.
func (pm *PageMonitor) SetURL(url string) {
	pm.mu.Lock()
	pm.url = url
	pm.mu.Unlock()
}

// exceptionMessage synthesizes the console message for an uncaught exception
// or unhandled rejection.
func exceptionMessage(details *runtime.ExceptionDetails) string {
	if details == nil {
		return "Uncaught error"
	}
	msg := details.Text
	if details.Exception != nil {
		switch {
		case details.Exception.Description != "":
			msg += " " + details.Exception.Description
		case details.Exception.Value != nil:
			msg += " " + string(details.Exception.Value)
		}
	}
	return msg
}
