package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/superengineer/overlaywatch/internal/config"
	"github.com/superengineer/overlaywatch/internal/monitor"
	"github.com/superengineer/overlaywatch/internal/report"
)

// Manager owns the browser-level CDP connection and one PageMonitor per
// page target.
type Manager struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	registry *PageRegistry

	// parent is the shared parent-collector sink; nil when none is
	// configured.
	parent report.Sink

	chromeProcess *ChromeProcess
	monitors      map[string]*monitor.PageMonitor // targetID -> monitor
	mu            sync.RWMutex

	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewManager creates a Manager. parent may be nil.
func NewManager(cfg *config.Config, parent report.Sink, log logrus.FieldLogger) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      log,
		registry: NewPageRegistry(),
		parent:   parent,
		monitors: make(map[string]*monitor.PageMonitor),
	}
}

// Start connects to Chrome and monitors pages until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.AutoLaunch {
		var err error
		m.chromeProcess, err = LaunchChrome(m.cfg.ChromePort, m.cfg.Headless)
		if err != nil {
			return fmt.Errorf("failed to launch chrome: %w", err)
		}

		if err := WaitForChrome(m.cfg.ChromePort, 30*time.Second); err != nil {
			_ = m.chromeProcess.Stop()
			return fmt.Errorf("chrome not ready: %w", err)
		}

		m.log.WithFields(logrus.Fields{
			"pid":  m.chromeProcess.PID(),
			"port": m.cfg.ChromePort,
		}).Info("launched chrome")
	}

	// One-time discovery of pages already open; everything after this
	// arrives via target events.
	initialPages, err := DiscoverPages(m.cfg.ChromePort)
	if err != nil {
		return fmt.Errorf("failed to discover initial pages: %w", err)
	}

	browserInfo, err := DiscoverBrowserInfo(m.cfg.ChromePort)
	if err != nil {
		return fmt.Errorf("failed to get browser info: %w", err)
	}

	allocatorCtx, allocatorCancel := chromedp.NewRemoteAllocator(ctx, browserInfo.WebSocketDebuggerURL)
	defer allocatorCancel()

	m.browserCtx, m.browserCancel = chromedp.NewContext(allocatorCtx)
	defer m.browserCancel()

	if err := chromedp.Run(m.browserCtx, target.SetDiscoverTargets(true)); err != nil {
		return fmt.Errorf("failed to enable target discovery: %w", err)
	}

	chromedp.ListenTarget(m.browserCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *target.EventTargetCreated:
			if ev.TargetInfo.Type == TargetTypePage && !ev.TargetInfo.Attached {
				m.attach(ctx, string(ev.TargetInfo.TargetID), ev.TargetInfo.URL)
			}

		case *target.EventTargetDestroyed:
			m.handleTargetDestroyed(string(ev.TargetID))

		case *target.EventTargetInfoChanged:
			if ev.TargetInfo.Type == TargetTypePage {
				m.handleTargetInfoChanged(string(ev.TargetInfo.TargetID), ev.TargetInfo.URL)
			}
		}
	})

	for _, p := range initialPages {
		m.attach(ctx, p.TargetID, p.URL)
	}

	m.log.WithFields(logrus.Fields{
		"session": m.registry.SessionID(),
		"pages":   len(initialPages),
	}).Info("monitoring started")

	<-ctx.Done()

	return nil
}

// attach starts a monitor for a page target. Attaching to a target that is
// already monitored is a no-op.
func (m *Manager) attach(ctx context.Context, targetID, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.monitors[targetID]; exists {
		return
	}

	pageID := m.registry.GetOrCreatePageID(targetID)
	mon := monitor.NewPageMonitor(
		ctx,
		targetID,
		pageID,
		m.registry.SessionID(),
		url,
		m.sinkFor(pageID),
		m.cfg,
		m.log,
	)

	m.monitors[targetID] = mon

	go func() {
		if err := mon.Start(m.browserCtx); err != nil {
			m.log.WithError(err).WithField("page", pageID).Error("page monitor failed")
		}
	}()
}

// sinkFor builds the report sink for one page: the shared parent sink plus
// an optional per-page file sink. With neither configured, reports are
// dropped with a warning.
func (m *Manager) sinkFor(pageID string) report.Sink {
	var sinks []report.Sink
	if m.parent != nil {
		sinks = append(sinks, report.Shared(m.parent))
	}
	if m.cfg.OutputDir != "" {
		sinks = append(sinks, report.NewFileSink(m.cfg.OutputDir, pageID))
	}
	if len(sinks) == 0 {
		return report.NewDropSink(m.log)
	}
	return report.NewMultiSink(sinks...)
}

// handleTargetDestroyed stops the monitor for a closed page.
func (m *Manager) handleTargetDestroyed(targetID string) {
	m.mu.Lock()
	mon, exists := m.monitors[targetID]
	if exists {
		delete(m.monitors, targetID)
	}
	m.mu.Unlock()

	if !exists {
		return
	}

	m.registry.Remove(targetID)
	mon.Stop()
}

// handleTargetInfoChanged records page navigations.
func (m *Manager) handleTargetInfoChanged(targetID, url string) {
	m.mu.RLock()
	mon, exists := m.monitors[targetID]
	m.mu.RUnlock()

	if exists && mon.URL() != url {
		mon.SetURL(url)
		m.log.WithFields(logrus.Fields{
			"page": mon.PageID(),
			"url":  url,
		}).Debug("page navigated")
	}
}

// Stop shuts the manager down: all page monitors, the shared parent sink,
// and any Chrome process this manager launched.
func (m *Manager) Stop() {
	if m.browserCancel != nil {
		m.browserCancel()
	}

	m.mu.Lock()
	monitors := make([]*monitor.PageMonitor, 0, len(m.monitors))
	for _, mon := range m.monitors {
		monitors = append(monitors, mon)
	}
	m.monitors = make(map[string]*monitor.PageMonitor)
	m.mu.Unlock()

	for _, mon := range monitors {
		mon.Stop()
	}

	if m.parent != nil {
		if err := m.parent.Close(); err != nil {
			m.log.WithError(err).Warn("failed to close parent sink")
		}
	}

	if m.chromeProcess != nil {
		if err := m.chromeProcess.Stop(); err != nil {
			m.log.WithError(err).Warn("failed to stop chrome")
		}
	}

	m.log.Info("shutdown complete")
}

// ActivePageCount returns the number of monitored pages.
func (m *Manager) ActivePageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monitors)
}
