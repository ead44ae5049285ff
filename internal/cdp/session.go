package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Session is a short-lived browser-level CDP connection used by one-shot
// commands such as `overlaywatch scan`.
type Session struct {
	port string

	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
}

// Connect opens a session against the Chrome instance on the given port.
func Connect(ctx context.Context, port string) (*Session, error) {
	info, err := DiscoverBrowserInfo(port)
	if err != nil {
		return nil, err
	}

	allocatorCtx, allocatorCancel := chromedp.NewRemoteAllocator(ctx, info.WebSocketDebuggerURL)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	return &Session{
		port:            port,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
	}, nil
}

// EachPage runs fn once per open page, with a context attached to that
// page's target. An error from fn is logged by the caller's wrapper; here it
// aborts the iteration.
func (s *Session) EachPage(fn func(ctx context.Context, page *Page) error) error {
	pages, err := DiscoverPages(s.port)
	if err != nil {
		return err
	}

	for _, p := range pages {
		targetCtx, cancel := chromedp.NewContext(s.browserCtx,
			chromedp.WithTargetID(target.ID(p.TargetID)),
		)
		err := fn(targetCtx, p)
		cancel()
		if err != nil {
			return fmt.Errorf("page %s: %w", p.TargetID, err)
		}
	}

	return nil
}

// Close releases the session's contexts.
func (s *Session) Close() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
	}
}
