package monitor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/sirupsen/logrus"

	"github.com/superengineer/overlaywatch/internal/config"
	"github.com/superengineer/overlaywatch/internal/envelope"
)

// captureSink records every envelope it receives.
type captureSink struct {
	mu     sync.Mutex
	sent   []*envelope.Envelope
	closed bool
}

func (c *captureSink) Send(env *envelope.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) envelopes() []*envelope.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*envelope.Envelope(nil), c.sent...)
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newTestMonitor returns a monitor wired to a capture sink, marked running
// against a plain context. Overlay scans fail against it (there is no
// browser), which exercises the degrade-to-console path.
func newTestMonitor(t *testing.T) (*PageMonitor, *captureSink) {
	t.Helper()

	sink := &captureSink{}
	pm := NewPageMonitor(context.Background(),
		"target-1", "page-1", "session-1", "http://localhost:3000",
		sink, config.DefaultConfig(), quietLogger())

	pm.mu.Lock()
	pm.running = true
	pm.targetCtx = context.Background()
	pm.mu.Unlock()

	return pm, sink
}

// stubScanner returns a canned scan result instead of evaluating in a page.
type stubScanner struct {
	markup string
	found  bool
	err    error
	calls  int
}

func (s *stubScanner) Scan(context.Context) (string, bool, error) {
	s.calls++
	return s.markup, s.found, s.err
}

func TestOverlayWinsOverConsoleReport(t *testing.T) {
	pm, sink := newTestMonitor(t)
	pm.scanner = &stubScanner{markup: "<h1>Unhandled Runtime Error</h1>", found: true}

	if domWon := pm.handleConsoleError([]interface{}{"render failed"}); !domWon {
		t.Error("resolved overlay must win over the console report")
	}

	sent := sink.envelopes()
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 envelope, got %d", len(sent))
	}
	env := sent[0]
	if env.Kind != envelope.KindDOM {
		t.Errorf("expected dom kind, got %s", env.Kind)
	}
	if env.DOM == nil || env.DOM.Markup != "<h1>Unhandled Runtime Error</h1>" {
		t.Errorf("unexpected DOM report: %+v", env.DOM)
	}
	if env.Console != nil {
		t.Error("overlay report must not carry console fields")
	}
}

func TestCheckForErrorsNeverDedups(t *testing.T) {
	pm, sink := newTestMonitor(t)
	scanner := &stubScanner{markup: "<h1>Unhandled Runtime Error</h1>", found: true}
	pm.scanner = scanner

	if !pm.CheckForErrors(context.Background()) {
		t.Fatal("expected overlay report on first scan")
	}
	if !pm.CheckForErrors(context.Background()) {
		t.Fatal("expected overlay report on repeated scan")
	}

	sent := sink.envelopes()
	if len(sent) != 2 {
		t.Fatalf("overlay reports are never deduplicated, got %d envelopes", len(sent))
	}
	for _, env := range sent {
		if env.Kind != envelope.KindDOM {
			t.Errorf("expected dom kind, got %s", env.Kind)
		}
	}
	if scanner.calls != 2 {
		t.Errorf("expected 2 scans, got %d", scanner.calls)
	}
}

func TestStartAfterStopReturnsError(t *testing.T) {
	pm, sink := newTestMonitor(t)
	pm.Stop()

	if err := pm.Start(context.Background()); err == nil {
		t.Fatal("Start on a stopped monitor must fail")
	}
	if got := len(sink.envelopes()); got != 0 {
		t.Errorf("stopped monitor must not report, got %d envelopes", got)
	}
}

func TestHandleConsoleErrorReports(t *testing.T) {
	pm, sink := newTestMonitor(t)

	if domWon := pm.handleConsoleError([]interface{}{"Value: %s, Count: %d", "foo", "3"}); domWon {
		t.Error("no overlay exists, console report must win")
	}

	sent := sink.envelopes()
	if len(sent) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(sent))
	}
	env := sent[0]
	if env.Kind != envelope.KindConsole {
		t.Errorf("expected console kind, got %s", env.Kind)
	}
	if env.Console.Message != "Value: foo, Count: 3" {
		t.Errorf("unexpected message: %q", env.Console.Message)
	}
	if len(env.Console.Args) != 3 || env.Console.Args[0] != "Value: %s, Count: %d" {
		t.Errorf("unexpected args: %v", env.Console.Args)
	}
	if env.Console.IsServer {
		t.Error("browser-captured report must have IsServer false")
	}
}

func TestHandleConsoleErrorDedup(t *testing.T) {
	pm, sink := newTestMonitor(t)

	pm.handleConsoleError([]interface{}{"boom"})
	pm.handleConsoleError([]interface{}{"boom"})

	if got := len(sink.envelopes()); got != 1 {
		t.Errorf("duplicate console error must be suppressed, got %d envelopes", got)
	}

	// A different message reports again.
	pm.handleConsoleError([]interface{}{"other"})
	if got := len(sink.envelopes()); got != 2 {
		t.Errorf("expected 2 envelopes after distinct message, got %d", got)
	}

	// The dedup key tracks only the most recent report, so an earlier
	// message repeats once something else was reported in between.
	pm.handleConsoleError([]interface{}{"boom"})
	if got := len(sink.envelopes()); got != 3 {
		t.Errorf("expected 3 envelopes after alternating messages, got %d", got)
	}
}

func TestHandleConsoleErrorDedupCaseSensitive(t *testing.T) {
	pm, sink := newTestMonitor(t)

	pm.handleConsoleError([]interface{}{"Boom"})
	pm.handleConsoleError([]interface{}{"boom"})

	if got := len(sink.envelopes()); got != 2 {
		t.Errorf("dedup must be case-sensitive, got %d envelopes", got)
	}
}

func TestHandleConsoleErrorScrubs(t *testing.T) {
	pm, sink := newTestMonitor(t)

	pm.handleConsoleError([]interface{}{"auth failed token=abc123"})

	sent := sink.envelopes()
	if len(sent) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(sent))
	}
	if msg := sent[0].Console.Message; msg != "auth failed token=[REDACTED]" {
		t.Errorf("expected scrubbed message, got %q", msg)
	}
}

func TestSendError(t *testing.T) {
	pm, sink := newTestMonitor(t)

	if domWon := pm.SendError(errors.New("database unreachable")); domWon {
		t.Error("no overlay exists, expected console report")
	}

	sent := sink.envelopes()
	if len(sent) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(sent))
	}
	if sent[0].Console.Message != "database unreachable" {
		t.Errorf("unexpected message: %q", sent[0].Console.Message)
	}

	if pm.SendError(nil) {
		t.Error("nil error must not report")
	}
	if got := len(sink.envelopes()); got != 1 {
		t.Errorf("nil error must not add envelopes, got %d", got)
	}
}

func TestStopSuppressesFurtherReports(t *testing.T) {
	pm, sink := newTestMonitor(t)

	pm.handleConsoleError([]interface{}{"before stop"})
	pm.Stop()

	pm.handleConsoleError([]interface{}{"after stop"})
	if pm.CheckForErrors(context.Background()) {
		t.Error("CheckForErrors after Stop must report nothing")
	}
	if pm.SendError(errors.New("after stop too")) {
		t.Error("SendError after Stop must report nothing")
	}

	if got := len(sink.envelopes()); got != 1 {
		t.Errorf("expected no reports after Stop, got %d envelopes", got)
	}
	if !sink.closed {
		t.Error("Stop must close the sink")
	}

	// Stop is idempotent.
	pm.Stop()
}

func TestStopResetsDedupState(t *testing.T) {
	pm, _ := newTestMonitor(t)

	pm.handleConsoleError([]interface{}{"boom"})
	pm.Stop()

	pm.mu.Lock()
	lastHash := pm.lastHash
	pm.mu.Unlock()
	if lastHash != "" {
		t.Errorf("Stop must reset dedup state, got %q", lastHash)
	}
}

func TestExceptionMessage(t *testing.T) {
	if got := exceptionMessage(nil); got != "Uncaught error" {
		t.Errorf("unexpected message for nil details: %q", got)
	}

	details := &runtime.ExceptionDetails{
		Text: "Uncaught",
		Exception: &runtime.RemoteObject{
			Description: "Error: it broke\n    at main.js:1:1",
		},
	}
	got := exceptionMessage(details)
	if got != "Uncaught Error: it broke\n    at main.js:1:1" {
		t.Errorf("unexpected message: %q", got)
	}

	bare := &runtime.ExceptionDetails{Text: "Uncaught (in promise)"}
	if got := exceptionMessage(bare); got != "Uncaught (in promise)" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestRemoteValue(t *testing.T) {
	if got := remoteValue(nil); got != nil {
		t.Errorf("expected nil for nil object, got %v", got)
	}
	if got := remoteValue(&runtime.RemoteObject{UnserializableValue: "NaN"}); got != "NaN" {
		t.Errorf("expected NaN, got %v", got)
	}
	if got := remoteValue(&runtime.RemoteObject{Type: runtime.TypeUndefined}); got != "undefined" {
		t.Errorf("expected undefined, got %v", got)
	}
	if got := remoteValue(&runtime.RemoteObject{Type: runtime.TypeObject, Subtype: runtime.SubtypeNull}); got != nil {
		t.Errorf("expected nil for null subtype, got %v", got)
	}
	if got := remoteValue(&runtime.RemoteObject{Type: runtime.TypeFunction, Description: "function f()"}); got != "function f()" {
		t.Errorf("expected description fallback, got %v", got)
	}
}

func TestPreviewValue(t *testing.T) {
	preview := &runtime.ObjectPreview{
		Type:    runtime.TypeObject,
		Subtype: runtime.SubtypeArray,
		Properties: []*runtime.PropertyPreview{
			{Name: "0", Type: runtime.TypeNumber, Value: "1"},
			{Name: "1", Type: runtime.TypeString, Value: "two"},
			{Name: "2", Type: runtime.TypeBoolean, Value: "true"},
		},
		Overflow: true,
	}

	got, ok := previewValue(preview).([]interface{})
	if !ok {
		t.Fatalf("expected slice, got %T", previewValue(preview))
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 entries (3 values + overflow marker), got %d", len(got))
	}
	if got[0] != float64(1) {
		t.Errorf("expected 1, got %v", got[0])
	}
	if got[1] != "two" {
		t.Errorf("expected 'two', got %v", got[1])
	}
	if got[2] != true {
		t.Errorf("expected true, got %v", got[2])
	}
	if got[3] != "..." {
		t.Errorf("expected overflow marker, got %v", got[3])
	}
}
