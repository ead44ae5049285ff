package overlay

import (
	"strings"
	"testing"
)

func TestFormatMessagePlaceholders(t *testing.T) {
	got := FormatMessage("Value: %s, Count: %d", "foo", "3")
	if got != "Value: foo, Count: 3" {
		t.Errorf("expected 'Value: foo, Count: 3', got %q", got)
	}
}

func TestFormatMessageAllPlaceholderKinds(t *testing.T) {
	got := FormatMessage("%s %i %d %f", "a", 1, 2, 3.5)
	if got != "a 1 2 3.5" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestFormatMessageObjectPlaceholder(t *testing.T) {
	got := FormatMessage("state: %o", map[string]interface{}{"ok": false})
	if got != `state: {"ok":false}` {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestFormatMessageTrailingArgs(t *testing.T) {
	got := FormatMessage("failed: %s", "reason", "extra", 42)
	if got != "failed: reason extra 42" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestFormatMessageExcessPlaceholders(t *testing.T) {
	// Placeholders without a matching argument stay literal.
	got := FormatMessage("a=%s b=%s", "one")
	if got != "a=one b=%s" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestFormatMessageNonStringFirstArg(t *testing.T) {
	// A non-string first argument falls back to space-joined coercion.
	got := FormatMessage(42, "things", "broke")
	if got != "42 things broke" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestFormatMessageNoPlaceholders(t *testing.T) {
	got := FormatMessage("plain", "join", "these")
	if got != "plain join these" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestFormatMessageEmpty(t *testing.T) {
	if got := FormatMessage(); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestFormatMessageNilArg(t *testing.T) {
	got := FormatMessage("value: %s", nil)
	if got != "value: null" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestCoerceArgs(t *testing.T) {
	got := CoerceArgs([]interface{}{"a", 1, true, nil, map[string]interface{}{"k": "v"}})
	want := []string{"a", "1", "true", "null", `{"k":"v"}`}

	if len(got) != len(want) {
		t.Fatalf("expected %d args, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDedupHash(t *testing.T) {
	h := DedupHash("boom")
	if h != "console-error:boom" {
		t.Errorf("unexpected hash: %q", h)
	}
}

func TestDedupHashTruncates(t *testing.T) {
	long := strings.Repeat("x", 150)
	h := DedupHash(long)

	if len(h) != len("console-error:")+100 {
		t.Errorf("expected hash truncated to 100 message chars, got length %d", len(h))
	}

	// Messages differing only after the first 100 characters collide.
	other := strings.Repeat("x", 100) + "different tail"
	if DedupHash(other) != h {
		t.Error("expected identical hashes for messages sharing the first 100 chars")
	}
}

func TestDedupHashCaseSensitive(t *testing.T) {
	if DedupHash("Boom") == DedupHash("boom") {
		t.Error("dedup hash must be case-sensitive")
	}
}
