package cdp

import (
	"sync"
	"testing"
)

func TestPageRegistrySequentialIDs(t *testing.T) {
	r := NewPageRegistry()

	first := r.GetOrCreatePageID("target-a")
	second := r.GetOrCreatePageID("target-b")

	if first != "page-1" {
		t.Errorf("expected page-1, got %s", first)
	}
	if second != "page-2" {
		t.Errorf("expected page-2, got %s", second)
	}
}

func TestPageRegistryStableIDs(t *testing.T) {
	r := NewPageRegistry()

	id := r.GetOrCreatePageID("target-a")
	if again := r.GetOrCreatePageID("target-a"); again != id {
		t.Errorf("expected stable ID %s, got %s", id, again)
	}
	if got := r.PageID("target-a"); got != id {
		t.Errorf("PageID mismatch: expected %s, got %s", id, got)
	}
}

func TestPageRegistryRemove(t *testing.T) {
	r := NewPageRegistry()

	r.GetOrCreatePageID("target-a")
	r.Remove("target-a")

	if got := r.PageID("target-a"); got != "" {
		t.Errorf("expected empty ID after Remove, got %s", got)
	}

	// A re-added target gets a fresh ID; IDs are never reused.
	if got := r.GetOrCreatePageID("target-a"); got != "page-2" {
		t.Errorf("expected page-2 after re-add, got %s", got)
	}
}

func TestPageRegistrySessionID(t *testing.T) {
	a := NewPageRegistry()
	b := NewPageRegistry()

	if a.SessionID() == "" {
		t.Error("session ID must not be empty")
	}
	if a.SessionID() != a.SessionID() {
		t.Error("session ID must be stable")
	}
	if a.SessionID() == b.SessionID() {
		t.Error("registries must have distinct session IDs")
	}
}

func TestPageRegistryConcurrentAccess(t *testing.T) {
	r := NewPageRegistry()

	var wg sync.WaitGroup
	ids := make([]string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.GetOrCreatePageID("shared-target")
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent GetOrCreatePageID returned different IDs: %s vs %s", ids[0], id)
		}
	}
}
