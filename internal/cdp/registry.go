package cdp

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// PageRegistry maps CDP target IDs to stable page IDs for one monitoring
// session. Page IDs are sequential (page-1, page-2, ...) and stable for the
// process lifetime; the session ID is a UUID generated at construction.
type PageRegistry struct {
	sessionID    string
	targetToPage map[string]string
	counter      atomic.Int64
	mu           sync.RWMutex
}

// NewPageRegistry creates a registry with a fresh session ID.
func NewPageRegistry() *PageRegistry {
	return &PageRegistry{
		sessionID:    uuid.New().String(),
		targetToPage: make(map[string]string),
	}
}

// SessionID returns the session ID for this registry.
func (r *PageRegistry) SessionID() string {
	return r.sessionID
}

// GetOrCreatePageID returns the page ID for a target, minting one when the
// target is seen for the first time.
func (r *PageRegistry) GetOrCreatePageID(targetID string) string {
	r.mu.RLock()
	if pageID, exists := r.targetToPage[targetID]; exists {
		r.mu.RUnlock()
		return pageID
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if pageID, exists := r.targetToPage[targetID]; exists {
		return pageID
	}

	pageID := "page-" + strconv.FormatInt(r.counter.Add(1), 10)
	r.targetToPage[targetID] = pageID
	return pageID
}

// PageID returns the page ID for a target, or empty string if unknown.
func (r *PageRegistry) PageID(targetID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.targetToPage[targetID]
}

// Remove forgets a target.
func (r *PageRegistry) Remove(targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targetToPage, targetID)
}
