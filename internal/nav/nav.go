// Package nav provides replace-semantics navigation between admin views.
package nav

import "sync"

// Well-known paths
const (
	AdminRoot = "/admin"
	LoginPath = "/admin/login"
)

// Navigator redirects to a path, replacing the current history entry so
// the user cannot navigate back into a denied view
type Navigator interface {
	Replace(path string)
}

// Func adapts a plain function to a Navigator
type Func func(path string)

// Replace calls f(path)
func (f Func) Replace(path string) { f(path) }

// History is an in-memory navigation stack
type History struct {
	mu      sync.Mutex
	entries []string
	replays []string
}

// NewHistory creates a history positioned at start
func NewHistory(start string) *History {
	return &History{entries: []string{start}}
}

// Push adds a new entry
func (h *History) Push(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, path)
}

// Replace overwrites the current entry
func (h *History) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replays = append(h.replays, path)
	if len(h.entries) == 0 {
		h.entries = append(h.entries, path)
		return
	}
	h.entries[len(h.entries)-1] = path
}

// Back pops the current entry and returns the new current path.
// ok is false when there is nothing to go back to.
func (h *History) Back() (path string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) < 2 {
		return h.currentLocked(), false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.currentLocked(), true
}

// Current returns the current path
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentLocked()
}

// Redirects returns every path passed to Replace, in order
func (h *History) Redirects() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.replays...)
}

func (h *History) currentLocked() string {
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}
