package session

import (
	"regexp"
	"strings"
	"sync"
)

const maxNamespaceLen = 50

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Manager tracks the single document namespace that is addressable for
// querying. Uploading a new document replaces the pointer; there is no
// persistence across restarts and no support for concurrent documents, so a
// second upload racing a first is last-writer-wins.
type Manager struct {
	mu     sync.RWMutex
	active string
}

func NewManager() *Manager {
	return &Manager{}
}

// SetActive replaces the current namespace pointer.
func (m *Manager) SetActive(namespace string) {
	m.mu.Lock()
	m.active = namespace
	m.mu.Unlock()
}

// Active returns the current namespace and whether one is set.
func (m *Manager) Active() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, m.active != ""
}

// Clear resets the pointer. Used only by the administrative index wipe.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.active = ""
	m.mu.Unlock()
}

// Namespace derives the vector-index namespace for a document: the sanitized
// filename truncated to 50 characters and prefixed with the owner to separate
// tenants. Two filenames that sanitize to the same string under one owner
// collide and overwrite each other's indexed content; that is accepted given
// the single-active-namespace design.
func Namespace(ownerID, filename string) string {
	return ownerID + "_" + sanitize(filename)
}

func sanitize(name string) string {
	name = strings.TrimSuffix(name, ".pdf")
	sanitized := nonAlphanumeric.ReplaceAllString(name, "_")
	if len(sanitized) > maxNamespaceLen {
		sanitized = sanitized[:maxNamespaceLen]
	}
	return sanitized
}
