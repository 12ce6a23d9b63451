package workflow

import (
	"sync"
)

// Registry tracks the active workflow managers, one per project. The project
// id is the single mutation key: operations for different projects never
// share a manager.
type Registry struct {
	deps ManagerDeps

	mu       sync.Mutex
	byID     map[string]*Manager
	makeDeps func(userID int64) ManagerDeps
}

// NewRegistry creates a registry. makeDeps builds a fresh dependency set per
// session so each manager gets its own persistence store and analyzer.
func NewRegistry(makeDeps func(userID int64) ManagerDeps) *Registry {
	return &Registry{
		byID:     make(map[string]*Manager),
		makeDeps: makeDeps,
	}
}

// NewSession creates an unbound manager for a user. It is registered once a
// project id exists (Bind).
func (r *Registry) NewSession(userID int64) *Manager {
	return NewManager(userID, r.makeDeps(userID))
}

// Bind registers a manager under its project id.
func (r *Registry) Bind(projectID string, m *Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[projectID] = m
}

// Lookup returns the manager for a project, or nil.
func (r *Registry) Lookup(projectID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[projectID]
}

// GetOrLoad returns the registered manager for a project, creating one and
// loading the project when the id is not yet active in this process.
func (r *Registry) GetOrLoad(projectID string, userID int64) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byID[projectID]; ok {
		return m, true
	}
	m := NewManager(userID, r.makeDeps(userID))
	r.byID[projectID] = m
	return m, false
}

// Remove drops a project's manager, after reset or exit.
func (r *Registry) Remove(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, projectID)
}
