package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"soundscene/logger"

	"github.com/google/uuid"
)

// Allocator creates and revokes ephemeral local handles for media bytes.
// Any runtime can supply a conforming implementation; the default backs
// handles with temp files under a session directory.
type Allocator interface {
	Create(data []byte) (string, error)
	Revoke(handle string) error
}

// DefaultRevokeGrace is the delay between telling a consumer to stop and
// actually revoking its handle, so a handle is never pulled while still
// referenced.
const DefaultRevokeGrace = 250 * time.Millisecond

// Manager tracks live handles and revokes them with a grace delay.
type Manager struct {
	alloc Allocator
	grace time.Duration

	mu   sync.Mutex
	live map[string]bool
	wg   sync.WaitGroup
}

// NewManager creates a handle manager. A non-positive grace uses the default.
func NewManager(alloc Allocator, grace time.Duration) *Manager {
	if grace <= 0 {
		grace = DefaultRevokeGrace
	}
	return &Manager{
		alloc: alloc,
		grace: grace,
		live:  make(map[string]bool),
	}
}

// Create allocates a handle for the given bytes and tracks it.
func (m *Manager) Create(data []byte) (string, error) {
	handle, err := m.alloc.Create(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.live[handle] = true
	m.mu.Unlock()
	return handle, nil
}

// RevokeAfter schedules revocation of one handle after the grace delay.
func (m *Manager) RevokeAfter(handle string) {
	m.mu.Lock()
	if !m.live[handle] {
		m.mu.Unlock()
		return
	}
	delete(m.live, handle)
	m.mu.Unlock()

	m.wg.Add(1)
	time.AfterFunc(m.grace, func() {
		defer m.wg.Done()
		if err := m.alloc.Revoke(handle); err != nil {
			logger.Warn("failed to revoke handle", logger.String("handle", handle), logger.ErrorField(err))
		}
	})
}

// RevokeAll schedules revocation of every live handle, used when the user
// leaves the workflow after playback has been told to stop.
func (m *Manager) RevokeAll() {
	m.mu.Lock()
	handles := make([]string, 0, len(m.live))
	for h := range m.live {
		handles = append(handles, h)
	}
	m.live = make(map[string]bool)
	m.mu.Unlock()

	for _, handle := range handles {
		h := handle
		m.wg.Add(1)
		time.AfterFunc(m.grace, func() {
			defer m.wg.Done()
			if err := m.alloc.Revoke(h); err != nil {
				logger.Warn("failed to revoke handle", logger.String("handle", h), logger.ErrorField(err))
			}
		})
	}
}

// LiveCount reports how many handles are currently tracked.
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Wait blocks until all scheduled revocations have run. Used in teardown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// TempFileAllocator backs handles with files in a session directory.
type TempFileAllocator struct {
	dir string
}

// NewTempFileAllocator creates an allocator rooted at dir, creating it if
// needed.
func NewTempFileAllocator(dir string) (*TempFileAllocator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create handle directory: %w", err)
	}
	return &TempFileAllocator{dir: dir}, nil
}

// Create writes the bytes to a fresh file and returns its path as the handle.
func (a *TempFileAllocator) Create(data []byte) (string, error) {
	path := filepath.Join(a.dir, uuid.NewString())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write handle file: %w", err)
	}
	return path, nil
}

// Revoke deletes the handle's backing file.
func (a *TempFileAllocator) Revoke(handle string) error {
	if err := os.Remove(handle); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove handle file: %w", err)
	}
	return nil
}
