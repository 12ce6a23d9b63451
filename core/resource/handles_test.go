package resource

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// memAllocator tracks allocations in memory.
type memAllocator struct {
	mu      sync.Mutex
	next    int
	backing map[string]bool
}

func newMemAllocator() *memAllocator {
	return &memAllocator{backing: make(map[string]bool)}
}

func (a *memAllocator) Create(_ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	handle := fmt.Sprintf("handle-%d", a.next)
	a.backing[handle] = true
	return handle, nil
}

func (a *memAllocator) Revoke(handle string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.backing, handle)
	return nil
}

func (a *memAllocator) alive(handle string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.backing[handle]
}

func TestRevokeAfterWaitsForGrace(t *testing.T) {
	alloc := newMemAllocator()
	m := NewManager(alloc, 50*time.Millisecond)

	handle, err := m.Create([]byte("audio"))
	if err != nil {
		t.Fatal(err)
	}
	if m.LiveCount() != 1 {
		t.Fatalf("live count: %d", m.LiveCount())
	}

	m.RevokeAfter(handle)
	// Untracked immediately, but the backing resource survives the grace
	// window for anything still reading it.
	if m.LiveCount() != 0 {
		t.Fatalf("live count after revoke: %d", m.LiveCount())
	}
	if !alloc.alive(handle) {
		t.Fatal("handle revoked before the grace delay")
	}

	m.Wait()
	if alloc.alive(handle) {
		t.Fatal("handle still alive after the grace delay")
	}
}

func TestRevokeAfterUnknownHandleIsNoop(t *testing.T) {
	alloc := newMemAllocator()
	m := NewManager(alloc, time.Millisecond)

	handle, _ := m.Create([]byte("audio"))
	m.RevokeAfter(handle)
	m.RevokeAfter(handle) // second revoke must not double-schedule
	m.RevokeAfter("never-created")
	m.Wait()

	if alloc.alive(handle) {
		t.Fatal("handle survived revocation")
	}
}

func TestRevokeAllClearsEveryHandle(t *testing.T) {
	alloc := newMemAllocator()
	m := NewManager(alloc, time.Millisecond)

	handles := make([]string, 3)
	for i := range handles {
		h, err := m.Create([]byte("audio"))
		if err != nil {
			t.Fatal(err)
		}
		handles[i] = h
	}

	m.RevokeAll()
	if m.LiveCount() != 0 {
		t.Fatalf("live count after RevokeAll: %d", m.LiveCount())
	}

	m.Wait()
	for _, h := range handles {
		if alloc.alive(h) {
			t.Fatalf("handle %s survived RevokeAll", h)
		}
	}
}

func TestTempFileAllocatorRoundTrip(t *testing.T) {
	alloc, err := NewTempFileAllocator(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	handle, err := alloc.Create([]byte("bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if err := alloc.Revoke(handle); err != nil {
		t.Fatal(err)
	}
	// Revoking an already-removed handle is not an error.
	if err := alloc.Revoke(handle); err != nil {
		t.Fatal(err)
	}
}
