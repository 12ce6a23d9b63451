package persist

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"soundscene/logger"
	"soundscene/model"
)

// Cache is the synchronous write-through target, the source of truth for the
// active session.
type Cache interface {
	WriteThrough(ctx context.Context, project *model.Project) error
}

// Remote is the durable store behind the debounced sync.
type Remote interface {
	Save(ctx context.Context, project *model.Project) error
}

// Sink is a best-effort, fire-and-forget delivery mechanism that can complete
// while the caller is being torn down. No response is awaited or required.
type Sink interface {
	Send(payload []byte)
}

// DefaultDebounce is the quiescence window before a remote push.
const DefaultDebounce = 400 * time.Millisecond

// Store persists every workflow mutation: synchronously into the cache,
// and to the remote store after a debounce. Two triggers flush outside the
// debounce: visibility-hidden (Flush) and unload (FlushBestEffort).
type Store struct {
	cache    Cache
	remote   Remote
	sink     Sink
	debounce time.Duration

	mu      sync.Mutex
	pending *model.Project
	timer   *time.Timer
	loading bool
	wg      sync.WaitGroup
}

// NewStore creates a persistence store. A non-positive debounce uses the default.
func NewStore(cache Cache, remote Remote, sink Sink, debounce time.Duration) *Store {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Store{
		cache:    cache,
		remote:   remote,
		sink:     sink,
		debounce: debounce,
	}
}

// BeginLoad suppresses autosave writes while a remote load is in progress, so
// a fresh load can never be overwritten by a stale pending save.
func (s *Store) BeginLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// EndLoad re-enables autosave writes.
func (s *Store) EndLoad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
}

// Record persists a mutated project: write-through to the cache now, remote
// push after the debounce window. Later records within the window supersede
// earlier ones; the eventual push carries the latest full state, so nothing
// recorded inside the window is lost. Record never fails; storage trouble is
// logged and must not block the session.
func (s *Store) Record(ctx context.Context, project *model.Project) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.cache.WriteThrough(ctx, project); err != nil {
		// Cache trouble must not block the session; the remote push still runs.
		logger.Warn("write-through cache failed",
			logger.String("projectId", project.ID), logger.ErrorField(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = project
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.timerFlush)
	} else {
		s.timer.Reset(s.debounce)
	}
}

func (s *Store) timerFlush() {
	s.mu.Lock()
	pending := s.takeLocked()
	s.mu.Unlock()
	if pending == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.remote.Save(context.Background(), pending); err != nil {
			logger.Warn("debounced remote save failed",
				logger.String("projectId", pending.ID), logger.ErrorField(err))
		}
	}()
}

func (s *Store) takeLocked() *model.Project {
	pending := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return pending
}

// Flush pushes any pending state immediately, synchronously. Used for the
// visibility-hidden trigger.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.takeLocked()
	s.mu.Unlock()
	if pending == nil {
		return nil
	}
	return s.remote.Save(ctx, pending)
}

// FlushBestEffort delivers any pending state through the fire-and-forget
// sink. Used for the unload trigger, where no response can be awaited.
func (s *Store) FlushBestEffort() {
	s.mu.Lock()
	pending := s.takeLocked()
	s.mu.Unlock()
	if pending == nil {
		return
	}

	payload, err := json.Marshal(pending)
	if err != nil {
		logger.Error("failed to marshal unload payload",
			logger.String("projectId", pending.ID), logger.ErrorField(err))
		return
	}
	s.sink.Send(payload)
}

// Close waits for in-flight remote pushes and flushes anything pending.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.wg.Wait()
	return err
}
