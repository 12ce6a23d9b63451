package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"soundscene/model"
)

type mockCache struct {
	mu     sync.Mutex
	writes []*model.Project
	fail   bool
}

func (m *mockCache) WriteThrough(_ context.Context, project *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("redis down")
	}
	m.writes = append(m.writes, project)
	return nil
}

func (m *mockCache) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

type mockRemote struct {
	mu    sync.Mutex
	saves []*model.Project
}

func (m *mockRemote) Save(_ context.Context, project *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, project)
	return nil
}

func (m *mockRemote) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func (m *mockRemote) last() *model.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saves) == 0 {
		return nil
	}
	return m.saves[len(m.saves)-1]
}

type mockSink struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (m *mockSink) Send(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
}

func (m *mockSink) lastPayload() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.payloads) == 0 {
		return nil
	}
	return m.payloads[len(m.payloads)-1]
}

func project(id string, step int) *model.Project {
	return &model.Project{ID: id, CurrentStep: step}
}

func newTestStore(debounce time.Duration) (*Store, *mockCache, *mockRemote, *mockSink) {
	cache := &mockCache{}
	remote := &mockRemote{}
	sink := &mockSink{}
	return NewStore(cache, remote, sink, debounce), cache, remote, sink
}

func TestWriteThroughIsSynchronous(t *testing.T) {
	store, cache, remote, _ := newTestStore(time.Hour)

	store.Record(context.Background(), project("p1", 1))
	if cache.count() != 1 {
		t.Fatalf("cache writes: %d", cache.count())
	}
	// The remote push waits for the debounce window.
	if remote.count() != 0 {
		t.Fatalf("remote saved before the debounce window: %d", remote.count())
	}
}

func TestDebouncedPushCarriesLatestState(t *testing.T) {
	store, _, remote, _ := newTestStore(20 * time.Millisecond)
	ctx := context.Background()

	store.Record(ctx, project("p1", 1))
	store.Record(ctx, project("p1", 2))

	time.Sleep(100 * time.Millisecond)
	if remote.count() != 1 {
		t.Fatalf("expected one coalesced save, got %d", remote.count())
	}
	if remote.last().CurrentStep != 2 {
		t.Fatalf("save carried stale state: step %d", remote.last().CurrentStep)
	}
}

func TestRecordResetsDebounceWindow(t *testing.T) {
	store, _, remote, _ := newTestStore(50 * time.Millisecond)
	ctx := context.Background()

	store.Record(ctx, project("p1", 1))
	time.Sleep(30 * time.Millisecond)
	store.Record(ctx, project("p1", 2))
	time.Sleep(30 * time.Millisecond)

	// 60ms after the first record, but only 30ms after the second.
	if remote.count() != 0 {
		t.Fatal("push fired inside the reset window")
	}

	time.Sleep(50 * time.Millisecond)
	if remote.count() != 1 {
		t.Fatalf("push never fired: %d saves", remote.count())
	}
}

func TestUnloadDeliversLatestFullState(t *testing.T) {
	store, _, remote, sink := newTestStore(time.Hour)
	ctx := context.Background()

	// Two mutations inside the debounce window, then teardown.
	store.Record(ctx, project("p1", 2))
	store.Record(ctx, project("p1", 3))
	store.FlushBestEffort()

	payload := sink.lastPayload()
	if payload == nil {
		t.Fatal("no unload payload sent")
	}
	var got model.Project
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "p1" || got.CurrentStep != 3 {
		t.Fatalf("unload payload stale: id=%s step=%d", got.ID, got.CurrentStep)
	}

	// The pending push was consumed; the timer must not fire later.
	if remote.count() != 0 {
		t.Fatalf("remote also saved after unload: %d", remote.count())
	}
	store.FlushBestEffort()
	if len(sink.payloads) != 1 {
		t.Fatal("second unload sent a duplicate payload")
	}
}

func TestPersistedPayloadCarriesObjectKeys(t *testing.T) {
	store, cache, _, sink := newTestStore(time.Hour)
	ctx := context.Background()

	p := project("p1", 1)
	p.Tracks = []model.Track{{ID: "t1", Name: "a.mp3", ObjectPath: "projects/p1/tracks/t1/a.mp3"}}
	store.Record(ctx, p)
	store.FlushBestEffort()

	// Both persistence paths serialize through JSON; a load must hand back the
	// object key or stored audio can never be removed or re-resolved.
	var got model.Project
	if err := json.Unmarshal(sink.lastPayload(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Tracks) != 1 || got.Tracks[0].ObjectPath != "projects/p1/tracks/t1/a.mp3" {
		t.Fatalf("object key lost in persistence round trip: %+v", got.Tracks)
	}

	cached, err := json.Marshal(cache.writes[0])
	if err != nil {
		t.Fatal(err)
	}
	var fromCache model.Project
	if err := json.Unmarshal(cached, &fromCache); err != nil {
		t.Fatal(err)
	}
	if fromCache.Tracks[0].ObjectPath == "" {
		t.Fatal("object key lost in cache round trip")
	}
}

func TestFlushIsSynchronousAndConsumesPending(t *testing.T) {
	store, _, remote, _ := newTestStore(time.Hour)
	ctx := context.Background()

	store.Record(ctx, project("p1", 4))
	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if remote.count() != 1 || remote.last().CurrentStep != 4 {
		t.Fatalf("flush did not save the pending state: %d saves", remote.count())
	}

	if err := store.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if remote.count() != 1 {
		t.Fatal("empty flush saved again")
	}
}

func TestLoadSuppressesAutosave(t *testing.T) {
	store, cache, remote, _ := newTestStore(10 * time.Millisecond)
	ctx := context.Background()

	store.BeginLoad()
	store.Record(ctx, project("p1", 1))
	store.EndLoad()

	time.Sleep(50 * time.Millisecond)
	if cache.count() != 0 || remote.count() != 0 {
		t.Fatalf("autosave ran during load: cache=%d remote=%d", cache.count(), remote.count())
	}

	// Writes resume after the load.
	store.Record(ctx, project("p1", 2))
	if cache.count() != 1 {
		t.Fatal("autosave still suppressed after load")
	}
}

func TestBeginLoadDiscardsPendingState(t *testing.T) {
	store, _, remote, _ := newTestStore(20 * time.Millisecond)
	ctx := context.Background()

	store.Record(ctx, project("p1", 3))
	store.BeginLoad()
	store.EndLoad()

	time.Sleep(80 * time.Millisecond)
	if remote.count() != 0 {
		t.Fatal("stale pending state saved over a fresh load")
	}
}

func TestCacheFailureDoesNotBlockRemotePush(t *testing.T) {
	cache := &mockCache{fail: true}
	remote := &mockRemote{}
	store := NewStore(cache, remote, &mockSink{}, 10*time.Millisecond)

	store.Record(context.Background(), project("p1", 1))
	time.Sleep(60 * time.Millisecond)
	if remote.count() != 1 {
		t.Fatalf("remote push blocked by cache failure: %d saves", remote.count())
	}
}
