package workflow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"soundscene/model"
)

func TestDescriptionValidBounds(t *testing.T) {
	cases := []struct {
		text  string
		valid bool
	}{
		{"", false},
		{"too short", false},
		{"exactly ten", true},
		{strings.Repeat("x", 500), true},
		{strings.Repeat("x", 501), false},
		// Multi-byte text counts runes, not bytes.
		{"十个中文字符刚刚好啊", true},
		{"九个中文字符啊啊啊", false},
	}
	for _, c := range cases {
		if got := DescriptionValid(c.text); got != c.valid {
			t.Errorf("DescriptionValid(%q) = %v, want %v", c.text, got, c.valid)
		}
	}
}

func TestSharedValidityAppliesUniformly(t *testing.T) {
	s := stateWithTracks("a", "b", "c")
	s = Reduce(s, DescriptionEdited{Text: "one shared description"})

	validity := ValidityMap(s)
	for _, id := range []string{"a", "b", "c"} {
		if !validity[id] {
			t.Fatalf("shared validity not applied to %s", id)
		}
	}
	if !CanContinue(s) {
		t.Fatal("expected CanContinue with a valid shared description")
	}
}

func TestPerTrackValidityMissingEntryIsInvalid(t *testing.T) {
	s := stateWithTracks("a", "b")
	s = Reduce(s, ModeSet{Mode: model.DescriptionPerTrack})
	s = Reduce(s, DescriptionEdited{TrackID: "a", Text: "description for track a"})

	validity := ValidityMap(s)
	if !validity["a"] || validity["b"] {
		t.Fatalf("unexpected validity map: %v", validity)
	}
	if CanContinue(s) {
		t.Fatal("CanContinue must be false while any track lacks a description")
	}

	s = Reduce(s, DescriptionEdited{TrackID: "b", Text: "description for track b"})
	if !CanContinue(s) {
		t.Fatal("expected CanContinue once every track is described")
	}
}

func TestModeSwitchNeverAutoPopulatesShared(t *testing.T) {
	s := stateWithTracks("a")
	s = Reduce(s, ModeSet{Mode: model.DescriptionPerTrack})
	s = Reduce(s, DescriptionEdited{TrackID: "a", Text: "an individual description"})

	// Switching to shared with an empty stored slot leaves shared empty.
	s = Reduce(s, ModeSet{Mode: model.DescriptionShared, Shared: ""})
	if s.SharedDescription != "" {
		t.Fatalf("shared description auto-populated: %q", s.SharedDescription)
	}
	if CanContinue(s) {
		t.Fatal("empty shared description must not pass the guard")
	}
}

func TestApplicableDescriptionsFollowMode(t *testing.T) {
	s := stateWithTracks("a", "b")
	s = Reduce(s, DescriptionEdited{Text: "the shared description"})

	for id, text := range ApplicableDescriptions(s) {
		if text != "the shared description" {
			t.Fatalf("track %s got %q in shared mode", id, text)
		}
	}

	s = Reduce(s, ModeSet{Mode: model.DescriptionPerTrack, Individual: map[string]string{
		"a": "description for a", "b": "description for b",
	}})
	applicable := ApplicableDescriptions(s)
	if applicable["a"] != "description for a" || applicable["b"] != "description for b" {
		t.Fatalf("per-track descriptions not applied: %v", applicable)
	}
}

// mapDescriptionStore is an in-memory DescriptionStore.
type mapDescriptionStore struct {
	mu         sync.Mutex
	shared     map[string]string
	individual map[string]map[string]string
}

func newMapDescriptionStore() *mapDescriptionStore {
	return &mapDescriptionStore{
		shared:     make(map[string]string),
		individual: make(map[string]map[string]string),
	}
}

func (m *mapDescriptionStore) SaveShared(_ context.Context, projectID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shared[projectID] = text
	return nil
}

func (m *mapDescriptionStore) LoadShared(_ context.Context, projectID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shared[projectID], nil
}

func (m *mapDescriptionStore) SaveIndividual(_ context.Context, projectID string, descriptions map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]string, len(descriptions))
	for k, v := range descriptions {
		copied[k] = v
	}
	m.individual[projectID] = copied
	return nil
}

func (m *mapDescriptionStore) LoadIndividual(_ context.Context, projectID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.individual[projectID]))
	for k, v := range m.individual[projectID] {
		out[k] = v
	}
	return out, nil
}

func TestModeRoundTripRestoresText(t *testing.T) {
	ctx := context.Background()
	m := NewManager(1, ManagerDeps{Descriptions: newMapDescriptionStore()})

	m.Dispatch(ctx, TracksAdded{Tracks: []model.Track{track("a", 30)}})
	m.Dispatch(ctx, DescriptionEdited{Text: "the original shared text"})

	state, err := m.SetMode(ctx, model.DescriptionPerTrack)
	if err != nil {
		t.Fatal(err)
	}
	if state.Mode != model.DescriptionPerTrack {
		t.Fatalf("mode not switched: %s", state.Mode)
	}

	state = m.Dispatch(ctx, DescriptionEdited{TrackID: "a", Text: "per-track text for a"})

	// Back to shared: the original text must come back.
	state, err = m.SetMode(ctx, model.DescriptionShared)
	if err != nil {
		t.Fatal(err)
	}
	if state.SharedDescription != "the original shared text" {
		t.Fatalf("shared text lost in round trip: %q", state.SharedDescription)
	}

	// And forward again: the per-track text must come back too.
	state, err = m.SetMode(ctx, model.DescriptionPerTrack)
	if err != nil {
		t.Fatal(err)
	}
	if state.IndividualDescriptions["a"] != "per-track text for a" {
		t.Fatalf("per-track text lost in round trip: %q", state.IndividualDescriptions["a"])
	}
}

func TestSetModeSameModeIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newMapDescriptionStore()
	m := NewManager(1, ManagerDeps{Descriptions: store})

	m.Dispatch(ctx, DescriptionEdited{Text: "the shared text here"})
	state, err := m.SetMode(ctx, model.DescriptionShared)
	if err != nil {
		t.Fatal(err)
	}
	if state.SharedDescription != "the shared text here" {
		t.Fatalf("no-op mode set changed text: %q", state.SharedDescription)
	}
	store.mu.Lock()
	saved := len(store.shared)
	store.mu.Unlock()
	if saved != 0 {
		t.Fatal("no-op mode set touched the store")
	}
}
