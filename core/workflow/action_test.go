package workflow

import (
	"testing"

	"soundscene/model"
)

func track(id string, duration float64) model.Track {
	return model.Track{ID: id, Name: id + ".mp3", Duration: duration}
}

func stateWithTracks(ids ...string) State {
	s := NewState(1)
	tracks := make([]model.Track, len(ids))
	for i, id := range ids {
		tracks[i] = track(id, 30)
	}
	return Reduce(s, TracksAdded{Tracks: tracks})
}

func orderOf(s State) []string {
	return s.TrackIDs()
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestProjectCreatedIsIdempotent(t *testing.T) {
	s := NewState(1)
	s = Reduce(s, ProjectCreated{ProjectID: "p1"})
	s = Reduce(s, ProjectCreated{ProjectID: "p2"})
	if s.ProjectID != "p1" {
		t.Fatalf("project id changed after second create: %s", s.ProjectID)
	}
}

func TestFirstTrackBecomesSelection(t *testing.T) {
	s := stateWithTracks("a", "b")
	if s.SelectedTrackID != "a" {
		t.Fatalf("expected first track selected, got %q", s.SelectedTrackID)
	}

	// A later add must not steal the selection.
	s = Reduce(s, TracksAdded{Tracks: []model.Track{track("c", 10)}})
	if s.SelectedTrackID != "a" {
		t.Fatalf("selection moved on append: %q", s.SelectedTrackID)
	}
}

func TestRemoveSelectedFallsToFirstRemaining(t *testing.T) {
	s := stateWithTracks("a", "b", "c")
	s = Reduce(s, TracksRemoved{IDs: []string{"a"}})
	if s.SelectedTrackID != "b" {
		t.Fatalf("expected selection to fall to b, got %q", s.SelectedTrackID)
	}
}

func TestRemoveLastTrackClearsSelectionAndBlocksContinue(t *testing.T) {
	s := stateWithTracks("a")
	s = Reduce(s, DescriptionEdited{Text: "a perfectly valid description"})
	if !CanContinue(s) {
		t.Fatal("expected CanContinue with one described track")
	}

	s = Reduce(s, TracksRemoved{IDs: []string{"a"}})
	if s.SelectedTrackID != "" {
		t.Fatalf("selection not cleared: %q", s.SelectedTrackID)
	}
	if CanContinue(s) {
		t.Fatal("CanContinue must be false with zero tracks")
	}
}

func TestRemoveDropsPerTrackState(t *testing.T) {
	s := stateWithTracks("a", "b")
	s = Reduce(s, ModeSet{Mode: model.DescriptionPerTrack})
	s = Reduce(s, DescriptionEdited{TrackID: "a", Text: "a description for track a"})
	s = Reduce(s, AnalysisCompleted{Result: model.AnalysisResult{TrackID: "a", Tempo: 120}})
	s = Reduce(s, TrackSelected{ID: "a", Toggle: true})

	s = Reduce(s, TracksRemoved{IDs: []string{"a"}})
	if _, ok := s.IndividualDescriptions["a"]; ok {
		t.Fatal("description for removed track survived")
	}
	if _, ok := s.AnalysisResults["a"]; ok {
		t.Fatal("analysis result for removed track survived")
	}
	if len(s.MultiSelection) != 0 {
		t.Fatalf("multi-selection kept removed track: %v", s.MultiSelection)
	}
}

func TestToggleMultiSelectionPreservesInsertionOrder(t *testing.T) {
	s := stateWithTracks("a", "b", "c")
	s = Reduce(s, TrackSelected{ID: "c", Toggle: true})
	s = Reduce(s, TrackSelected{ID: "a", Toggle: true})
	if !sameOrder(s.MultiSelection, []string{"c", "a"}) {
		t.Fatalf("unexpected multi-selection order: %v", s.MultiSelection)
	}

	s = Reduce(s, TrackSelected{ID: "c", Toggle: true})
	if !sameOrder(s.MultiSelection, []string{"a"}) {
		t.Fatalf("toggle off failed: %v", s.MultiSelection)
	}

	// Toggling never touches the single selection.
	if s.SelectedTrackID != "a" {
		t.Fatalf("single selection changed by toggle: %q", s.SelectedTrackID)
	}
}

func TestReorderMovesBelowTarget(t *testing.T) {
	s := stateWithTracks("a", "b", "c", "d")
	s = Reduce(s, TracksReordered{From: 0, To: 2, Drop: DropBelow})
	if !sameOrder(orderOf(s), []string{"b", "c", "a", "d"}) {
		t.Fatalf("unexpected order: %v", orderOf(s))
	}
}

func TestReorderMovesAboveTarget(t *testing.T) {
	s := stateWithTracks("a", "b", "c", "d")
	s = Reduce(s, TracksReordered{From: 3, To: 1, Drop: DropAbove})
	if !sameOrder(orderOf(s), []string{"a", "d", "b", "c"}) {
		t.Fatalf("unexpected order: %v", orderOf(s))
	}
}

func TestReorderIsAPermutation(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	base := stateWithTracks(ids...)

	for from := 0; from < len(ids); from++ {
		for to := 0; to < len(ids); to++ {
			for _, drop := range []DropPosition{DropAbove, DropBelow} {
				s := Reduce(base, TracksReordered{From: from, To: to, Drop: drop})
				if len(s.Tracks) != len(ids) {
					t.Fatalf("from=%d to=%d drop=%s: track count changed", from, to, drop)
				}
				seen := make(map[string]bool)
				for i, tr := range s.Tracks {
					seen[tr.ID] = true
					if tr.Position != i {
						t.Fatalf("from=%d to=%d drop=%s: position %d not reindexed", from, to, drop, i)
					}
				}
				if len(seen) != len(ids) {
					t.Fatalf("from=%d to=%d drop=%s: duplicate or lost track", from, to, drop)
				}
			}
		}
	}
}

func TestReorderOutOfRangeIsNoop(t *testing.T) {
	s := stateWithTracks("a", "b")
	next := Reduce(s, TracksReordered{From: 5, To: 0, Drop: DropAbove})
	if !sameOrder(orderOf(next), orderOf(s)) {
		t.Fatalf("out-of-range reorder changed state: %v", orderOf(next))
	}
}

func TestDurationUpdateReplacesValue(t *testing.T) {
	s := stateWithTracks("a")
	s = Reduce(s, DurationUpdated{TrackID: "a", Seconds: 75})
	if s.Tracks[0].Duration != 75 {
		t.Fatalf("duration not updated: %f", s.Tracks[0].Duration)
	}

	// A failed decode reports zero; the stale value must not survive.
	s = Reduce(s, DurationUpdated{TrackID: "a", Seconds: 0})
	if s.Tracks[0].Duration != 0 {
		t.Fatalf("stale duration survived: %f", s.Tracks[0].Duration)
	}
}

func validSettings() model.Settings {
	return model.Settings{
		GraphicsType:      model.GraphicsStaticImage,
		CreateCompilation: true,
	}
}

func TestAdvanceGuardsPerStep(t *testing.T) {
	s := NewState(1)

	// Step 1: no tracks, no advance.
	if next := Reduce(s, Advanced{}); next.CurrentStep != model.StepUpload {
		t.Fatal("advanced past step 1 with no tracks")
	}

	s = Reduce(s, TracksAdded{Tracks: []model.Track{track("a", 60)}})
	s = Reduce(s, Advanced{})
	if s.CurrentStep != model.StepSettings {
		t.Fatalf("expected step 2, got %d", s.CurrentStep)
	}

	// Step 2: invalid settings block.
	if next := Reduce(s, Advanced{}); next.CurrentStep != model.StepSettings {
		t.Fatal("advanced past step 2 with invalid settings")
	}
	s = Reduce(s, SettingsUpdated{Settings: validSettings()})
	s = Reduce(s, Advanced{})
	if s.CurrentStep != model.StepPrompt {
		t.Fatalf("expected step 3, got %d", s.CurrentStep)
	}

	// Step 3: description required.
	if next := Reduce(s, Advanced{}); next.CurrentStep != model.StepPrompt {
		t.Fatal("advanced past step 3 without a description")
	}
	s = Reduce(s, DescriptionEdited{Text: "a perfectly valid description"})
	s = Reduce(s, Advanced{})
	if s.CurrentStep != model.StepOverview {
		t.Fatalf("expected step 4, got %d", s.CurrentStep)
	}

	// Step 4 is terminal.
	if next := Reduce(s, Advanced{}); next.CurrentStep != model.StepOverview {
		t.Fatal("advanced past the overview step")
	}
}

func TestContinuingExistingBypassesUploadGuard(t *testing.T) {
	s := NewState(1)
	s.ContinuingExisting = true
	s = Reduce(s, Advanced{})
	if s.CurrentStep != model.StepSettings {
		t.Fatalf("expected step 2 for a continued project, got %d", s.CurrentStep)
	}
}

func TestMaxReachedStepIsMonotone(t *testing.T) {
	s := stateWithTracks("a")
	s = Reduce(s, Advanced{})
	s = Reduce(s, SettingsUpdated{Settings: validSettings()})
	s = Reduce(s, Advanced{})
	if s.MaxReachedStep != model.StepPrompt {
		t.Fatalf("expected high-water mark 3, got %d", s.MaxReachedStep)
	}

	s = Reduce(s, Retreated{})
	s = Reduce(s, Retreated{})
	if s.CurrentStep != model.StepUpload {
		t.Fatalf("expected step 1 after retreats, got %d", s.CurrentStep)
	}
	if s.MaxReachedStep != model.StepPrompt {
		t.Fatalf("retreat lowered the high-water mark: %d", s.MaxReachedStep)
	}
}

func TestJumpPastHighWaterMarkRejected(t *testing.T) {
	s := stateWithTracks("a")
	s = Reduce(s, Advanced{})

	next := Reduce(s, JumpedTo{Step: model.StepOverview})
	if next.CurrentStep != model.StepSettings {
		t.Fatalf("jump past the high-water mark was accepted: %d", next.CurrentStep)
	}

	next = Reduce(s, JumpedTo{Step: model.StepUpload})
	if next.CurrentStep != model.StepUpload {
		t.Fatalf("jump to a reached step was rejected: %d", next.CurrentStep)
	}
}

func TestRetreatAtStepOneLeavesStateUnchanged(t *testing.T) {
	s := stateWithTracks("a")
	next := Reduce(s, Retreated{})
	if next.CurrentStep != model.StepUpload {
		t.Fatalf("retreat at step 1 changed the step: %d", next.CurrentStep)
	}
}

func TestPriceComputedProjectsIntoSettings(t *testing.T) {
	s := NewState(1)
	s = Reduce(s, PriceComputed{Credits: 42})
	if s.Price != 42 || s.Settings.UserPrice != 42 {
		t.Fatalf("price projection mismatch: price=%f settings=%f", s.Price, s.Settings.UserPrice)
	}
}

func TestStateFromProjectRestoresWorkflowPosition(t *testing.T) {
	p := &model.Project{
		ID:              "p1",
		UserID:          7,
		Tracks:          []model.Track{track("a", 30), track("b", 40)},
		DescriptionMode: model.DescriptionPerTrack,
		CurrentStep:     model.StepPrompt,
		MaxReachedStep:  model.StepOverview,
		AnalysisResults: map[string]model.AnalysisResult{"a": {TrackID: "a", Tempo: 98}},
	}
	s := Reduce(NewState(7), ProjectLoaded{Project: p})

	if !s.ContinuingExisting {
		t.Fatal("loaded project not marked as continuing")
	}
	if s.CurrentStep != model.StepPrompt || s.MaxReachedStep != model.StepOverview {
		t.Fatalf("workflow position not restored: step=%d max=%d", s.CurrentStep, s.MaxReachedStep)
	}
	if s.SelectedTrackID != "a" {
		t.Fatalf("expected first track selected on load, got %q", s.SelectedTrackID)
	}
	if s.AnalysisStatus["a"] != model.AnalysisCompleted {
		t.Fatal("restored analysis result not marked completed")
	}
}

func TestReducerDoesNotMutateInput(t *testing.T) {
	s := stateWithTracks("a", "b")
	before := orderOf(s)
	_ = Reduce(s, TracksReordered{From: 0, To: 1, Drop: DropBelow})
	if !sameOrder(orderOf(s), before) {
		t.Fatalf("input state mutated: %v", orderOf(s))
	}
}
