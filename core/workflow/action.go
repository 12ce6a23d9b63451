package workflow

import (
	"soundscene/model"
)

// Action is a tagged state transition request. Every mutation to a session
// goes through Reduce with one of the concrete action types below; side
// effects (network calls, autosave) are issued by the orchestration layer
// after observing the reducer output, never from inside the reducer.
type Action interface {
	isAction()
}

// ProjectCreated binds the lazily-created project id to the session.
type ProjectCreated struct {
	ProjectID string
}

// ProjectLoaded replaces the session state with a reconciled snapshot of an
// existing project.
type ProjectLoaded struct {
	Project *model.Project
}

// TracksAdded appends tracks in the order their uploads resolved.
type TracksAdded struct {
	Tracks []model.Track
}

// TracksRemoved removes the given tracks.
type TracksRemoved struct {
	IDs []string
}

// TrackSelected replaces the single selection, or toggles membership in the
// multi-selection set when Toggle is set.
type TrackSelected struct {
	ID     string
	Toggle bool
}

// TracksReordered moves the track at From relative to the track at To.
type TracksReordered struct {
	From int
	To   int
	Drop DropPosition
}

// DurationUpdated records the decoded duration for one track. A failed decode
// reports zero seconds rather than leaving a stale value.
type DurationUpdated struct {
	TrackID string
	Seconds float64
}

// ModeSet switches the description mode. The orchestration layer snapshots
// the outgoing mode's text and loads the stored text for the incoming mode
// before dispatching, so the reducer only swaps state.
type ModeSet struct {
	Mode       model.DescriptionMode
	Shared     string
	Individual map[string]string
}

// DescriptionEdited updates the active description text. TrackID is empty in
// shared mode.
type DescriptionEdited struct {
	TrackID string
	Text    string
}

// SettingsUpdated replaces the video settings.
type SettingsUpdated struct {
	Settings model.Settings
}

// PriceComputed records the latest quote projection.
type PriceComputed struct {
	Credits float64
}

// AnalysisStatusChanged updates a track's job status.
type AnalysisStatusChanged struct {
	TrackID string
	Status  model.AnalysisStatus
}

// AnalysisCompleted stores a finished analysis result.
type AnalysisCompleted struct {
	Result model.AnalysisResult
}

// Advanced requests a forward step transition; the guard is evaluated by the
// reducer and a failed guard leaves the state unchanged.
type Advanced struct{}

// Retreated requests a backward step transition. At step 1 the state is
// unchanged; the orchestration layer treats that as the exit-workflow signal.
type Retreated struct{}

// JumpedTo requests a direct transition to a previously reached step.
type JumpedTo struct {
	Step int
}

// MarkedSubmitted records that the render request has been handed off.
type MarkedSubmitted struct{}

func (ProjectCreated) isAction()        {}
func (ProjectLoaded) isAction()         {}
func (TracksAdded) isAction()           {}
func (TracksRemoved) isAction()         {}
func (TrackSelected) isAction()         {}
func (TracksReordered) isAction()       {}
func (DurationUpdated) isAction()       {}
func (ModeSet) isAction()               {}
func (DescriptionEdited) isAction()     {}
func (SettingsUpdated) isAction()       {}
func (PriceComputed) isAction()         {}
func (AnalysisStatusChanged) isAction() {}
func (AnalysisCompleted) isAction()     {}
func (Advanced) isAction()              {}
func (Retreated) isAction()             {}
func (JumpedTo) isAction()              {}
func (MarkedSubmitted) isAction()       {}

// Reduce applies an action to the state and returns the next state. It is a
// pure function: no I/O, no clock, no mutation of the input.
func Reduce(s State, a Action) State {
	switch action := a.(type) {
	case ProjectCreated:
		if s.ProjectID != "" {
			return s // idempotent: the id is stable once created
		}
		next := s.clone()
		next.ProjectID = action.ProjectID
		return next

	case ProjectLoaded:
		return stateFromProject(action.Project)

	case TracksAdded:
		return reduceTracksAdded(s, action)

	case TracksRemoved:
		return reduceTracksRemoved(s, action)

	case TrackSelected:
		return reduceTrackSelected(s, action)

	case TracksReordered:
		return reduceTracksReordered(s, action)

	case DurationUpdated:
		return reduceDurationUpdated(s, action)

	case ModeSet:
		return reduceModeSet(s, action)

	case DescriptionEdited:
		return reduceDescriptionEdited(s, action)

	case SettingsUpdated:
		next := s.clone()
		next.Settings = action.Settings
		return next

	case PriceComputed:
		next := s.clone()
		next.Price = action.Credits
		next.Settings.UserPrice = action.Credits
		return next

	case AnalysisStatusChanged:
		next := s.clone()
		next.AnalysisStatus[action.TrackID] = action.Status
		return next

	case AnalysisCompleted:
		next := s.clone()
		next.AnalysisStatus[action.Result.TrackID] = model.AnalysisCompleted
		next.AnalysisResults[action.Result.TrackID] = action.Result
		return next

	case Advanced:
		return reduceAdvanced(s)

	case Retreated:
		if s.CurrentStep <= model.StepUpload {
			return s // exit-workflow is handled by the orchestration layer
		}
		next := s.clone()
		next.CurrentStep--
		return next

	case JumpedTo:
		if action.Step < model.StepUpload || action.Step > s.MaxReachedStep {
			return s // no skipping ahead
		}
		next := s.clone()
		next.CurrentStep = action.Step
		return next

	case MarkedSubmitted:
		next := s.clone()
		next.Submitted = true
		return next
	}
	return s
}

func reduceAdvanced(s State) State {
	if !CanAdvance(s) {
		return s
	}
	next := s.clone()
	next.CurrentStep++
	if next.CurrentStep > next.MaxReachedStep {
		next.MaxReachedStep = next.CurrentStep
	}
	return next
}

// stateFromProject rebuilds session state from a persisted project.
func stateFromProject(p *model.Project) State {
	s := NewState(p.UserID)
	s.ProjectID = p.ID
	s.ContinuingExisting = true
	s.Settings = p.Settings
	s.Tracks = append([]model.Track(nil), p.Tracks...)
	if p.DescriptionMode != "" {
		s.Mode = p.DescriptionMode
	}
	s.SharedDescription = p.SharedDescription
	for k, v := range p.IndividualDescriptions {
		s.IndividualDescriptions[k] = v
	}
	for k, v := range p.AnalysisResults {
		s.AnalysisResults[k] = v
		s.AnalysisStatus[k] = model.AnalysisCompleted
	}
	if p.CurrentStep >= model.StepUpload && p.CurrentStep <= model.StepOverview {
		s.CurrentStep = p.CurrentStep
	}
	if p.MaxReachedStep > s.CurrentStep {
		s.MaxReachedStep = p.MaxReachedStep
	} else {
		s.MaxReachedStep = s.CurrentStep
	}
	if len(s.Tracks) > 0 {
		s.SelectedTrackID = s.Tracks[0].ID
	}
	s.Submitted = p.Status == "submitted"
	s.Price = p.Settings.UserPrice
	return s
}
