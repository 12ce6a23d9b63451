package workflow

import (
	"soundscene/model"
)

// State is the single source of truth for one project workflow session.
// It is treated as immutable: the reducer returns an updated copy and
// never mutates shared maps or slices in place, so concurrent async
// resolutions merge through read-modify-write against the latest state.
type State struct {
	ProjectID string
	UserID    int64

	// ContinuingExisting is set when the session was opened on an existing
	// project; the step-1 guard accepts it in place of a fresh selection.
	ContinuingExisting bool

	CurrentStep    int
	MaxReachedStep int

	Tracks          []model.Track
	SelectedTrackID string
	// MultiSelection preserves insertion order for numbering in bulk contexts.
	// It is a separate set from the single selection and never conflated with it.
	MultiSelection []string

	Mode                   model.DescriptionMode
	SharedDescription      string
	IndividualDescriptions map[string]string

	Settings model.Settings

	AnalysisStatus  map[string]model.AnalysisStatus
	AnalysisResults map[string]model.AnalysisResult

	Price     float64
	Submitted bool
}

// NewState returns the initial state for a session.
func NewState(userID int64) State {
	return State{
		UserID:                 userID,
		CurrentStep:            model.StepUpload,
		MaxReachedStep:         model.StepUpload,
		Mode:                   model.DescriptionShared,
		IndividualDescriptions: map[string]string{},
		AnalysisStatus:         map[string]model.AnalysisStatus{},
		AnalysisResults:        map[string]model.AnalysisResult{},
	}
}

// clone copies the state deeply enough that reducer output never aliases
// mutable containers with its input.
func (s State) clone() State {
	out := s
	out.Tracks = append([]model.Track(nil), s.Tracks...)
	out.MultiSelection = append([]string(nil), s.MultiSelection...)
	out.IndividualDescriptions = make(map[string]string, len(s.IndividualDescriptions))
	for k, v := range s.IndividualDescriptions {
		out.IndividualDescriptions[k] = v
	}
	out.AnalysisStatus = make(map[string]model.AnalysisStatus, len(s.AnalysisStatus))
	for k, v := range s.AnalysisStatus {
		out.AnalysisStatus[k] = v
	}
	out.AnalysisResults = make(map[string]model.AnalysisResult, len(s.AnalysisResults))
	for k, v := range s.AnalysisResults {
		out.AnalysisResults[k] = v
	}
	return out
}

// TrackIDs returns the track ids in workflow order.
func (s State) TrackIDs() []string {
	ids := make([]string, len(s.Tracks))
	for i, t := range s.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration is the sum of all track durations in seconds.
func (s State) TotalDuration() float64 {
	var total float64
	for _, t := range s.Tracks {
		total += t.Duration
	}
	return total
}

// Durations returns the ordered track durations.
func (s State) Durations() []float64 {
	out := make([]float64, len(s.Tracks))
	for i, t := range s.Tracks {
		out[i] = t.Duration
	}
	return out
}

// Project assembles the persistable projection of the state.
func (s State) Project() *model.Project {
	tracks := append([]model.Track(nil), s.Tracks...)
	descriptions := make(map[string]string, len(s.IndividualDescriptions))
	for k, v := range s.IndividualDescriptions {
		descriptions[k] = v
	}
	results := make(map[string]model.AnalysisResult, len(s.AnalysisResults))
	for k, v := range s.AnalysisResults {
		results[k] = v
	}
	status := "draft"
	if s.Submitted {
		status = "submitted"
	}
	return &model.Project{
		ID:                     s.ProjectID,
		UserID:                 s.UserID,
		Settings:               s.Settings,
		Tracks:                 tracks,
		DescriptionMode:        s.Mode,
		SharedDescription:      s.SharedDescription,
		IndividualDescriptions: descriptions,
		AnalysisResults:        results,
		CurrentStep:            s.CurrentStep,
		MaxReachedStep:         s.MaxReachedStep,
		Status:                 status,
	}
}
