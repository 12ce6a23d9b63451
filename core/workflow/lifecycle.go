package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"soundscene/core/analysis"
	"soundscene/core/persist"
	"soundscene/core/pricing"
	"soundscene/core/resource"
	"soundscene/logger"
	"soundscene/model"
	"soundscene/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrProjectNotFound is returned when neither the cache nor the remote store
// knows the requested project id.
var ErrProjectNotFound = errors.New("project not found")

// StateCache reads and clears the locally cached project state.
type StateCache interface {
	Get(ctx context.Context, projectID string) (*model.Project, error)
	Delete(ctx context.Context, projectID string) error
}

// DescriptionStore is the durable slot storage behind description mode
// switches, namespaced by project id.
type DescriptionStore interface {
	SaveShared(ctx context.Context, projectID, text string) error
	LoadShared(ctx context.Context, projectID string) (string, error)
	SaveIndividual(ctx context.Context, projectID string, descriptions map[string]string) error
	LoadIndividual(ctx context.Context, projectID string) (map[string]string, error)
}

// URLResolver resolves a track's object key to a time-bounded playable URL.
type URLResolver interface {
	PlayableURL(ctx context.Context, key string) (string, error)
}

// Submitter hands the finished render request to the generation backend.
type Submitter interface {
	Submit(ctx context.Context, request *model.RenderRequest) (string, error)
}

// ManagerDeps wires a project manager's collaborators.
type ManagerDeps struct {
	Projects     repository.ProjectRepository
	Tracks       repository.TrackRepository
	Analysis     repository.AnalysisRepository
	Store        *persist.Store
	Pricer       *pricing.Engine
	Analyzer     *analysis.Orchestrator
	Handles      *resource.Manager
	StateCache   StateCache
	Descriptions DescriptionStore
	Resolver     URLResolver
	Renderer     Submitter
	Locator      LocatorFunc
	LocatorEvery time.Duration
}

// Manager owns one project workflow session end to end: lazy creation,
// load/reconcile, dispatch orchestration, and reset.
type Manager struct {
	session *Session
	deps    ManagerDeps

	mu        sync.Mutex
	resetDone bool
}

// NewManager creates a workflow manager for a user session.
func NewManager(userID int64, deps ManagerDeps) *Manager {
	return &Manager{
		session: NewSession(userID, deps.Store, deps.Pricer, deps.Locator, deps.LocatorEvery),
		deps:    deps,
	}
}

// State returns a snapshot of the session state.
func (m *Manager) State() State {
	return m.session.State()
}

// Dispatch forwards an action to the session.
func (m *Manager) Dispatch(ctx context.Context, a Action) State {
	return m.session.Dispatch(ctx, a)
}

// EnsureProject lazily creates the project on the first state-mutating
// action. It is idempotent: once an id exists it is returned unchanged.
func (m *Manager) EnsureProject(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.session.State()
	if state.ProjectID != "" {
		return state.ProjectID, nil
	}

	project := state.Project()
	project.ID = uuid.NewString()
	if err := m.deps.Projects.CreateProject(project); err != nil {
		return "", err
	}
	m.resetDone = false
	m.session.Dispatch(ctx, ProjectCreated{ProjectID: project.ID})
	logger.Info("project created", logger.String("projectId", project.ID), logger.Int64("userId", state.UserID))
	return project.ID, nil
}

// LoadExisting reconciles the session with a persisted project. The local
// cache, when present, wins over the remote snapshot so fresher local edits
// are never clobbered by a stale remote copy; the remote store is consulted
// only when no cache entry exists.
func (m *Manager) LoadExisting(ctx context.Context, projectID string, startFresh bool) error {
	m.deps.Store.BeginLoad()
	defer m.deps.Store.EndLoad()

	if startFresh {
		if err := m.deps.StateCache.Delete(ctx, projectID); err != nil {
			logger.Warn("failed to discard cached state", logger.String("projectId", projectID), logger.ErrorField(err))
		}
	} else {
		cached, err := m.deps.StateCache.Get(ctx, projectID)
		if err != nil {
			logger.Warn("cache read failed, falling back to remote", logger.String("projectId", projectID), logger.ErrorField(err))
		}
		if cached != nil {
			m.adopt(cached)
			return nil
		}
	}

	project, err := m.deps.Projects.GetProjectByID(projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return ErrProjectNotFound
	}

	tracks, err := m.deps.Tracks.GetTracksByProjectID(projectID)
	if err != nil {
		return err
	}

	// Resolve playable URLs in parallel. A per-track failure never aborts the
	// load; the track is kept with an unresolved URL.
	resolved := make([]model.Track, len(tracks))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tracks {
		i, t := i, *t
		g.Go(func() error {
			if t.ObjectPath != "" {
				url, err := m.deps.Resolver.PlayableURL(gctx, t.ObjectPath)
				if err != nil {
					logger.Warn("failed to resolve playable URL",
						logger.String("trackId", t.ID), logger.ErrorField(err))
				} else {
					t.URL = url
				}
			}
			resolved[i] = t
			return nil
		})
	}
	g.Wait()
	project.Tracks = resolved

	results, err := m.deps.Analysis.GetAnalysisByProjectID(projectID)
	if err != nil {
		logger.Warn("failed to load analysis results", logger.String("projectId", projectID), logger.ErrorField(err))
	} else {
		project.AnalysisResults = results
	}

	m.adopt(project)
	return nil
}

func (m *Manager) adopt(project *model.Project) {
	state := stateFromProject(project)
	m.session.replace(state)
	m.deps.Analyzer.Prime(state.AnalysisResults)
	m.mu.Lock()
	m.resetDone = false
	m.mu.Unlock()
}

// SetMode switches the description mode. The outgoing mode's text is
// snapshotted to durable storage before the switch, and the incoming mode's
// stored text is loaded; validity is recomputed synchronously by the reducer
// so the continue affordance is never stale.
func (m *Manager) SetMode(ctx context.Context, next model.DescriptionMode) (State, error) {
	state := m.session.State()
	if state.Mode == next {
		return state, nil
	}

	// Snapshot outgoing data first: a toggle never discards text.
	if state.Mode == model.DescriptionShared {
		if err := m.deps.Descriptions.SaveShared(ctx, state.ProjectID, state.SharedDescription); err != nil {
			return state, err
		}
	} else {
		if err := m.deps.Descriptions.SaveIndividual(ctx, state.ProjectID, state.IndividualDescriptions); err != nil {
			return state, err
		}
	}

	action := ModeSet{Mode: next}
	if next == model.DescriptionShared {
		shared, err := m.deps.Descriptions.LoadShared(ctx, state.ProjectID)
		if err != nil {
			return state, err
		}
		action.Shared = shared
	} else {
		individual, err := m.deps.Descriptions.LoadIndividual(ctx, state.ProjectID)
		if err != nil {
			return state, err
		}
		action.Individual = individual
	}

	return m.session.Dispatch(ctx, action), nil
}

// Advance runs the step-specific guard and moves forward. On the prompt-to-overview
// transition all outstanding analysis jobs are attempted first; the
// transition proceeds whether or not every job succeeded, and the failed
// track ids are returned for a non-fatal warning.
func (m *Manager) Advance(ctx context.Context) (State, []string, bool) {
	state := m.session.State()
	if !CanAdvance(state) {
		return state, nil, false
	}

	var failed []string
	if state.CurrentStep == model.StepPrompt {
		failed = m.Analyze(ctx)
	}

	return m.session.Dispatch(ctx, Advanced{}), failed, true
}

// Analyze runs every outstanding analysis job, folds the outcomes into the
// session state and persists new results. It returns the track ids whose job
// failed; those tracks stay outstanding for the next attempt.
func (m *Manager) Analyze(ctx context.Context) []string {
	state := m.session.State()
	failed := m.deps.Analyzer.AnalyzeMissingTracks(ctx, state.Tracks)

	for id, result := range m.deps.Analyzer.Results() {
		if _, ok := state.AnalysisResults[id]; ok {
			continue
		}
		m.session.Dispatch(ctx, AnalysisCompleted{Result: result})
		if err := m.deps.Analysis.UpsertAnalysis(state.ProjectID, result); err != nil {
			logger.Warn("failed to persist analysis result",
				logger.String("trackId", id), logger.ErrorField(err))
		}
	}
	for _, id := range failed {
		m.session.Dispatch(ctx, AnalysisStatusChanged{TrackID: id, Status: model.AnalysisFailed})
	}
	return failed
}

// Retreat moves one step back. At step 1 it signals exit-workflow instead:
// project-scoped local resources are released and pending writes flushed.
func (m *Manager) Retreat(ctx context.Context) (State, bool) {
	state := m.session.State()
	if state.CurrentStep > model.StepUpload {
		return m.session.Dispatch(ctx, Retreated{}), false
	}

	// Exit: playback stops first, handles are revoked after the grace delay.
	m.deps.Handles.RevokeAll()
	if err := m.deps.Store.Flush(ctx); err != nil {
		logger.Warn("flush on workflow exit failed", logger.ErrorField(err))
	}
	return state, true
}

// JumpTo moves directly to a previously reached step.
func (m *Manager) JumpTo(ctx context.Context, step int) State {
	return m.session.Dispatch(ctx, JumpedTo{Step: step})
}

// Submit builds the render request from the overview step and hands it to
// the rendering backend.
func (m *Manager) Submit(ctx context.Context) (string, error) {
	state := m.session.State()
	if state.ProjectID == "" {
		return "", errors.New("no project to submit")
	}
	if state.CurrentStep != model.StepOverview {
		return "", errors.New("submit is only available from the overview step")
	}
	if state.Submitted {
		return "", errors.New("project already submitted")
	}

	request := &model.RenderRequest{
		ProjectID:    state.ProjectID,
		Settings:     state.Settings,
		Tracks:       append([]model.Track(nil), state.Tracks...),
		Descriptions: ApplicableDescriptions(state),
		Analysis:     state.AnalysisResults,
		Price:        state.Price,
		SubmittedAt:  time.Now(),
	}

	jobID, err := m.deps.Renderer.Submit(ctx, request)
	if err != nil {
		return "", err
	}

	m.session.Dispatch(ctx, MarkedSubmitted{})
	if err := m.deps.Projects.UpdateProjectStatus(state.ProjectID, "submitted"); err != nil {
		logger.Warn("failed to mark project submitted", logger.String("projectId", state.ProjectID), logger.ErrorField(err))
	}
	if err := m.deps.Store.Flush(ctx); err != nil {
		logger.Warn("flush after submit failed", logger.ErrorField(err))
	}

	logger.Info("render request submitted",
		logger.String("projectId", state.ProjectID), logger.String("jobId", jobID))
	return jobID, nil
}

// Reset clears all project-scoped state in a fixed order: session media,
// then tracks, then settings/validation, then analysis. An idempotency flag
// makes a duplicate reset a no-op.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	if m.resetDone {
		m.mu.Unlock()
		return nil
	}
	m.resetDone = true
	m.mu.Unlock()

	state := m.session.State()

	// 1. Audio/session media.
	m.deps.Handles.RevokeAll()

	// 2. Tracks.
	if len(state.Tracks) > 0 {
		m.session.Dispatch(ctx, TracksRemoved{IDs: state.TrackIDs()})
	}

	// 3. Settings and validation state.
	m.session.Dispatch(ctx, SettingsUpdated{Settings: model.Settings{}})

	// 4. Analysis.
	m.deps.Analyzer.Forget()

	if state.ProjectID != "" {
		if err := m.deps.StateCache.Delete(ctx, state.ProjectID); err != nil {
			logger.Warn("failed to clear cached state on reset", logger.String("projectId", state.ProjectID), logger.ErrorField(err))
		}
		if err := m.deps.Projects.DeleteProject(state.ProjectID); err != nil {
			logger.Warn("failed to delete project on reset", logger.String("projectId", state.ProjectID), logger.ErrorField(err))
		}
	}

	m.session.replace(NewState(state.UserID))
	logger.Info("project reset", logger.String("projectId", state.ProjectID))
	return nil
}

// FlushNow pushes pending autosave state immediately, the visibility-hidden
// trigger.
func (m *Manager) FlushNow(ctx context.Context) error {
	return m.deps.Store.Flush(ctx)
}

// FlushBestEffort delivers pending autosave state through the
// fire-and-forget sink, the unload trigger.
func (m *Manager) FlushBestEffort() {
	m.deps.Store.FlushBestEffort()
}

// Analyzer exposes the analysis orchestrator for progress subscriptions.
func (m *Manager) Analyzer() *analysis.Orchestrator {
	return m.deps.Analyzer
}
