package server

import (
	"errors"
	"net/http"
	"strconv"

	"soundscene/core/workflow"
	"soundscene/logger"
	"soundscene/model"

	"github.com/gorilla/mux"
)

// apiTrack keeps the MinIO object key out of API responses. The shadowing
// field suppresses the embedded one during marshaling; clients play audio
// through the presigned URL only.
type apiTrack struct {
	model.Track
	ObjectPath string `json:"objectPath,omitempty"`
}

func tracksView(tracks []model.Track) []apiTrack {
	out := make([]apiTrack, len(tracks))
	for i, t := range tracks {
		out[i] = apiTrack{Track: t}
	}
	return out
}

// stateView is the API projection of a workflow session. Guard results are
// included so the client never has to re-derive them.
func stateView(s workflow.State) map[string]interface{} {
	return map[string]interface{}{
		"projectId":              s.ProjectID,
		"currentStep":            s.CurrentStep,
		"maxReachedStep":         s.MaxReachedStep,
		"tracks":                 tracksView(s.Tracks),
		"selectedTrackId":        s.SelectedTrackID,
		"multiSelection":         s.MultiSelection,
		"descriptionMode":        s.Mode,
		"sharedDescription":      s.SharedDescription,
		"individualDescriptions": s.IndividualDescriptions,
		"settings":               s.Settings,
		"analysisStatus":         s.AnalysisStatus,
		"analysisResults":        s.AnalysisResults,
		"price":                  s.Price,
		"submitted":              s.Submitted,
		"canAdvance":             workflow.CanAdvance(s),
		"descriptionValidity":    workflow.ValidityMap(s),
	}
}

// CreateProjectHandler creates a project and binds a workflow session to it.
func (h *APIHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	m := h.registry.NewSession(userID)
	projectID, err := m.EnsureProject(r.Context())
	if err != nil {
		logger.Error("failed to create project", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}
	h.registry.Bind(projectID, m)

	respondJSON(w, http.StatusCreated, stateView(m.State()))
}

// stepFromQuery parses the step restore parameter. Absent, malformed or
// out-of-range values mean no restore.
func stepFromQuery(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("step")
	if raw == "" {
		return 0, false
	}
	step, err := strconv.Atoi(raw)
	if err != nil || !workflow.StepInRange(step) {
		return 0, false
	}
	return step, true
}

// GetProjectHandler loads a project into an active session. `new=true`
// discards the cached local state and reloads from the remote store, and
// `step` restores the step the client was on, subject to the reached-step
// guard. An unknown project id falls back to a fresh, unsaved session
// instead of failing the entry into the workflow.
func (h *APIHandler) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	projectID := mux.Vars(r)["id"]
	startFresh := r.URL.Query().Get("new") == "true"

	m, active := h.registry.GetOrLoad(projectID, userID)
	if !active || startFresh {
		if err := m.LoadExisting(r.Context(), projectID, startFresh); err != nil {
			h.registry.Remove(projectID)
			if errors.Is(err, workflow.ErrProjectNotFound) {
				fresh := h.registry.NewSession(userID)
				respondJSON(w, http.StatusOK, map[string]interface{}{
					"found": false,
					"state": stateView(fresh.State()),
				})
				return
			}
			logger.Error("failed to load project", logger.String("projectId", projectID), logger.ErrorField(err))
			respondError(w, http.StatusInternalServerError, "Failed to load project")
			return
		}
	}

	state := m.State()
	if state.UserID != userID {
		respondError(w, http.StatusForbidden, "Project belongs to another user")
		return
	}

	if step, ok := stepFromQuery(r); ok && step != state.CurrentStep {
		state = m.JumpTo(r.Context(), step)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"found": true,
		"state": stateView(state),
	})
}

// DeleteProjectHandler resets a project: media handles, tracks, settings and
// analysis state are cleared in order, then the project row and cached state
// are removed.
func (h *APIHandler) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	projectID := mux.Vars(r)["id"]
	m, err := h.managerFor(r.Context(), projectID, userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	if err := m.Reset(r.Context()); err != nil {
		logger.Error("failed to reset project", logger.String("projectId", projectID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to reset project")
		return
	}
	if err := h.snapshotRepo.Delete(projectID); err != nil {
		logger.Warn("failed to delete autosave snapshot", logger.String("projectId", projectID), logger.ErrorField(err))
	}
	h.registry.Remove(projectID)

	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// SubmitProjectHandler hands the finished render request to the generation
// backend. Only valid from the overview step, and only once.
func (h *APIHandler) SubmitProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	projectID := mux.Vars(r)["id"]
	m, err := h.managerFor(r.Context(), projectID, userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	jobID, err := m.Submit(r.Context())
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobId": jobID,
		"state": stateView(m.State()),
	})
}

// FlushHandler pushes pending autosave state synchronously. The client calls
// it when the session goes to the background.
func (h *APIHandler) FlushHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	projectID := mux.Vars(r)["id"]
	m, err := h.managerFor(r.Context(), projectID, userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	if err := m.FlushNow(r.Context()); err != nil {
		logger.Warn("autosave flush failed", logger.String("projectId", projectID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Flush failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
