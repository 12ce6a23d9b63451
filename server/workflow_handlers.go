package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"soundscene/cache"
	"soundscene/core/workflow"
	"soundscene/logger"
	"soundscene/model"

	"github.com/gorilla/mux"
)

// SetModeHandler switches between the shared and per-track description modes.
// The outgoing mode's text is snapshotted before the switch, so toggling back
// restores it.
func (h *APIHandler) SetModeHandler(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Mode model.DescriptionMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Mode != model.DescriptionShared && req.Mode != model.DescriptionPerTrack {
		respondError(w, http.StatusBadRequest, "mode must be SHARED or PER_TRACK")
		return
	}

	next, err := m.SetMode(r.Context(), req.Mode)
	if err != nil {
		logger.Error("failed to switch description mode", logger.String("projectId", projectID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to switch description mode")
		return
	}
	respondJSON(w, http.StatusOK, stateView(next))
}

// EditDescriptionHandler updates the active description text. trackId is
// required in per-track mode and ignored in shared mode.
func (h *APIHandler) EditDescriptionHandler(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		TrackID string `json:"trackId"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if m.State().Mode == model.DescriptionPerTrack && req.TrackID == "" {
		respondError(w, http.StatusBadRequest, "trackId is required in per-track mode")
		return
	}

	next := m.Dispatch(r.Context(), workflow.DescriptionEdited{TrackID: req.TrackID, Text: req.Text})
	respondJSON(w, http.StatusOK, stateView(next))
}

// UpdateSettingsHandler replaces the video settings. Invalid settings are
// stored as-is; the step-2 guard blocks advancing until they validate.
func (h *APIHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
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

	var settings model.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	next := m.Dispatch(r.Context(), workflow.SettingsUpdated{Settings: settings})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid": settings.Valid(),
		"state": stateView(next),
	})
}

// GetPriceHandler returns the current quote projection.
func (h *APIHandler) GetPriceHandler(w http.ResponseWriter, r *http.Request) {
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

	state := m.State()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"price":         state.Price,
		"totalDuration": state.TotalDuration(),
		"trackCount":    len(state.Tracks),
	})
}

// AdvanceStepHandler moves the workflow forward one step. On the prompt-to-overview
// transition outstanding analysis jobs run first; failures are
// reported as a warning and never block the transition.
func (h *APIHandler) AdvanceStepHandler(w http.ResponseWriter, r *http.Request) {
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

	next, failed, ok := m.Advance(r.Context())
	if !ok {
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "Current step is not complete",
			"state": stateView(next),
		})
		return
	}

	resp := map[string]interface{}{"state": stateView(next)}
	if len(failed) > 0 {
		resp["analysisFailed"] = failed
	}
	respondJSON(w, http.StatusOK, resp)
}

// RetreatStepHandler moves one step back. At step 1 it exits the workflow
// instead: media handles are revoked and pending autosave state is flushed.
func (h *APIHandler) RetreatStepHandler(w http.ResponseWriter, r *http.Request) {
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

	next, exited := m.Retreat(r.Context())
	if exited {
		h.registry.Remove(projectID)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"exited": exited,
		"state":  stateView(next),
	})
}

// JumpStepHandler moves directly to a previously reached step. Jumping past
// the high-water mark is rejected.
func (h *APIHandler) JumpStepHandler(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Step int `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	before := m.State()
	next := m.JumpTo(r.Context(), req.Step)
	if next.CurrentStep == before.CurrentStep && req.Step != before.CurrentStep {
		respondError(w, http.StatusConflict, "Step has not been reached yet")
		return
	}
	respondJSON(w, http.StatusOK, stateView(next))
}

// AnalyzeHandler runs every outstanding analysis job for the project.
func (h *APIHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
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

	failed := m.Analyze(r.Context())
	for _, result := range m.Analyzer().Results() {
		if err := cache.SetAnalysisResult(r.Context(), projectID, result); err != nil {
			logger.Warn("failed to cache analysis result",
				logger.String("trackId", result.TrackID), logger.ErrorField(err))
		}
	}
	resp := map[string]interface{}{
		"progress": m.Analyzer().Progress(),
		"state":    stateView(m.State()),
	}
	if len(failed) > 0 {
		resp["analysisFailed"] = failed
	}
	respondJSON(w, http.StatusOK, resp)
}

// RandomPromptHandler proxies the random-prompt service.
func (h *APIHandler) RandomPromptHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	category := r.URL.Query().Get("category")
	instrumental, _ := strconv.ParseBool(r.URL.Query().Get("instrumental"))

	p, err := h.promptClient.Random(r.Context(), category, instrumental)
	if err != nil {
		logger.Warn("random prompt request failed", logger.ErrorField(err))
		respondError(w, http.StatusBadGateway, "Prompt service unavailable")
		return
	}
	respondJSON(w, http.StatusOK, p)
}
