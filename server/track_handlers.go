package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"soundscene/core/workflow"
	"soundscene/logger"
	"soundscene/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// uploadFailure describes one rejected file in a batch upload.
type uploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

var extensionMIMEs = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
}

// resolveContentType validates a file's claimed type against the allow list,
// falling back to the extension when the part carries no content type.
func (h *APIHandler) resolveContentType(filename, claimed string) (string, error) {
	contentType := strings.TrimSpace(strings.Split(claimed, ";")[0])
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = extensionMIMEs[strings.ToLower(filepath.Ext(filename))]
	}
	for _, allowed := range h.cfg.AllowedMIMETypes {
		if contentType == allowed {
			return contentType, nil
		}
	}
	return "", fmt.Errorf("unsupported audio type %q", contentType)
}

// UploadTracksHandler accepts one or more audio files and appends them to the
// project in the order their uploads resolve. Files are validated before any
// state mutation; in a batch, failures are enumerated and never block the
// files that succeeded.
func (h *APIHandler) UploadTracksHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "No audio files in request")
		return
	}

	var added []model.Track
	var failed []uploadFailure
	for _, header := range files {
		track, err := h.storeUpload(r.Context(), m, header, userID)
		if err != nil {
			failed = append(failed, uploadFailure{Filename: header.Filename, Error: err.Error()})
			continue
		}
		added = append(added, *track)
	}

	var state workflow.State
	if len(added) > 0 {
		state = m.Dispatch(r.Context(), workflow.TracksAdded{Tracks: added})
	} else {
		state = m.State()
	}

	status := http.StatusCreated
	if len(added) == 0 {
		status = http.StatusBadRequest
	}
	respondJSON(w, status, map[string]interface{}{
		"added":  tracksView(added),
		"failed": failed,
		"state":  stateView(state),
	})
}

// storeUpload validates one file, uploads its bytes and creates the track
// record. Validation happens before the object store or database is touched.
func (h *APIHandler) storeUpload(ctx context.Context, m *workflow.Manager, header *multipart.FileHeader, userID int64) (*model.Track, error) {
	if header.Size > h.cfg.MaxUploadSize {
		return nil, fmt.Errorf("file exceeds the %d MB limit", h.cfg.MaxUploadSize>>20)
	}
	contentType, err := h.resolveContentType(header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	state := m.State()
	trackID := uuid.NewString()
	key := h.audioStore.ObjectKey(state.ProjectID, trackID, header.Filename)
	if _, err := h.audioStore.Put(ctx, key, file, header.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store audio: %w", err)
	}

	url, err := h.audioStore.PlayableURL(ctx, key)
	if err != nil {
		logger.Warn("failed to presign uploaded track",
			logger.String("trackId", trackID), logger.ErrorField(err))
	}

	now := time.Now()
	track := &model.Track{
		ID:         trackID,
		ProjectID:  state.ProjectID,
		UserID:     userID,
		Name:       header.Filename,
		ObjectPath: key,
		URL:        url,
		Status:     model.TrackStatusCompleted,
		Position:   len(state.Tracks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.trackRepo.CreateTrack(track); err != nil {
		if rmErr := h.audioStore.Remove(ctx, key); rmErr != nil {
			logger.Warn("failed to clean up orphaned audio object",
				logger.String("key", key), logger.ErrorField(rmErr))
		}
		return nil, fmt.Errorf("failed to save track: %w", err)
	}
	return track, nil
}

// IngestDroppedFile uploads one drop-folder file as a track. The file name
// must carry the target project id as a "<projectId>__<name>" prefix; the
// project must already be active in this process.
func (h *APIHandler) IngestDroppedFile(ctx context.Context, filename string, data []byte) error {
	projectID, name, found := strings.Cut(filename, "__")
	if !found {
		return fmt.Errorf("dropped file %q has no project id prefix", filename)
	}

	m := h.registry.Lookup(projectID)
	if m == nil {
		return fmt.Errorf("project %s is not active", projectID)
	}
	state := m.State()

	contentType, err := h.resolveContentType(name, "")
	if err != nil {
		return err
	}

	trackID := uuid.NewString()
	key := h.audioStore.ObjectKey(projectID, trackID, name)
	if _, err := h.audioStore.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return fmt.Errorf("failed to store dropped audio: %w", err)
	}

	url, err := h.audioStore.PlayableURL(ctx, key)
	if err != nil {
		logger.Warn("failed to presign ingested track",
			logger.String("trackId", trackID), logger.ErrorField(err))
	}

	now := time.Now()
	track := &model.Track{
		ID:         trackID,
		ProjectID:  projectID,
		UserID:     state.UserID,
		Name:       name,
		ObjectPath: key,
		URL:        url,
		Status:     model.TrackStatusCompleted,
		Position:   len(state.Tracks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.trackRepo.CreateTrack(track); err != nil {
		return fmt.Errorf("failed to save ingested track: %w", err)
	}

	m.Dispatch(ctx, workflow.TracksAdded{Tracks: []model.Track{*track}})
	return nil
}

// DeleteTracksHandler removes the given tracks from the project, including
// their stored audio and any per-track description and analysis state.
func (h *APIHandler) DeleteTracksHandler(w http.ResponseWriter, r *http.Request) {
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
		TrackIDs []string `json:"trackIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.TrackIDs) == 0 {
		respondError(w, http.StatusBadRequest, "trackIds is required")
		return
	}

	state := m.State()
	byID := make(map[string]model.Track, len(state.Tracks))
	for _, t := range state.Tracks {
		byID[t.ID] = t
	}
	for _, id := range req.TrackIDs {
		if _, ok := byID[id]; !ok {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("track %s is not in this project", id))
			return
		}
	}

	for _, id := range req.TrackIDs {
		if key := byID[id].ObjectPath; key != "" {
			if err := h.audioStore.Remove(r.Context(), key); err != nil {
				logger.Warn("failed to remove audio object",
					logger.String("trackId", id), logger.ErrorField(err))
			}
		}
	}

	next := m.Dispatch(r.Context(), workflow.TracksRemoved{IDs: req.TrackIDs})
	m.Analyzer().Forget(req.TrackIDs...)
	if err := h.trackRepo.DeleteTracks(projectID, req.TrackIDs); err != nil {
		logger.Error("failed to delete track rows", logger.String("projectId", projectID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete tracks")
		return
	}

	respondJSON(w, http.StatusOK, stateView(next))
}

// SelectTrackHandler replaces the single selection, or toggles membership in
// the multi-selection set.
func (h *APIHandler) SelectTrackHandler(w http.ResponseWriter, r *http.Request) {
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
		Toggle  bool   `json:"toggle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		respondError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	next := m.Dispatch(r.Context(), workflow.TrackSelected{ID: req.TrackID, Toggle: req.Toggle})
	respondJSON(w, http.StatusOK, stateView(next))
}

// ReorderTracksHandler moves one track relative to another and persists the
// resulting order.
func (h *APIHandler) ReorderTracksHandler(w http.ResponseWriter, r *http.Request) {
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
		From int                   `json:"from"`
		To   int                   `json:"to"`
		Drop workflow.DropPosition `json:"drop"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Drop != workflow.DropAbove && req.Drop != workflow.DropBelow {
		respondError(w, http.StatusBadRequest, "drop must be \"above\" or \"below\"")
		return
	}

	next := m.Dispatch(r.Context(), workflow.TracksReordered{From: req.From, To: req.To, Drop: req.Drop})
	if err := h.trackRepo.UpdateTrackPositions(projectID, next.TrackIDs()); err != nil {
		logger.Warn("failed to persist track order", logger.String("projectId", projectID), logger.ErrorField(err))
	}

	respondJSON(w, http.StatusOK, stateView(next))
}

// UpdateDurationHandler records the decoded duration for a track. A failed
// decode reports zero so a stale value never survives.
func (h *APIHandler) UpdateDurationHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	vars := mux.Vars(r)
	projectID, trackID := vars["id"], vars["trackId"]
	m, err := h.managerFor(r.Context(), projectID, userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds < 0 {
		respondError(w, http.StatusBadRequest, "seconds must be a non-negative number")
		return
	}

	next := m.Dispatch(r.Context(), workflow.DurationUpdated{TrackID: trackID, Seconds: req.Seconds})
	if err := h.trackRepo.UpdateTrackDuration(trackID, req.Seconds); err != nil {
		logger.Warn("failed to persist track duration", logger.String("trackId", trackID), logger.ErrorField(err))
	}

	respondJSON(w, http.StatusOK, stateView(next))
}
