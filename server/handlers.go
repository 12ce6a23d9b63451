package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"soundscene/config"
	"soundscene/core/auth"
	"soundscene/core/prompt"
	"soundscene/core/workflow"
	"soundscene/logger"
	"soundscene/repository"
	"soundscene/storage"
)

type contextKey string

const (
	userIDKey   contextKey = "userID"
	usernameKey contextKey = "username"
)

// APIHandler serves the workflow API.
type APIHandler struct {
	cfg          *config.Config
	userRepo     repository.UserRepository
	trackRepo    repository.TrackRepository
	snapshotRepo repository.SnapshotRepository
	registry     *workflow.Registry
	audioStore   *storage.AudioStore
	promptClient *prompt.Client
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	cfg *config.Config,
	userRepo repository.UserRepository,
	trackRepo repository.TrackRepository,
	snapshotRepo repository.SnapshotRepository,
	registry *workflow.Registry,
	audioStore *storage.AudioStore,
	promptClient *prompt.Client,
) *APIHandler {
	return &APIHandler{
		cfg:          cfg,
		userRepo:     userRepo,
		trackRepo:    trackRepo,
		snapshotRepo: snapshotRepo,
		registry:     registry,
		audioStore:   audioStore,
		promptClient: promptClient,
	}
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error("failed to encode response", logger.ErrorField(err))
		}
	}
}

// respondError writes a JSON error with a user-facing message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// AuthMiddleware checks for a valid JWT token and stores the user identity
// in the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the authenticated user id.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(userIDKey).(int64)
	if !ok {
		return 0, errors.New("no user in context")
	}
	return id, nil
}

// managerFor finds or restores the workflow manager for a project. A manager
// not yet active in this process is created and the project loaded through
// the cache-first reconcile path.
func (h *APIHandler) managerFor(ctx context.Context, projectID string, userID int64) (*workflow.Manager, error) {
	if projectID == "" {
		return nil, errors.New("projectId is required")
	}
	m, active := h.registry.GetOrLoad(projectID, userID)
	if !active {
		if err := m.LoadExisting(ctx, projectID, false); err != nil {
			h.registry.Remove(projectID)
			return nil, err
		}
	}
	if m.State().UserID != userID {
		return nil, fmt.Errorf("project %s does not belong to this user", projectID)
	}
	return m, nil
}
