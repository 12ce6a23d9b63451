package server

import (
	"net/http"
	"sync"

	"soundscene/logger"
	"soundscene/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// progressEvent is one analysis progress push.
type progressEvent struct {
	TrackID  string               `json:"trackId,omitempty"`
	Status   model.AnalysisStatus `json:"status,omitempty"`
	Progress float64              `json:"progress"`
}

// AnalysisProgressHandler streams per-track analysis updates over a
// websocket. On connect the full status map is sent once, then one event per
// job resolution.
func (h *APIHandler) AnalysisProgressHandler(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	m := h.registry.Lookup(projectID)
	if m == nil {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	orchestrator := m.Analyzer()

	var writeMu sync.Mutex
	send := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := send(map[string]interface{}{
		"status":   orchestrator.Status(),
		"progress": orchestrator.Progress(),
	}); err != nil {
		return
	}

	done := make(chan struct{})
	var closeOnce sync.Once

	orchestrator.OnProgress(func(trackID string, status model.AnalysisStatus, progress float64) {
		err := send(progressEvent{TrackID: trackID, Status: status, Progress: progress})
		if err != nil {
			closeOnce.Do(func() { close(done) })
		}
	})
	defer orchestrator.OnProgress(nil)

	// Drain reads so close frames are processed; the client never sends data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeOnce.Do(func() { close(done) })
				return
			}
		}
	}()

	<-done
}
