package model

import "time"

// TrackStatus marks where a track is in its processing lifecycle.
const (
	TrackStatusProcessing = "processing"
	TrackStatusCompleted  = "completed"
	TrackStatusFailed     = "failed"
)

// Track represents one audio input (uploaded or AI-generated) within a project.
type Track struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	UserID      int64     `json:"userId"`
	Name        string    `json:"name"`
	ObjectPath  string    `json:"objectPath,omitempty"` // MinIO object key; empty when bytes live only on the remote store
	URL         string    `json:"url"`              // Playable URL, presigned and time-bounded
	Duration    float64   `json:"duration"`         // Seconds; authoritative only after decode
	Prompt      string    `json:"prompt,omitempty"` // Set when AI-generated
	Genre       string    `json:"genre,omitempty"`
	IsGenerated bool      `json:"isGenerated"`
	Status      string    `json:"status"`
	Position    int       `json:"position"` // Order within the project
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
