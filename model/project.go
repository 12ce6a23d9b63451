package model

import "time"

// DescriptionMode selects which description text applies to the tracks.
type DescriptionMode string

const (
	DescriptionShared   DescriptionMode = "SHARED"
	DescriptionPerTrack DescriptionMode = "PER_TRACK"
)

// Workflow steps. A project moves UPLOAD, SETTINGS, PROMPT, OVERVIEW in order.
const (
	StepUpload   = 1
	StepSettings = 2
	StepPrompt   = 3
	StepOverview = 4
)

// Project is a single workflow session producing one video-generation request.
// Created lazily on the first state-mutating action.
type Project struct {
	ID                     string                    `json:"id"`
	UserID                 int64                     `json:"userId"`
	Settings               Settings                  `json:"settings"`
	Tracks                 []Track                   `json:"tracks"`
	DescriptionMode        DescriptionMode           `json:"descriptionMode"`
	SharedDescription      string                    `json:"sharedDescription"`
	IndividualDescriptions map[string]string         `json:"individualDescriptions"`
	AnalysisResults        map[string]AnalysisResult `json:"analysisResults"`
	CurrentStep            int                       `json:"currentStep"`
	MaxReachedStep         int                       `json:"maxReachedStep"`
	Status                 string                    `json:"status"` // draft, submitted
	CreatedAt              time.Time                 `json:"createdAt"`
	UpdatedAt              time.Time                 `json:"updatedAt"`
}

// RenderRequest is the fully-specified payload handed to the rendering backend
// when the user submits from the overview step.
type RenderRequest struct {
	ProjectID    string                    `json:"projectId"`
	Settings     Settings                  `json:"settings"`
	Tracks       []Track                   `json:"tracks"`
	Descriptions map[string]string         `json:"descriptions"` // track id to applicable description
	Analysis     map[string]AnalysisResult `json:"analysis,omitempty"`
	Price        float64                   `json:"price"`
	SubmittedAt  time.Time                 `json:"submittedAt"`
}
