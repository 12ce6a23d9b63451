package model

import "time"

// AnalysisStatus values for a track's feature-extraction job.
type AnalysisStatus string

const (
	AnalysisNotStarted AnalysisStatus = "not-started"
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// AnalysisResult holds the extracted audio features for one track.
type AnalysisResult struct {
	TrackID    string    `json:"trackId"`
	Tempo      float64   `json:"tempo"`      // BPM
	Duration   float64   `json:"duration"`   // Seconds, as measured by the analyzer
	Spectral   []float64 `json:"spectral"`   // Spectral feature vector
	Segments   []float64 `json:"segments"`   // Segment boundaries in seconds
	AnalyzedAt time.Time `json:"analyzedAt"`
}
