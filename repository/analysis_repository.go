package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"soundscene/model"
)

// AnalysisRepository defines the interface for per-track analysis persistence.
type AnalysisRepository interface {
	UpsertAnalysis(projectID string, result model.AnalysisResult) error
	GetAnalysisByProjectID(projectID string) (map[string]model.AnalysisResult, error)
}

// mysqlAnalysisRepository implements AnalysisRepository for MySQL.
type mysqlAnalysisRepository struct {
	db *sql.DB
}

// NewMySQLAnalysisRepository creates a new mysqlAnalysisRepository.
func NewMySQLAnalysisRepository(db *sql.DB) AnalysisRepository {
	return &mysqlAnalysisRepository{db: db}
}

// UpsertAnalysis stores an analysis result, replacing any previous row for the track.
func (r *mysqlAnalysisRepository) UpsertAnalysis(projectID string, result model.AnalysisResult) error {
	spectralJSON, err := json.Marshal(result.Spectral)
	if err != nil {
		return fmt.Errorf("failed to marshal spectral features: %w", err)
	}
	segmentsJSON, err := json.Marshal(result.Segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segment boundaries: %w", err)
	}

	query := `INSERT INTO track_analysis (track_id, project_id, tempo, duration, spectral, segments, analyzed_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE tempo = VALUES(tempo), duration = VALUES(duration),
	               spectral = VALUES(spectral), segments = VALUES(segments), analyzed_at = VALUES(analyzed_at)`
	_, err = r.db.Exec(query, result.TrackID, projectID, result.Tempo, result.Duration,
		spectralJSON, segmentsJSON, result.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert analysis for track %s: %w", result.TrackID, err)
	}
	return nil
}

// GetAnalysisByProjectID returns all stored analysis results keyed by track id.
func (r *mysqlAnalysisRepository) GetAnalysisByProjectID(projectID string) (map[string]model.AnalysisResult, error) {
	query := `SELECT track_id, tempo, duration, spectral, segments, analyzed_at FROM track_analysis WHERE project_id = ?`
	rows, err := r.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis for project %s: %w", projectID, err)
	}
	defer rows.Close()

	results := make(map[string]model.AnalysisResult)
	for rows.Next() {
		var result model.AnalysisResult
		var spectralJSON, segmentsJSON []byte
		var analyzedAt sql.NullTime
		if err := rows.Scan(&result.TrackID, &result.Tempo, &result.Duration, &spectralJSON, &segmentsJSON, &analyzedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		if analyzedAt.Valid {
			result.AnalyzedAt = analyzedAt.Time
		}
		if len(spectralJSON) > 0 {
			if err := json.Unmarshal(spectralJSON, &result.Spectral); err != nil {
				return nil, fmt.Errorf("failed to unmarshal spectral features: %w", err)
			}
		}
		if len(segmentsJSON) > 0 {
			if err := json.Unmarshal(segmentsJSON, &result.Segments); err != nil {
				return nil, fmt.Errorf("failed to unmarshal segment boundaries: %w", err)
			}
		}
		results[result.TrackID] = result
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in GetAnalysisByProjectID: %w", err)
	}

	return results, nil
}
