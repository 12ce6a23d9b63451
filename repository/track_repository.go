package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"soundscene/model"
)

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	CreateTrack(track *model.Track) error
	GetTrackByID(id string) (*model.Track, error)
	GetTracksByProjectID(projectID string) ([]*model.Track, error)
	UpdateTrackDuration(trackID string, duration float64) error
	UpdateTrackStatus(trackID string, status string) error
	UpdateTrackPositions(projectID string, orderedIDs []string) error
	DeleteTracks(projectID string, ids []string) error
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	db *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{db: db}
}

// CreateTrack adds a new track to the database.
func (r *mysqlTrackRepository) CreateTrack(track *model.Track) error {
	query := `INSERT INTO tracks (id, project_id, user_id, name, object_path, duration, prompt, genre, is_generated, status, position, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for CreateTrack: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	_, err = stmt.Exec(track.ID, track.ProjectID, track.UserID, track.Name, track.ObjectPath,
		track.Duration, track.Prompt, track.Genre, track.IsGenerated, track.Status, track.Position, now, now)
	if err != nil {
		return fmt.Errorf("failed to execute CreateTrack: %w", err)
	}
	return nil
}

const trackColumns = `id, project_id, user_id, name, object_path, duration, prompt, genre, is_generated, status, position, created_at, updated_at`

func scanTrack(scanner interface{ Scan(...interface{}) error }) (*model.Track, error) {
	track := &model.Track{}
	err := scanner.Scan(&track.ID, &track.ProjectID, &track.UserID, &track.Name, &track.ObjectPath,
		&track.Duration, &track.Prompt, &track.Genre, &track.IsGenerated, &track.Status, &track.Position,
		&track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return track, nil
}

// GetTrackByID retrieves a track by its ID.
func (r *mysqlTrackRepository) GetTrackByID(id string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	track, err := scanTrack(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Track not found
		}
		return nil, fmt.Errorf("failed to scan track by ID %s: %w", id, err)
	}
	return track, nil
}

// GetTracksByProjectID retrieves all tracks for a project in workflow order.
func (r *mysqlTrackRepository) GetTracksByProjectID(projectID string) ([]*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE project_id = ? ORDER BY position ASC, created_at ASC`
	rows, err := r.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for project %s: %w", projectID, err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track in GetTracksByProjectID: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in GetTracksByProjectID: %w", err)
	}

	return tracks, nil
}

// UpdateTrackDuration records the decoded duration for a track.
func (r *mysqlTrackRepository) UpdateTrackDuration(trackID string, duration float64) error {
	query := `UPDATE tracks SET duration = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query, duration, time.Now(), trackID); err != nil {
		return fmt.Errorf("failed to update duration for track %s: %w", trackID, err)
	}
	return nil
}

// UpdateTrackStatus updates a track's processing status.
func (r *mysqlTrackRepository) UpdateTrackStatus(trackID string, status string) error {
	query := `UPDATE tracks SET status = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query, status, time.Now(), trackID); err != nil {
		return fmt.Errorf("failed to update status for track %s: %w", trackID, err)
	}
	return nil
}

// UpdateTrackPositions persists a new track order for the project. orderedIDs
// holds every track id in its new position.
func (r *mysqlTrackRepository) UpdateTrackPositions(projectID string, orderedIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for UpdateTrackPositions: %w", err)
	}

	stmt, err := tx.Prepare(`UPDATE tracks SET position = ?, updated_at = ? WHERE id = ? AND project_id = ?`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement for UpdateTrackPositions: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i, id := range orderedIDs {
		if _, err := stmt.Exec(i, now, id, projectID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to update position for track %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit UpdateTrackPositions: %w", err)
	}
	return nil
}

// DeleteTracks removes the given tracks from the project.
func (r *mysqlTrackRepository) DeleteTracks(projectID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`DELETE FROM tracks WHERE project_id = ? AND id IN (%s)`, placeholders)

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, projectID)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to delete tracks for project %s: %w", projectID, err)
	}
	return nil
}
