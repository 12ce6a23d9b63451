package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"soundscene/model"
)

// ProjectRepository defines the interface for project data operations.
// Updates are idempotent upserts keyed by project id.
type ProjectRepository interface {
	CreateProject(project *model.Project) error
	GetProjectByID(id string) (*model.Project, error)
	UpdateProjectSettings(projectID string, settings model.Settings) error
	UpdateProjectWorkflow(project *model.Project) error
	UpdateProjectStatus(projectID, status string) error
	DeleteProject(projectID string) error
}

// mysqlProjectRepository implements ProjectRepository for MySQL.
type mysqlProjectRepository struct {
	db *sql.DB
}

// NewMySQLProjectRepository creates a new mysqlProjectRepository.
func NewMySQLProjectRepository(db *sql.DB) ProjectRepository {
	return &mysqlProjectRepository{db: db}
}

// CreateProject adds a new project row.
func (r *mysqlProjectRepository) CreateProject(project *model.Project) error {
	settingsJSON, err := json.Marshal(project.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal project settings: %w", err)
	}
	descriptionsJSON, err := json.Marshal(project.IndividualDescriptions)
	if err != nil {
		return fmt.Errorf("failed to marshal individual descriptions: %w", err)
	}

	query := `INSERT INTO projects (id, user_id, settings, description_mode, shared_description, individual_descriptions, current_step, max_reached_step, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for CreateProject: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	_, err = stmt.Exec(project.ID, project.UserID, settingsJSON, string(project.DescriptionMode),
		project.SharedDescription, descriptionsJSON, project.CurrentStep, project.MaxReachedStep,
		project.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to execute CreateProject: %w", err)
	}
	return nil
}

// GetProjectByID retrieves a project with its tracks and analysis results.
func (r *mysqlProjectRepository) GetProjectByID(id string) (*model.Project, error) {
	query := `SELECT id, user_id, settings, description_mode, shared_description, individual_descriptions, current_step, max_reached_step, status, created_at, updated_at
	           FROM projects WHERE id = ?`
	row := r.db.QueryRow(query, id)

	project := &model.Project{}
	var settingsJSON, descriptionsJSON []byte
	var mode string
	err := row.Scan(&project.ID, &project.UserID, &settingsJSON, &mode, &project.SharedDescription,
		&descriptionsJSON, &project.CurrentStep, &project.MaxReachedStep, &project.Status,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Project not found
		}
		return nil, fmt.Errorf("failed to scan project by ID %s: %w", id, err)
	}

	project.DescriptionMode = model.DescriptionMode(mode)
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &project.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings for project %s: %w", id, err)
		}
	}
	project.IndividualDescriptions = make(map[string]string)
	if len(descriptionsJSON) > 0 {
		if err := json.Unmarshal(descriptionsJSON, &project.IndividualDescriptions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal descriptions for project %s: %w", id, err)
		}
	}
	project.AnalysisResults = make(map[string]model.AnalysisResult)

	return project, nil
}

// UpdateProjectSettings upserts the settings blob for a project.
func (r *mysqlProjectRepository) UpdateProjectSettings(projectID string, settings model.Settings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `UPDATE projects SET settings = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query, settingsJSON, time.Now(), projectID); err != nil {
		return fmt.Errorf("failed to update settings for project %s: %w", projectID, err)
	}
	return nil
}

// UpdateProjectWorkflow persists description state and step progress.
func (r *mysqlProjectRepository) UpdateProjectWorkflow(project *model.Project) error {
	descriptionsJSON, err := json.Marshal(project.IndividualDescriptions)
	if err != nil {
		return fmt.Errorf("failed to marshal individual descriptions: %w", err)
	}

	query := `UPDATE projects SET description_mode = ?, shared_description = ?, individual_descriptions = ?, current_step = ?, max_reached_step = ?, updated_at = ? WHERE id = ?`
	_, err = r.db.Exec(query, string(project.DescriptionMode), project.SharedDescription,
		descriptionsJSON, project.CurrentStep, project.MaxReachedStep, time.Now(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to update workflow state for project %s: %w", project.ID, err)
	}
	return nil
}

// UpdateProjectStatus updates the project status (draft, submitted).
func (r *mysqlProjectRepository) UpdateProjectStatus(projectID, status string) error {
	query := `UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.Exec(query, status, time.Now(), projectID); err != nil {
		return fmt.Errorf("failed to update status for project %s: %w", projectID, err)
	}
	return nil
}

// DeleteProject removes a project; tracks and analysis cascade.
func (r *mysqlProjectRepository) DeleteProject(projectID string) error {
	query := `DELETE FROM projects WHERE id = ?`
	if _, err := r.db.Exec(query, projectID); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", projectID, err)
	}
	return nil
}
