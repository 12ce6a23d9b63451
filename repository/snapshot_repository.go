package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutosaveSnapshot is the durable auto-save sink row: an opaque JSON payload
// keyed by project id. The unload beacon and the debounced autosave both land
// here; last write wins.
type AutosaveSnapshot struct {
	ProjectID string    `gorm:"primaryKey;size:36"`
	Payload   []byte    `gorm:"type:json"`
	Source    string    `gorm:"size:16"` // debounce, flush, beacon
	SavedAt   time.Time `gorm:"autoUpdateTime"`
}

// SnapshotRepository persists autosave snapshots.
type SnapshotRepository interface {
	Upsert(projectID string, payload []byte, source string) error
	Get(projectID string) (*AutosaveSnapshot, error)
	Delete(projectID string) error
}

// gormSnapshotRepository implements SnapshotRepository on GORM.
type gormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository creates a snapshot repository and migrates its table.
func NewGormSnapshotRepository(db *gorm.DB) (SnapshotRepository, error) {
	if err := db.AutoMigrate(&AutosaveSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate autosave snapshots: %w", err)
	}
	return &gormSnapshotRepository{db: db}, nil
}

// Upsert stores the payload, replacing any previous snapshot for the project.
func (r *gormSnapshotRepository) Upsert(projectID string, payload []byte, source string) error {
	snapshot := AutosaveSnapshot{
		ProjectID: projectID,
		Payload:   payload,
		Source:    source,
		SavedAt:   time.Now(),
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "source", "saved_at"}),
	}).Create(&snapshot).Error
	if err != nil {
		return fmt.Errorf("failed to upsert autosave snapshot for project %s: %w", projectID, err)
	}
	return nil
}

// Get returns the latest snapshot for a project, or (nil, nil) when none exists.
func (r *gormSnapshotRepository) Get(projectID string) (*AutosaveSnapshot, error) {
	var snapshot AutosaveSnapshot
	err := r.db.First(&snapshot, "project_id = ?", projectID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load autosave snapshot for project %s: %w", projectID, err)
	}
	return &snapshot, nil
}

// Delete removes the snapshot for a project.
func (r *gormSnapshotRepository) Delete(projectID string) error {
	err := r.db.Delete(&AutosaveSnapshot{}, "project_id = ?", projectID).Error
	if err != nil {
		return fmt.Errorf("failed to delete autosave snapshot for project %s: %w", projectID, err)
	}
	return nil
}
