package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"soundscene/cache"
	"soundscene/model"
	"soundscene/repository"
)

// RedisCache adapts the project cache package to the Cache interface.
type RedisCache struct{}

// WriteThrough stores the full project state in Redis.
func (RedisCache) WriteThrough(ctx context.Context, project *model.Project) error {
	return cache.SetProjectState(ctx, project)
}

// RemoteStore adapts the MySQL repositories to the Remote interface. Each
// save upserts the workflow row and the opaque autosave snapshot.
type RemoteStore struct {
	Projects  repository.ProjectRepository
	Snapshots repository.SnapshotRepository
}

// Save pushes a project's workflow state and snapshot to the remote store.
func (r *RemoteStore) Save(_ context.Context, project *model.Project) error {
	if project.ID == "" {
		return fmt.Errorf("cannot save project without an id")
	}

	if err := r.Projects.UpdateProjectWorkflow(project); err != nil {
		return err
	}
	if err := r.Projects.UpdateProjectSettings(project.ID, project.Settings); err != nil {
		return err
	}

	payload, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to marshal autosave payload: %w", err)
	}
	return r.Snapshots.Upsert(project.ID, payload, "debounce")
}
