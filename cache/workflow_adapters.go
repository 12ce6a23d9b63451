package cache

import (
	"context"

	"soundscene/model"
)

// StateCacheAdapter exposes the project state cache behind the workflow
// package's StateCache interface.
type StateCacheAdapter struct{}

// Get loads the cached project state, (nil, nil) when absent.
func (StateCacheAdapter) Get(ctx context.Context, projectID string) (*model.Project, error) {
	return GetProjectState(ctx, projectID)
}

// Delete clears every cached entry for the project.
func (StateCacheAdapter) Delete(ctx context.Context, projectID string) error {
	return DeleteProjectState(ctx, projectID)
}

// DescriptionStoreAdapter exposes the description snapshot slots behind the
// workflow package's DescriptionStore interface.
type DescriptionStoreAdapter struct{}

// SaveShared snapshots the shared description.
func (DescriptionStoreAdapter) SaveShared(ctx context.Context, projectID, text string) error {
	return SaveSharedDescription(ctx, projectID, text)
}

// LoadShared loads the stored shared description.
func (DescriptionStoreAdapter) LoadShared(ctx context.Context, projectID string) (string, error) {
	return LoadSharedDescription(ctx, projectID)
}

// SaveIndividual snapshots the per-track description map.
func (DescriptionStoreAdapter) SaveIndividual(ctx context.Context, projectID string, descriptions map[string]string) error {
	return SaveIndividualDescriptions(ctx, projectID, descriptions)
}

// LoadIndividual loads the stored per-track description map.
func (DescriptionStoreAdapter) LoadIndividual(ctx context.Context, projectID string) (map[string]string, error) {
	return LoadIndividualDescriptions(ctx, projectID)
}
