package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"soundscene/db"
	"soundscene/model"

	"github.com/go-redis/redis/v8"
)

// Cached project state lives for a week; an active session refreshes the TTL
// on every write-through.
const projectStateTTL = 7 * 24 * time.Hour

// GetProjectKey builds the Redis key for a project's cached workflow state.
func GetProjectKey(projectID string) string {
	return fmt.Sprintf("project:state:%s", projectID)
}

// SetProjectState writes the full project state through to the cache.
// This is the source of truth for the active session.
func SetProjectState(ctx context.Context, project *model.Project) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to marshal project state: %w", err)
	}

	if err := db.RedisClient.Set(ctx, GetProjectKey(project.ID), data, projectStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache project state: %w", err)
	}

	return nil
}

// GetProjectState loads a project's cached state. Returns (nil, nil) when no
// cache entry exists for the id.
func GetProjectState(ctx context.Context, projectID string) (*model.Project, error) {
	if db.RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := db.RedisClient.Get(ctx, GetProjectKey(projectID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached project state: %w", err)
	}

	var project model.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached project state: %w", err)
	}
	return &project, nil
}

// HasProjectState reports whether a local cache entry exists for the project.
func HasProjectState(ctx context.Context, projectID string) (bool, error) {
	if db.RedisClient == nil {
		return false, fmt.Errorf("Redis client not initialized")
	}

	n, err := db.RedisClient.Exists(ctx, GetProjectKey(projectID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cached project state: %w", err)
	}
	return n > 0, nil
}

// DeleteProjectState removes every cached entry scoped to the project.
func DeleteProjectState(ctx context.Context, projectID string) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	keys := []string{
		GetProjectKey(projectID),
		GetSharedDescriptionKey(projectID),
		GetIndividualDescriptionsKey(projectID),
	}
	if err := db.RedisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cached project state: %w", err)
	}

	// Analysis entries are keyed per track, clean them by pattern.
	iter := db.RedisClient.Scan(ctx, 0, fmt.Sprintf("project:%s:analysis:*", projectID), 0).Iterator()
	for iter.Next(ctx) {
		if err := db.RedisClient.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cached analysis entry: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached analysis entries: %w", err)
	}

	return nil
}
