package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"soundscene/db"

	"github.com/go-redis/redis/v8"
)

// Description snapshots are namespaced by project id so multiple projects
// never collide. They back the mode switch: the outgoing mode's text is
// snapshotted here before the incoming mode's text is loaded.

// GetSharedDescriptionKey builds the Redis key for a project's shared description.
func GetSharedDescriptionKey(projectID string) string {
	return fmt.Sprintf("project:%s:desc:shared", projectID)
}

// GetIndividualDescriptionsKey builds the Redis key for a project's per-track descriptions.
func GetIndividualDescriptionsKey(projectID string) string {
	return fmt.Sprintf("project:%s:desc:individual", projectID)
}

// SaveSharedDescription snapshots the shared description.
func SaveSharedDescription(ctx context.Context, projectID, text string) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	if err := db.RedisClient.Set(ctx, GetSharedDescriptionKey(projectID), text, projectStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save shared description: %w", err)
	}
	return nil
}

// LoadSharedDescription returns the stored shared description, or "" when none
// was ever stored. It never falls back to an individual description.
func LoadSharedDescription(ctx context.Context, projectID string) (string, error) {
	if db.RedisClient == nil {
		return "", fmt.Errorf("Redis client not initialized")
	}

	text, err := db.RedisClient.Get(ctx, GetSharedDescriptionKey(projectID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load shared description: %w", err)
	}
	return text, nil
}

// SaveIndividualDescriptions snapshots the per-track description map.
func SaveIndividualDescriptions(ctx context.Context, projectID string, descriptions map[string]string) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(descriptions)
	if err != nil {
		return fmt.Errorf("failed to marshal individual descriptions: %w", err)
	}

	if err := db.RedisClient.Set(ctx, GetIndividualDescriptionsKey(projectID), data, projectStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save individual descriptions: %w", err)
	}
	return nil
}

// LoadIndividualDescriptions returns the stored per-track description map,
// or an empty map when none was ever stored.
func LoadIndividualDescriptions(ctx context.Context, projectID string) (map[string]string, error) {
	if db.RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := db.RedisClient.Get(ctx, GetIndividualDescriptionsKey(projectID)).Bytes()
	if err == redis.Nil {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load individual descriptions: %w", err)
	}

	descriptions := make(map[string]string)
	if err := json.Unmarshal(data, &descriptions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal individual descriptions: %w", err)
	}
	return descriptions, nil
}
