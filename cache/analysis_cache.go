package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"soundscene/db"
	"soundscene/model"

	"github.com/go-redis/redis/v8"
)

// GetAnalysisKey builds the Redis key for a track's cached analysis result.
func GetAnalysisKey(projectID, trackID string) string {
	return fmt.Sprintf("project:%s:analysis:%s", projectID, trackID)
}

// SetAnalysisResult caches a completed analysis result for the session so
// revisiting the prompt step does not re-trigger the job.
func SetAnalysisResult(ctx context.Context, projectID string, result model.AnalysisResult) error {
	if db.RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	if err := db.RedisClient.Set(ctx, GetAnalysisKey(projectID, result.TrackID), data, projectStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache analysis result: %w", err)
	}
	return nil
}

// GetAnalysisResult returns the cached analysis result for a track, or
// (nil, nil) when no result has been cached.
func GetAnalysisResult(ctx context.Context, projectID, trackID string) (*model.AnalysisResult, error) {
	if db.RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := db.RedisClient.Get(ctx, GetAnalysisKey(projectID, trackID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached analysis result: %w", err)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached analysis result: %w", err)
	}
	return &result, nil
}
