package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"soundscene/config"

	"github.com/minio/minio-go/v7"
)

// AudioStore stores track audio objects and resolves time-bounded playable URLs.
type AudioStore struct {
	client *minio.Client
	bucket string
	urlTTL time.Duration
}

// NewAudioStore creates an AudioStore backed by the shared MinIO client.
func NewAudioStore(cfg *config.Config) *AudioStore {
	return &AudioStore{
		client: GetMinioClient(),
		bucket: cfg.MinioBucket,
		urlTTL: cfg.PlayableURLTTL,
	}
}

// ObjectKey builds the object key for a track's audio bytes.
func (s *AudioStore) ObjectKey(projectID, trackID, filename string) string {
	return fmt.Sprintf("projects/%s/tracks/%s/%s", projectID, trackID, filename)
}

// Put uploads track audio and returns the object key.
func (s *AudioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("MinIO client not initialized")
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio object %s: %w", key, err)
	}
	return key, nil
}

// PlayableURL returns a presigned, time-bounded URL for the object.
func (s *AudioStore) PlayableURL(ctx context.Context, key string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("MinIO client not initialized")
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign URL for %s: %w", key, err)
	}
	return u.String(), nil
}

// Remove deletes a track's audio object.
func (s *AudioStore) Remove(ctx context.Context, key string) error {
	if s.client == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove audio object %s: %w", key, err)
	}
	return nil
}
