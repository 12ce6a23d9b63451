package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"soundscene/model"
)

// Client is the HTTP feature-extraction service client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an extraction-service client. Extraction can take a
// while for long tracks, so the transport timeout is generous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type analyzeRequest struct {
	TrackID string `json:"trackId"`
	URL     string `json:"url"`
}

// Analyze submits a track for feature extraction and waits for the result.
func (c *Client) Analyze(ctx context.Context, track model.Track) (model.AnalysisResult, error) {
	body, err := json.Marshal(analyzeRequest{TrackID: track.ID, URL: track.URL})
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.AnalysisResult{}, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	var result model.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to decode analyze response: %w", err)
	}
	result.TrackID = track.ID
	if result.AnalyzedAt.IsZero() {
		result.AnalyzedAt = time.Now()
	}
	return result, nil
}
