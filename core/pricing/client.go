package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is the HTTP quote-service client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a quote-service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type quoteRequest struct {
	UnitType        string  `json:"unitType"`
	DurationSeconds float64 `json:"durationSeconds"`
	Model           string  `json:"model"`
}

type quoteResponse struct {
	Credits float64 `json:"credits"`
}

// Quote fetches a credit quote from the pricing service.
func (c *Client) Quote(ctx context.Context, unitType string, durationSeconds float64, costModel string) (float64, error) {
	body, err := json.Marshal(quoteRequest{
		UnitType:        unitType,
		DurationSeconds: durationSeconds,
		Model:           costModel,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal quote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/quote", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build quote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote service returned status %d", resp.StatusCode)
	}

	var out quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode quote response: %w", err)
	}
	return out.Credits, nil
}
