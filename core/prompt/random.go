package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// RandomPrompt is a generated text prompt and the category it was drawn from.
type RandomPrompt struct {
	Prompt   string `json:"prompt"`
	Category string `json:"category"`
}

// Client is the HTTP random-prompt service client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a random-prompt service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Random fetches a generated prompt. category filters the pool ("" for any);
// instrumental asks for a prompt suited to tracks without vocals.
func (c *Client) Random(ctx context.Context, category string, instrumental bool) (*RandomPrompt, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	params.Set("instrumental", strconv.FormatBool(instrumental))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/prompts/random?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prompt request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prompt service returned status %d", resp.StatusCode)
	}

	var out RandomPrompt
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode prompt response: %w", err)
	}
	return &out, nil
}
