package warden

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RitualResult is the response from POST /api/v1/ritual.
type RitualResult struct {
	OK     bool    `json:"ok"`
	Entity string  `json:"entity"`
	Ritual string  `json:"ritual"`
	Status string  `json:"status"`
	Drift  float64 `json:"drift"`
}

// Actor performs rituals via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Perform sends one action to POST /api/v1/ritual.
func (a *Actor) Perform(ctx context.Context, act Action) (*RitualResult, error) {
	body, err := json.Marshal(map[string]string{"entity": act.EntityID, "ritual": act.Ritual})
	if err != nil {
		return nil, fmt.Errorf("marshal ritual: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/v1/ritual", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST ritual: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ritual failed (%d): %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var result RitualResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
