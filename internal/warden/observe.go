// Package warden tends the population from outside the simulation.
// It observes state via the HTTP API, picks rituals by rule,
// and performs them via the admin ritual endpoint.
package warden

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status       Status       `json:"status"`
	Quarantined  []EntityInfo `json:"quarantined"`
	Reintegrated []EntityInfo `json:"reintegrated"`
	Alerts       []AlertInfo  `json:"alerts"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Name         string  `json:"name"`
	Cycle        uint64  `json:"cycle"`
	Population   int     `json:"population"`
	Active       int     `json:"active"`
	Quarantined  int     `json:"quarantined"`
	Reintegrated int     `json:"reintegrated"`
	AvgDrift     float64 `json:"avg_drift"`
	Ledger       int     `json:"ledger"`
	Speed        float64 `json:"speed"`
}

// EntityInfo mirrors the summary records of GET /api/v1/entities.
type EntityInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Archetype  string  `json:"archetype"`
	Status     string  `json:"status"`
	DriftLevel float64 `json:"drift_level"`
}

// AlertInfo mirrors items from GET /api/v1/alerts.
type AlertInfo struct {
	Event     string  `json:"event"`
	EntityID  string  `json:"entity_id"`
	Level     string  `json:"level"`
	Drift     float64 `json:"drift"`
	Coherence float64 `json:"coherence"`
}

// Observer fetches population state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the status, both non-active populations and recent alerts.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/entities?status=quarantined", &snap.Quarantined); err != nil {
		return nil, fmt.Errorf("fetch quarantined: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/entities?status=reintegrated", &snap.Reintegrated); err != nil {
		return nil, fmt.Errorf("fetch reintegrated: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/alerts?limit=20", &snap.Alerts); err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}

	return snap, nil
}

// Ready reports whether the status endpoint answers 200.
func (o *Observer) Ready(ctx context.Context) bool {
	var st Status
	return o.fetchJSON(ctx, "/api/v1/status", &st) == nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
