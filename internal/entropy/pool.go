package entropy

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const randomOrgURL = "https://api.random.org/json-rpc/4/invoke"

// Pool is a Source fed by random.org with a local buffer. It falls back to
// crypto/rand whenever the API is unavailable.
type Pool struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu   sync.Mutex
	pool []float64
}

// NewPool creates a random.org backed source. Returns nil if apiKey is empty;
// a nil *Pool still works and draws from crypto/rand.
func NewPool(apiKey string) *Pool {
	if apiKey == "" {
		return nil
	}
	return &Pool{
		apiKey:   apiKey,
		endpoint: randomOrgURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Float64 returns a random float64 in [0, 1), refilling from random.org when
// the buffer runs low.
func (p *Pool) Float64() float64 {
	if p == nil {
		return cryptoRandFloat()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pool) < 10 {
		p.refill()
	}

	if len(p.pool) == 0 {
		return cryptoRandFloat()
	}

	val := p.pool[0]
	p.pool = p.pool[1:]
	return val
}

// Intn implements Source.
func (p *Pool) Intn(n int) int {
	return intnFromFloat(p.Float64(), n)
}

// Enabled returns true if the pool has a valid API key.
func (p *Pool) Enabled() bool {
	return p != nil && p.apiKey != ""
}

func (p *Pool) refill() {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        p.apiKey,
			"n":             100,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return
	}

	resp, err := p.client.Post(p.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return
	}

	var result struct {
		Result struct {
			Random struct {
				Data []float64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return
	}

	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return
	}

	p.pool = append(p.pool, result.Result.Random.Data...)
	slog.Debug("random.org pool refilled", "count", len(result.Result.Random.Data))
}
