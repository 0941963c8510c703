// Package entropy provides the random sources behind every stochastic rule in the
// simulation. Rules draw through the Source interface so tests can pin exact sequences.
// The random.org client pools true random numbers and falls back to crypto/rand.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const randomOrgURL = "https://api.random.org/json-rpc/4/invoke"

// lowWater is the pool size below which a background refill starts.
const lowWater = 10

// Client provides true random numbers from random.org with a local pool.
// Draws never wait on the network: refills run in the background and an empty
// pool falls back to crypto/rand.
type Client struct {
	apiKey string
	url    string
	client *http.Client

	mu        sync.Mutex
	pool      []float64
	refilling bool
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey: apiKey,
		url:    randomOrgURL,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Float64 returns a random float64 in [0, 1) from the pool, starting a
// background refill when the pool runs low.
func (c *Client) Float64() float64 {
	if !c.Enabled() {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	if len(c.pool) < lowWater && !c.refilling {
		c.refilling = true
		go c.backgroundRefill()
	}
	if len(c.pool) == 0 {
		c.mu.Unlock()
		return cryptoRandFloat()
	}
	val := c.pool[0]
	c.pool = c.pool[1:]
	c.mu.Unlock()
	return val
}

// Refill fetches one batch synchronously. Call it at startup so the first
// draws come from random.org.
func (c *Client) Refill(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	vals, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pool = append(c.pool, vals...)
	c.mu.Unlock()
	return nil
}

func (c *Client) backgroundRefill() {
	ctx, cancel := context.WithTimeout(context.Background(), c.client.Timeout)
	defer cancel()
	vals, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refilling = false
	if err != nil {
		slog.Debug("random.org refill failed", "error", err)
		return
	}
	c.pool = append(c.pool, vals...)
	slog.Debug("random.org pool refilled", "count", len(c.pool))
}

func (c *Client) fetch(ctx context.Context) ([]float64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             100,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
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
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("api error: %s", result.Error.Message)
	}

	vals := make([]float64, 0, len(result.Result.Random.Data))
	for _, v := range result.Result.Random.Data {
		// random.org fractions are in [0, 1]; keep the half-open contract.
		if v >= 1 {
			continue
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// cryptoRandFloat generates a random float64 using crypto/rand as fallback.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Crypto is a Source backed directly by crypto/rand.
type Crypto struct{}

// Float64 implements Source.
func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}
