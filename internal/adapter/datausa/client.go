// Package datausa resolves state populations from the Data USA API
// (https://datausa.io/about/api/), the population source the per-capita
// metrics join against.
package datausa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/couchcryptid/covid-state-metrics/internal/domain"
)

// Client implements domain.PopulationSource against the Data USA API. The
// API returns the whole per-state table in one response, so the first lookup
// fetches it once and every later lookup hits the memoized map.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger

	mu    sync.Mutex
	table map[string]int64
}

// NewClient creates a Data USA population client. baseURL is the API root,
// e.g. "https://datausa.io/api/data".
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Population returns the population for a state name, or an error wrapping
// domain.ErrStateNotFound when the API knows no such state. The underlying
// fetch happens once; a fetch failure is returned as-is and retried on the
// next call.
func (c *Client) Population(ctx context.Context, state string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.table == nil {
		table, err := c.fetchTable(ctx)
		if err != nil {
			return 0, err
		}
		c.table = table
		c.logger.Info("population table fetched", "states", len(table))
	}

	population, ok := c.table[state]
	if !ok {
		return 0, fmt.Errorf("%q: %w", state, domain.ErrStateNotFound)
	}
	return population, nil
}

func (c *Client) fetchTable(ctx context.Context) (map[string]int64, error) {
	params := url.Values{
		"drilldowns": {"State"},
		"measures":   {"Population"},
		"year":       {"latest"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("population request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("datausa API error: status %d: %s", resp.StatusCode, body)
	}

	var apiResp response
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	table := make(map[string]int64, len(apiResp.Data))
	for _, e := range apiResp.Data {
		// Entries arrive newest year first; keep the first per state.
		if _, seen := table[e.State]; seen {
			continue
		}
		table[e.State] = int64(e.Population)
	}
	return table, nil
}

// Data USA API response types.

type response struct {
	Data []entry `json:"data"`
}

type entry struct {
	State      string  `json:"State"`
	Year       string  `json:"Year"`
	Population float64 `json:"Population"`
}
