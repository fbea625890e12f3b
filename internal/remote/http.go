package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config holds the remote endpoint settings.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// Client talks to the remote store over HTTPS: REST-style keyed upserts and
// flag updates, plus a websocket realtime feed. Requests are paced by a rate
// limiter so bulk drains cannot hammer the endpoint.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 20
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With().Str("component", "remote").Logger(),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// Upsert writes rows keyed by conflictKey. Duplicate-key resolution merges
// into the existing row, which makes re-sending an applied row a no-op.
func (c *Client) Upsert(ctx context.Context, table, conflictKey string, rows any) error {
	query := url.Values{"on_conflict": {conflictKey}}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates"}
	if _, err := c.do(ctx, http.MethodPost, "/rest/v1/"+table, query, headers, rows); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

// SoftDelete flags the matching rows as deleted instead of removing them.
func (c *Client) SoftDelete(ctx context.Context, table, conflictKey string, keys []string, at time.Time) error {
	if len(keys) == 0 {
		return nil
	}
	query := url.Values{conflictKey: {"in.(" + strings.Join(keys, ",") + ")"}}
	patch := map[string]any{"deleted": true, "deleted_at": at.UTC().Format(time.RFC3339Nano)}
	if _, err := c.do(ctx, http.MethodPatch, "/rest/v1/"+table, query, nil, patch); err != nil {
		return fmt.Errorf("soft delete %s: %w", table, err)
	}
	return nil
}

// FetchAll returns every row of the table as raw JSON objects.
func (c *Client) FetchAll(ctx context.Context, table string) ([]json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodGet, "/rest/v1/"+table, url.Values{"select": {"*"}}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}
	return rows, nil
}

// Ping probes the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return classifyStatus(resp.StatusCode, resp.Status)
	}
	return nil
}
