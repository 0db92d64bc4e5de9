// Package grist implements the backend collaborators over the Grist REST
// API: the mutation surface (user actions against a document) and the
// metadata resolver (table/column lookup). Retries and metadata caching
// live here, beneath the compiler, which treats every call as a plain
// request/response.
package grist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gwhthompson/grist-mcp-server-sub003/util"
)

const defaultMaxRetries = 3

// Config configures one document client.
type Config struct {
	// BaseURL is the API host, e.g. "https://docs.getgrist.com".
	BaseURL string
	APIKey  string
	DocID   string

	Timeout  time.Duration
	CacheTTL time.Duration
	Logger   *log.Logger
}

// Client talks to one Grist document. It implements compiler.Backend and
// compiler.MetaResolver.
type Client struct {
	baseURL  string
	apiKey   string
	docID    string
	http     *http.Client
	log      *log.Logger
	cache    *memoryCache
	cacheTTL time.Duration
}

// NewClient builds a document client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("grist: base URL is required")
	}
	if cfg.DocID == "" {
		return nil, fmt.Errorf("grist: document id is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		docID:    cfg.DocID,
		http:     &http.Client{Timeout: timeout},
		log:      logger,
		cache:    newMemoryCache(),
		cacheTTL: cfg.CacheTTL,
	}, nil
}

// DocID returns the document this client is bound to.
func (c *Client) DocID() string { return c.docID }

// APIError is a non-2xx response from the backend, surfaced verbatim so a
// caller sees exactly what the backend refused.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("grist API %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// retryable reports whether a response status is worth retrying.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// doJSON issues one request with retries on transport errors, 429 and 5xx,
// backing off quadratically between attempts, and decodes the response
// into out. Client errors (4xx) are returned immediately.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			c.log.Debug("retrying request", "method", method, "path", path, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path, Body: string(bytes.TrimSpace(respBody))}
			if retryable(resp.StatusCode) {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
		return nil
	}
	return fmt.Errorf("request failed after %d attempts: %w", defaultMaxRetries, lastErr)
}

func (c *Client) docPath(suffix string) string {
	return "/api/docs/" + url.PathEscape(c.docID) + suffix
}

// apply sends a batch of user actions to the document and returns the
// per-action return values. Any mutation invalidates cached metadata.
func (c *Client) apply(ctx context.Context, actions []any) ([]json.RawMessage, error) {
	var resp struct {
		ActionNum int               `json:"actionNum"`
		RetValues []json.RawMessage `json:"retValues"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.docPath("/apply"), actions, &resp); err != nil {
		return nil, err
	}
	c.cache.Clear()
	return resp.RetValues, nil
}

// record is one row of a document table as returned by the records API.
type record struct {
	ID     int            `json:"id"`
	Fields map[string]any `json:"fields"`
}

// records fetches all rows of a table, via the metadata cache when cached
// is true.
func (c *Client) records(ctx context.Context, tableID string, cached bool) ([]record, error) {
	key := util.CacheKey(c.docID, "records", tableID)
	if cached {
		if data, ok := c.cache.Get(key); ok {
			var recs []record
			if err := json.Unmarshal(data, &recs); err == nil {
				return recs, nil
			}
		}
	}

	var resp struct {
		Records []record `json:"records"`
	}
	path := c.docPath("/tables/" + url.PathEscape(tableID) + "/records")
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	if cached {
		if data, err := json.Marshal(resp.Records); err == nil {
			c.cache.Set(key, data, c.cacheTTL)
		}
	}
	return resp.Records, nil
}

// fieldInt reads a numeric record field; missing or non-numeric fields
// read as zero. The records API encodes all numbers as float64.
func fieldInt(r record, name string) int {
	if v, ok := r.Fields[name].(float64); ok {
		return int(v)
	}
	return 0
}

func fieldString(r record, name string) string {
	if v, ok := r.Fields[name].(string); ok {
		return v
	}
	return ""
}
