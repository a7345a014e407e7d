package cortex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	api "github.com/kailas-cloud/cortex/internal/transport/chi"
)

const defaultTimeout = 10 * time.Minute

// Client is the cortex API entry point. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	apiKey  string
	obs     *observer
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8082".
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("cortex: server address required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("cortex: parse server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("cortex: server address %q must be http or https", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return &Client{baseURL: u, http: hc, apiKey: cfg.apiKey, obs: obs}, nil
}

// Collections returns the collection management service.
func (c *Client) Collections() *CollectionService {
	return &CollectionService{c: c}
}

// Ingest returns the ingestion service.
func (c *Client) Ingest() *IngestService {
	return &IngestService{c: c}
}

// Query answers a question from a collection.
func (c *Client) Query(ctx context.Context, req QueryRequest) (_ Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err) }()

	body := api.QueryRequest{Query: req.Query, IncludeSources: req.IncludeSources}
	if req.Collection != "" {
		body.Collection = &req.Collection
	}
	if req.TopK > 0 {
		body.TopK = &req.TopK
	}

	var resp api.QueryResponse
	if err = c.doJSON(ctx, http.MethodPost, "/query", nil, body, &resp); err != nil {
		return Answer{}, fmt.Errorf("query: %w", err)
	}

	ans := Answer{Text: resp.Answer}
	if resp.Sources != nil {
		ans.Sources = make([]Source, len(resp.Sources))
		for i, s := range resp.Sources {
			ans.Sources[i] = Source{Text: s.Text, Score: s.Score, Metadata: s.Metadata}
		}
	}
	return ans, nil
}

// Health reports server and dependency health. A degraded server is not an error.
func (c *Client) Health(ctx context.Context) (_ HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	var resp api.HealthResponse
	if err = c.doJSON(ctx, http.MethodGet, "/health", nil, nil, &resp); err != nil {
		// Degraded is reported as 503 with a regular health body.
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable || resp.Status == "" {
			return HealthStatus{}, fmt.Errorf("health: %w", err)
		}
		err = nil
	}
	return HealthStatus{Status: resp.Status, Checks: resp.Checks}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// doJSON sends in (if non-nil) as JSON and decodes the response into out.
// On a non-2xx status out is still decoded when the body matches it.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, body, contentType, out)
}

func (c *Client) do(
	ctx context.Context, method, path string, query url.Values,
	body io.Reader, contentType string, out any,
) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "internal_error", Message: strings.TrimSpace(string(data))}
		var er api.ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Code != "" {
			apiErr.Code, apiErr.Message = string(er.Code), er.Message
		} else if out != nil {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
