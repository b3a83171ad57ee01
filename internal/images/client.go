package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// StatusError is a non-2xx answer from the image source.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image source %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Source fetches the ordered pages of a script.
type Source interface {
	Fetch(ctx context.Context, scriptID string) ([]Page, error)
}

// ClientConfig configures an image source client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration // per-call; applied via context
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// Client talks to the image source service over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a new image source client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch returns the script's pages sorted by page number. Entries without
// image data are skipped. An empty slice means the script has no images.
func (c *Client) Fetch(ctx context.Context, scriptID string) ([]Page, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL + "/script-images/?script_id=" + url.QueryEscape(scriptID)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	entries, err := decodeEntries(body)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		return a.pageNumber() - b.pageNumber()
	})

	pages := make([]Page, 0, len(entries))
	for _, e := range entries {
		data, err := e.image()
		if err != nil {
			c.logger.Warn("skipping page", "script_id", scriptID, "page_number", e.pageNumber(), "error", err)
			continue
		}
		pages = append(pages, Page{
			Number:  e.pageNumber(),
			Index:   len(pages) + 1,
			Encoded: data,
		})
	}

	c.logger.Info("fetched images", "script_id", scriptID, "count", len(pages))
	return pages, nil
}

// HealthCheck reports whether the service root answers 2xx.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.get(ctx, c.baseURL+"/")
	return err
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image source request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image source response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
