package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// GenerationType tags records written by this service.
const GenerationType = "latex_ocr"

// ClientConfig configures a storage service client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration // per Save, covering the read and the write
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
	Now        func() time.Time // Optional (tests)
}

// Client saves generated documents to the storage service.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient creates a new storage service client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Payload is the record written for a script.
type Payload struct {
	ScriptID           string             `json:"script_id"`
	Restructured       Restructured       `json:"restructured"`
	VLMDesc            VLMDesc            `json:"vlmdesc"`
	FinalCorrectedText FinalCorrectedText `json:"final_corrected_text"`
}

// Restructured carries a placeholder the storage service requires.
type Restructured struct {
	FinalText string `json:"final_text"`
}

// VLMDesc wraps the preserved vlmdesc value.
type VLMDesc struct {
	VLMDesc json.RawMessage `json:"vlm_desc"`
}

// FinalCorrectedText holds the generated LaTeX.
type FinalCorrectedText struct {
	Result           string `json:"result"`
	CompleteDocument string `json:"complete_document"`
	GenerationType   string `json:"generation_type"`
	Timestamp        string `json:"timestamp"`
}

// Save reads the script's existing vlmdesc and writes a record carrying it
// alongside the generated LaTeX. The save is aborted if no candidate
// endpoint could be read at all.
func (c *Client) Save(ctx context.Context, scriptID, latexContent, completeDocument string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	existing, err := c.ExistingVLMDesc(ctx, scriptID)
	if err != nil {
		return err
	}

	payload := Payload{
		ScriptID:     scriptID,
		Restructured: Restructured{FinalText: " "},
		VLMDesc:      VLMDesc{VLMDesc: existing},
		FinalCorrectedText: FinalCorrectedText{
			Result:           latexContent,
			CompleteDocument: completeDocument,
			GenerationType:   GenerationType,
			Timestamp:        c.now().UTC().Format(time.RFC3339),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := c.baseURL + "/compare-text/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: "write", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &Error{
			Op:         "write",
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API error: %s", strings.TrimSpace(string(respBody))),
		}
	}

	c.logger.Info("saved latex", "script_id", scriptID, "bytes", len(body))
	return nil
}

// candidates lists the read endpoints in the order they are tried.
func (c *Client) candidates(scriptID string) []string {
	escaped := url.PathEscape(scriptID)
	return []string{
		c.baseURL + "/compare-text/" + escaped + "/",
		c.baseURL + "/compare-text/?script_id=" + url.QueryEscape(scriptID),
		c.baseURL + "/compare-text/",
	}
}

// ExistingVLMDesc returns the vlmdesc stored for scriptID, or {} when no
// record exists. It fails with ErrReadExisting only when every candidate
// endpoint failed at the transport level or with a 5xx answer.
func (c *Client) ExistingVLMDesc(ctx context.Context, scriptID string) (json.RawMessage, error) {
	urls := c.candidates(scriptID)

	var (
		found    json.RawMessage
		answered bool
		next     int
	)
	err := retry.Do(
		func() error {
			endpoint := urls[next]
			next++

			body, err := c.get(ctx, endpoint)
			if err != nil {
				if !transient(err) {
					answered = true
				}
				c.logger.Warn("existing record read failed", "url", endpoint, "error", err)
				return err
			}
			answered = true

			vlm, err := extractVLMDesc(body, scriptID)
			if err != nil {
				c.logger.Debug("no record at candidate", "url", endpoint, "error", err)
				return err
			}
			found = vlm
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(len(urls))),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return found, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadExisting, ctxErr)
	}
	if !answered {
		return nil, fmt.Errorf("%w: %w", ErrReadExisting, err)
	}
	c.logger.Info("no existing record, starting with empty vlmdesc", "script_id", scriptID)
	return emptyVLMDesc, nil
}

// HealthCheck reports whether the service root answers 200.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.get(ctx, c.baseURL+"/")
	return err
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Op: "read", URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: "read", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "read", URL: endpoint, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		err := ErrRecordNotFound
		if resp.StatusCode >= 500 {
			err = errors.New(http.StatusText(resp.StatusCode))
		}
		return nil, &Error{Op: "read", URL: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}
