// Package backend talks to the remote site-analysis service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SiteAuditor/internal/domain"
	"SiteAuditor/internal/ports"
)

const (
	analyzePath = "/analyze"
	notifyPath  = "/send-smart-email"
	userAgent   = "SiteAuditor/1.0"
)

// ErrNotSent is returned when the service accepted the request but reported the email as not delivered.
var ErrNotSent = errors.New("service reported email not sent")

// ErrNotObject is returned when the analysis response is empty or not a JSON object.
var ErrNotObject = errors.New("response is not a JSON object")

// Client calls the analysis and smart-email endpoints under one base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.Analyzer = (*Client)(nil)
var _ ports.Notifier = (*Client)(nil)

// NewClient creates a reusable HTTP client. A zero timeout means requests are bounded only by ctx.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base url is empty")
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Analyze asks the service to inspect url. The body must be a JSON object; a missing or
// malformed logs field inside it yields no lines.
func (c *Client) Analyze(ctx context.Context, url string) (domain.AnalysisResult, error) {
	raw, err := c.post(ctx, analyzePath, map[string]string{"url": url})
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	body := bytes.TrimSpace(raw)
	if len(body) == 0 || body[0] != '{' {
		return domain.AnalysisResult{}, fmt.Errorf("%s: %w", analyzePath, ErrNotObject)
	}

	var resp struct {
		Country string          `json:"country"`
		Logs    json.RawMessage `json:"logs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("decode response %s: %w", analyzePath, err)
	}

	return domain.AnalysisResult{
		Country: resp.Country,
		Logs:    decodeLines(resp.Logs),
	}, nil
}

// Notify requests a smart email for the notification target. An empty body counts as sent.
func (c *Client) Notify(ctx context.Context, n domain.Notification) error {
	raw, err := c.post(ctx, notifyPath, n)
	if err != nil {
		return err
	}

	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil
	}

	var resp struct {
		Sent *bool `json:"sent"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode response %s: %w", notifyPath, err)
	}
	if resp.Sent != nil && !*resp.Sent {
		return ErrNotSent
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	return raw, nil
}

// decodeLines keeps the string entries of a JSON array and ignores anything else.
func decodeLines(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		var line string
		if err := json.Unmarshal(item, &line); err == nil {
			lines = append(lines, line)
		}
	}
	return lines
}
