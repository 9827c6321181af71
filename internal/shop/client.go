// Package shop holds the thin REST clients for the storefront backend.
// The assistant treats these resources as external collaborators; the CRUD
// screens built on top of them are not part of this program.
package shop

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

	"shop_assistant/internal/applog"
)

const (
	defaultTimeout          = 15 * time.Second
	defaultMaxResponseBytes = 256 * 1024
)

type Client struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
	Logger     *applog.Logger
}

func (c *Client) resolvedBaseURL() string {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return "http://localhost:8000"
	}
	return strings.TrimRight(base, "/")
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c != nil && c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload any, out any) error {
	if c == nil {
		return errors.New("nil shop client")
	}
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.resolvedBaseURL()+endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > 2000 {
			snippet = snippet[:2000] + "…"
		}
		return fmt.Errorf("shop api error: %s: %s", resp.Status, snippet)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
