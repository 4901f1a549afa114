package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"calendar-proxy/internal/config"
	"calendar-proxy/internal/utils"
)

// Fixed upstream paths on the Python server
const (
	CalendarStatusPath     = "/api/v1/calendar/status"
	CalendarConnectPath    = "/api/v1/calendar/connect"
	CalendarDisconnectPath = "/api/v1/calendar/disconnect"
	JiraStatusPath         = "/api/v1/jira/status"
	JiraConnectPath        = "/api/v1/jira/connect"
	JiraDisconnectPath     = "/api/v1/jira/disconnect"
	WebhookPath            = "/api/v1/webhook"
)

var emptyObject = json.RawMessage(`{}`)

// Response is a completed upstream exchange. Body is always valid JSON: the
// upstream body when it parses, otherwise {}.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Client forwards JSON bodies to the upstream server
type Client struct {
	cfg        *config.UpstreamConfig
	httpClient *http.Client
}

// NewClient builds a client for cfg. A nil httpClient gets a fresh one using
// cfg.Timeout.
func NewClient(cfg *config.UpstreamConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// BaseURL reports the configured upstream base address
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// URL returns the absolute upstream URL for path
func (c *Client) URL(path string) string {
	return c.cfg.UpstreamURL(path)
}

// PostJSON encodes payload and POSTs it to path. Any reply, whatever its
// status, is a success. Only failures to complete the exchange return an
// error, always an *utils.AppError with code ErrUpstreamUnavailable.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, utils.NewUpstreamError(fmt.Errorf("encode upstream body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(body))
	if err != nil {
		return nil, utils.NewUpstreamError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewUpstreamError(err)
	}
	defer resp.Body.Close()

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       decodeBody(resp.Body),
	}, nil
}

// decodeBody reads an upstream body and keeps it only if it is a single JSON
// value. Read errors count as an unparsable body.
func decodeBody(r io.Reader) json.RawMessage {
	raw, err := io.ReadAll(r)
	if err != nil {
		return emptyObject
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return emptyObject
	}
	return json.RawMessage(raw)
}
