// Package backend is the HTTP client for the REST API that queued mutations
// are replayed against.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"flightbook/internal/domain"
)

const (
	pathBookings    = "/api/bookings"
	pathPriceAlerts = "/api/price-alerts"
	pathPreferences = "/api/notifications/preferences"
	pathPayments    = "/api/payments/process"
)

// HTTPError is returned for every non-2xx reply.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Client calls the backend with a bearer token supplied per call.
type Client struct {
	baseURL    string
	healthPath string
	httpClient *http.Client
}

var _ domain.Backend = (*Client)(nil)

// NewClient builds a client. A nil httpClient means one without a timeout so
// only the caller's context bounds a request.
func NewClient(baseURL, healthPath string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		healthPath: healthPath,
		httpClient: httpClient,
	}
}

func (c *Client) CreateBooking(ctx context.Context, token string, body json.RawMessage) error {
	return c.send(ctx, http.MethodPost, pathBookings, token, body)
}

func (c *Client) CreatePriceAlert(ctx context.Context, token string, body json.RawMessage) error {
	return c.send(ctx, http.MethodPost, pathPriceAlerts, token, body)
}

func (c *Client) UpdatePriceAlert(ctx context.Context, token, id string, body json.RawMessage) error {
	return c.send(ctx, http.MethodPut, pathPriceAlerts+"/"+url.PathEscape(id), token, body)
}

// DeletePriceAlert sends no body and no Content-Type.
func (c *Client) DeletePriceAlert(ctx context.Context, token, id string) error {
	return c.send(ctx, http.MethodDelete, pathPriceAlerts+"/"+url.PathEscape(id), token, nil)
}

func (c *Client) UpdatePreferences(ctx context.Context, token string, body json.RawMessage) error {
	return c.send(ctx, http.MethodPut, pathPreferences, token, body)
}

func (c *Client) ProcessPayment(ctx context.Context, token string, body json.RawMessage) error {
	return c.send(ctx, http.MethodPost, pathPayments, token, body)
}

// Health issues an unauthenticated GET against the health path.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, c.healthPath, "", nil)
}

func (c *Client) send(ctx context.Context, method, path, token string, body json.RawMessage) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
}

// errorMessage prefers the backend's own "error" or "message" field.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
