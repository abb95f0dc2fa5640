package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seandooa/cg4002-capstone-code/internal/command"
	"github.com/seandooa/cg4002-capstone-code/internal/models"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
)

// HTTPClient implements Backend by calling the relay's REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the relay runs elsewhere (reached over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent on command requests when set.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body any, ok ...int) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	accepted := resp.StatusCode == http.StatusOK
	for _, code := range ok {
		accepted = accepted || resp.StatusCode == code
	}
	if !accepted {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

func (c *HTTPClient) ListDevices(ctx context.Context) ([]registry.Entry, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/devices", nil, nil)
	if err != nil {
		return nil, err
	}
	var devices []registry.Entry
	if err := json.Unmarshal(body, &devices); err != nil {
		return nil, fmt.Errorf("httpclient: decode devices: %w", err)
	}
	return devices, nil
}

// Execute posts the command to /api/v1/devices/{target}/{action}. A 404
// carries a not-found result rather than an error.
func (c *HTTPClient) Execute(ctx context.Context, cmd command.Command) (command.Result, error) {
	path := fmt.Sprintf("/api/v1/devices/%s/%s", url.PathEscape(cmd.Target), cmd.Action)

	var payload any
	if cmd.Action == command.ActionSelect {
		payload = map[string]string{"exercise_type": cmd.Exercise}
	}

	body, err := c.do(ctx, http.MethodPost, path, nil, payload, http.StatusNotFound)
	if err != nil {
		return command.Result{Command: cmd}, err
	}
	res := command.Result{Command: cmd}
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("httpclient: decode command result: %w", err)
	}
	return res, nil
}

func (c *HTTPClient) RecentWorkouts(ctx context.Context, deviceID string, limit int) ([]models.WorkoutRow, error) {
	params := url.Values{}
	if deviceID != "" {
		params.Set("device_id", deviceID)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts", params, nil)
	if err != nil {
		return nil, err
	}
	var workouts []models.WorkoutRow
	if err := json.Unmarshal(body, &workouts); err != nil {
		return nil, fmt.Errorf("httpclient: decode workouts: %w", err)
	}
	return workouts, nil
}
