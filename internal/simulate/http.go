package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/jackcount/internal/domain/types"
)

// Client talks to the counter's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// CreateSession starts a new session.
func (c *Client) CreateSession(ctx context.Context) (types.SessionView, error) {
	var v types.SessionView
	err := c.call(ctx, http.MethodPost, "/sessions", nil, http.StatusCreated, &v)
	return v, err
}

// Session fetches a session view.
func (c *Client) Session(ctx context.Context, id string) (types.SessionView, error) {
	var v types.SessionView
	err := c.call(ctx, http.MethodGet, "/sessions/"+id, nil, http.StatusOK, &v)
	return v, err
}

// DeleteSession stops a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/sessions/"+id, nil, http.StatusNoContent, nil)
}

// PostFrame submits one frame. Inline submissions return the frame result;
// async submissions return only the duplicate flag.
func (c *Client) PostFrame(ctx context.Context, id string, f *types.FrameRequest, async bool) (types.FrameResult, error) {
	path := "/sessions/" + id + "/frames"
	want := http.StatusOK
	if async {
		path += "?async=true"
		want = http.StatusAccepted
	}

	resp, err := c.do(ctx, http.MethodPost, path, f)
	if err != nil {
		return types.FrameResult{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.FrameResult{}, fmt.Errorf("read response: %w", err)
	}

	var res types.FrameResult
	switch resp.StatusCode {
	case want:
	case http.StatusOK:
		// duplicate on the async path
	default:
		return res, fmt.Errorf("%w: %s %d: %s", ErrUnexpected, path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("decode frame result: %w", err)
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, method, path string, in any, want int, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s %d: %s", ErrUnexpected, method, path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}
