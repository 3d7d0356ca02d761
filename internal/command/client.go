package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/lumenhub-core/internal/device"
)

// DefaultFallbackTimeout bounds a direct request when none is configured.
const DefaultFallbackTimeout = 5 * time.Second

// maxResponseBytes caps how much of a device reply is kept.
const maxResponseBytes = 64 << 10

const statusPath = "/api/status"

// Client makes direct HTTP requests to a device's embedded web server.
//
// Each call is a single attempt; there are no retries.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose requests time out after timeout.
// A non-positive timeout uses DefaultFallbackTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultFallbackTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Post sends body as JSON to path on the device at address.
func (c *Client) Post(ctx context.Context, address, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, address, path, bytes.NewReader(payload))
}

// Status fetches the device's status document.
func (c *Client) Status(ctx context.Context, address string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, address, statusPath, nil)
}

func (c *Client) do(ctx context.Context, method, address, path string, body io.Reader) (json.RawMessage, error) {
	if address == "" || address == device.UnknownAddress {
		return nil, fmt.Errorf("%w: no address known", ErrDeviceUnreachable)
	}

	url := "http://" + address + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrDeviceUnreachable, method, url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrDeviceUnreachable, method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrDeviceUnreachable, err)
	}
	// Drain the rest to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrDeviceUnreachable, method, url, resp.StatusCode)
	}
	return asJSON(data), nil
}

// asJSON returns data unchanged when it is JSON, quoted as a string when
// it is not, and nil when it is empty.
func asJSON(data []byte) json.RawMessage {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, err := json.Marshal(string(data))
	if err != nil {
		return nil
	}
	return quoted
}
