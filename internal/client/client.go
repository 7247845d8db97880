// Package client provides the remote-call client for the session service
// and the resilient wrapper that survives backend failovers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SessionHeader matches the header the serving side reads the session id
// from. Kept in sync with the app package by the transport tests.
const SessionHeader = "Mcp-Session-Id"

// ToolResult is the structured payload a tool call returns.
type ToolResult map[string]any

// Client is a plain HTTP/JSON client bound to one backend connection and,
// after Connect, to one server-issued session id. It performs no retries;
// resilience lives in ResilientClient.
type Client struct {
	baseURL   string
	http      *http.Client
	sessionID string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Connect performs the session handshake and records the issued session id.
func (c *Client) Connect(ctx context.Context) error {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/mcp/connect", nil, "", &resp); err != nil {
		return fmt.Errorf("client: connect: %w", err)
	}
	if resp.SessionID == "" {
		return fmt.Errorf("client: connect: server issued no session id")
	}
	c.sessionID = resp.SessionID
	return nil
}

func (c *Client) SessionID() string {
	return c.sessionID
}

// CallTool invokes a named tool under the client's current session.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("client: call %q: not connected", name)
	}

	body := map[string]any{"name": name, "arguments": args}
	var resp struct {
		Result ToolResult `json:"result"`
	}
	if err := c.post(ctx, "/mcp/call", body, c.sessionID, &resp); err != nil {
		return nil, fmt.Errorf("client: call %q: %w", name, err)
	}
	return resp.Result, nil
}

// Summary fetches the read-only state projection for a session id.
func (c *Client) Summary(ctx context.Context, sid string) (map[string]any, error) {
	var resp map[string]any
	if err := c.get(ctx, "/sessions/"+sid+"/summary", &resp); err != nil {
		return nil, fmt.Errorf("client: summary: %w", err)
	}
	return resp, nil
}

// Health reports whether the backend answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]any
	if err := c.get(ctx, "/health", &resp); err != nil {
		return fmt.Errorf("client: health: %w", err)
	}
	return nil
}

// Close releases the connection. Safe to call on a never-connected client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, sid string, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &remote) == nil && remote.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, remote.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
