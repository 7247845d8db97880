package client

import (
	"context"
	"fmt"
	"time"

	"github.com/vikrantjain/mcp-high-availability/internal/logger"
)

// ResilientClient wraps Client with retry-reconnect-resume behavior. When
// any remote call fails it tears down the connection, performs a fresh
// handshake (landing on whichever backend the load balancer picks), asks
// that backend to resume the old session's state, and reissues the call.
// Teardown and resume failures are absorbed; callers only ever see a
// clean success or the last underlying error once retries are exhausted.
//
// A ResilientClient serves one logical session for one caller at a time;
// it adds no internal concurrency beyond sequential retries.
type ResilientClient struct {
	baseURL    string
	maxRetries int
	baseDelay  time.Duration

	client    *Client
	sessionID string
}

func NewResilient(baseURL string, maxRetries int) *ResilientClient {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &ResilientClient{
		baseURL:    baseURL,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
	}
}

// Connect establishes the initial connection. Unlike per-call retries, a
// failure here is surfaced directly; there is no session to recover yet.
func (r *ResilientClient) Connect(ctx context.Context) error {
	c := New(r.baseURL)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	r.client = c
	r.sessionID = c.SessionID()
	return nil
}

// SessionID returns the id of the current session, which changes after
// every successful reconnect.
func (r *ResilientClient) SessionID() string {
	return r.sessionID
}

func (r *ResilientClient) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// CallTool invokes a named tool through the retry machinery.
func (r *ResilientClient) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	var result ToolResult
	err := r.withRetry(ctx, func(c *Client) error {
		res, err := c.CallTool(ctx, name, args)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	return result, err
}

// Summary fetches a session's state projection through the retry machinery.
func (r *ResilientClient) Summary(ctx context.Context, sid string) (map[string]any, error) {
	var summary map[string]any
	err := r.withRetry(ctx, func(c *Client) error {
		s, err := c.Summary(ctx, sid)
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	return summary, err
}

// withRetry runs op up to maxRetries times. Between attempts it runs the
// reconnect-and-resume sequence and waits a delay that grows linearly
// with the attempt number.
func (r *ResilientClient) withRetry(ctx context.Context, op func(*Client) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		if r.client == nil {
			if err := r.reconnectAndResume(ctx); err != nil {
				lastErr = err
				if attempt < r.maxRetries {
					r.backoff(attempt)
				}
				continue
			}
		}

		err := op(r.client)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		logger.Info("remote call failed, reconnecting", map[string]any{
			"attempt": attempt,
			"max":     r.maxRetries,
			"error":   err.Error(),
		})

		if rerr := r.reconnectAndResume(ctx); rerr != nil {
			lastErr = rerr
		}
		r.backoff(attempt)
	}

	return lastErr
}

// reconnectAndResume tears down the current connection, establishes a new
// session, and asks the new backend to transplant the old session's state.
// Only the handshake can fail; teardown and resume errors are swallowed.
func (r *ResilientClient) reconnectAndResume(ctx context.Context) error {
	oldSID := r.sessionID

	if r.client != nil {
		_ = r.client.Close()
		r.client = nil
	}

	c := New(r.baseURL)
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("client: reconnect: %w", err)
	}
	r.client = c
	r.sessionID = c.SessionID()

	if oldSID == "" {
		return nil
	}

	// The resume call runs directly against the new connection; it must
	// not reenter the retry machinery.
	res, err := c.CallTool(ctx, "resume_session", map[string]any{
		"old_session_id": oldSID,
	})
	if err != nil {
		logger.Error("session resume failed", map[string]any{
			"old_session": oldSID,
			"error":       err.Error(),
		})
		return nil
	}

	if res["status"] == "resumed" {
		logger.Info("session resumed", map[string]any{
			"old_session": oldSID,
			"new_session": r.sessionID,
			"keys_copied": res["keys_copied"],
		})
	}
	return nil
}

// backoff sleeps attempt x baseDelay. The wait is deliberately not
// cancellable; a caller wanting a deadline wraps the whole call.
func (r *ResilientClient) backoff(attempt int) {
	time.Sleep(time.Duration(attempt) * r.baseDelay)
}
