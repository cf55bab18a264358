package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// SessionOptions configures session creation.
type SessionOptions struct {
	// LockDelay is the lock-delay window after a session invalidation.
	LockDelay string `json:"LockDelay,omitempty"`
	// TTL invalidates the session when not renewed in time.
	TTL string `json:"TTL,omitempty"`
	// Behavior is what happens to held locks on invalidation ("release" or
	// "delete").
	Behavior string `json:"Behavior,omitempty"`
}

// ApplyDefaults fills empty options with agent-friendly defaults.
func (o *SessionOptions) ApplyDefaults() {
	if o.LockDelay == "" {
		o.LockDelay = "15s"
	}
	if o.TTL == "" {
		o.TTL = "10m"
	}
	if o.Behavior == "" {
		o.Behavior = "release"
	}
}

// SessionInfoReply carries a session's data and the agent's x-consul-*
// consistency headers.
type SessionInfoReply struct {
	Data    interface{}
	Headers map[string]string
}

// SessionCreate creates a session and returns its id.
func (c *Client) SessionCreate(ctx context.Context, opts SessionOptions) (string, error) {
	opts.ApplyDefaults()
	body, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode session options: %w", err)
	}

	resp, err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/v1/session/create",
		body:   body,
	})
	if err != nil {
		return "", err
	}

	var reply struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		return "", fmt.Errorf("decode session reply: %w", err)
	}
	return reply.ID, nil
}

// SessionRenew renews the session's TTL.
func (c *Client) SessionRenew(ctx context.Context, id string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/v1/session/renew/" + url.PathEscape(id),
	})
	return err
}

// SessionDestroy destroys the session.
func (c *Client) SessionDestroy(ctx context.Context, id string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/v1/session/destroy/" + url.PathEscape(id),
	})
	return err
}

// SessionInfo fetches the session's data. Returns a not-found error when the
// agent no longer knows the session (null or empty reply).
func (c *Client) SessionInfo(ctx context.Context, id string) (*SessionInfoReply, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/v1/session/info/" + url.PathEscape(id),
	})
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return nil, NewNotFoundError("session " + id)
	}

	var data interface{}
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("decode session info: %w", err)
	}

	return &SessionInfoReply{
		Data:    data,
		Headers: consulHeaders(resp.Headers),
	}, nil
}

// consulHeaders keeps only the agent's x-consul-* headers.
func consulHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range headers {
		if strings.HasPrefix(strings.ToLower(k), "x-consul-") {
			out[k] = v
		}
	}
	return out
}
