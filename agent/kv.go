package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// KVPut stores raw bytes under the key and returns the agent's decoded JSON
// reply (true on success).
func (c *Client) KVPut(ctx context.Context, key string, body []byte) (interface{}, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/v1/kv/" + key,
		body:   body,
	})
	if err != nil {
		return nil, err
	}
	return decodeJSON(resp.Body)
}

// KVGet fetches the key and returns the agent's decoded JSON reply.
func (c *Client) KVGet(ctx context.Context, key string) (interface{}, error) {
	resp, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/v1/kv/" + key,
	})
	if err != nil {
		return nil, err
	}
	return decodeJSON(resp.Body)
}

// KVDelete removes the key.
func (c *Client) KVDelete(ctx context.Context, key string) error {
	_, err := c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/v1/kv/" + key,
	})
	return err
}

func decodeJSON(body []byte) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode kv reply: %w", err)
	}
	return data, nil
}
