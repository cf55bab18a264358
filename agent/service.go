package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ServiceRegister registers the service with the local agent.
func (c *Client) ServiceRegister(ctx context.Context, svc Service) error {
	body, err := json.Marshal(svc)
	if err != nil {
		return fmt.Errorf("encode service: %w", err)
	}

	_, err = c.do(ctx, call{
		method: http.MethodPut,
		path:   "/v1/agent/service/register",
		body:   body,
	})
	return err
}

// ServiceDeregister removes the service with the given id from the local
// agent.
func (c *Client) ServiceDeregister(ctx context.Context, id string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/v1/agent/service/deregister/" + url.PathEscape(id),
	})
	return err
}

// CheckUpdate sets the status of the service's TTL check. Returns a
// not-found error when the service has no check id (neither ID nor Name).
func (c *Client) CheckUpdate(ctx context.Context, svc Service, status Status) error {
	checkID, ok := svc.CheckID()
	if !ok {
		return NewNotFoundError("service has no check id")
	}

	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	_, err = c.do(ctx, call{
		method: http.MethodPut,
		path:   "/v1/agent/check/update/" + url.PathEscape(checkID),
		body:   body,
	})
	return err
}
