package agent

import (
	"context"
	"net/http"
	"strings"

	"github.com/Xerpa/gorpo/logger"
	"github.com/Xerpa/gorpo/transport"
)

// DefaultEndpoint is the local agent address.
const DefaultEndpoint = "http://localhost:8500"

// Client is a typed wrapper over the agent's HTTP API. It is a pure
// translator between domain values and HTTP; it holds no mutable state and is
// safe to share across goroutines.
type Client struct {
	endpoint string
	token    string
	send     transport.Func
	log      *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sets the ACL token injected into every request's query string.
// A token supplied explicitly by the caller always wins.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the client logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates an agent client for the given endpoint.
func New(endpoint string, send transport.Func, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		send:     send,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.WithComponent("agent")
	}
	return c
}

// Endpoint returns the agent base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// call describes one request to the agent.
type call struct {
	method string
	path   string
	body   []byte
	params []transport.Param
	// accept decides whether a status code is a success. Defaults to
	// status == 200.
	accept func(status int) bool
}

// do sends one request and classifies the outcome. Transport failures come
// back as driver errors, unacceptable statuses as http errors.
func (c *Client) do(ctx context.Context, cl call) (*transport.Response, error) {
	url := strings.TrimRight(c.endpoint, "/") + "/" + strings.TrimLeft(cl.path, "/")

	params := cl.params
	if c.token != "" && !hasParam(params, "token") {
		params = append(params, transport.Param{Key: "token", Value: c.token})
	}

	headers := map[string]string{"Accept": "application/json"}
	if cl.body != nil {
		headers["Content-Type"] = "application/json"
	}

	resp, err := c.send(ctx, transport.Request{
		Method:  cl.method,
		URL:     url,
		Headers: headers,
		Body:    cl.body,
		Params:  params,
	})
	if err != nil {
		return nil, NewDriverError(err)
	}

	accept := cl.accept
	if accept == nil {
		accept = func(status int) bool { return status == http.StatusOK }
	}
	if !accept(resp.StatusCode) {
		return nil, NewHTTPError(resp.StatusCode, resp.Headers, resp.Body)
	}
	return resp, nil
}

func hasParam(params []transport.Param, key string) bool {
	for _, p := range params {
		if p.Key == key {
			return true
		}
	}
	return false
}
