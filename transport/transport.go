package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultConnectTimeout = 5 * time.Second
)

// Param is an ordered query-string pair. A Param with an empty Value is
// encoded as a bare key ("passing" instead of "passing=").
type Param struct {
	Key   string
	Value string
}

// Request describes an outbound HTTP request.
type Request struct {
	// Method is the HTTP method (GET, PUT, POST, DELETE, HEAD).
	Method string
	// URL is the absolute request URL. Params are appended to its query string.
	URL string
	// Headers are request headers.
	Headers map[string]string
	// Body is the raw request body. Ignored for GET and HEAD.
	Body []byte
	// Params are query-string pairs appended to the URL. Pre-existing query
	// keys in URL are preserved, never replaced.
	Params []Param
}

// Response is the result of an HTTP round trip.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers.
	Headers map[string]string
	// Body is the response body, decoded to UTF-8 when the Content-Type
	// charset calls for it.
	Body []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Func is the transport seam: a single function that performs one HTTP round
// trip. Higher layers depend only on this shape, so test doubles are plain
// closures.
type Func func(ctx context.Context, req Request) (*Response, error)

// Config configures the HTTP transport.
type Config struct {
	// Timeout is the overall request timeout. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// ConnectTimeout bounds connection establishment. Defaults to 5s.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
}

// New creates a transport Func backed by net/http. Redirects are not
// followed; the response for the first request is returned as-is.
func New(cfg Config) (Func, error) {
	cfg.ApplyDefaults()

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("transport: http.DefaultTransport is not an *http.Transport")
	}
	tr := base.Clone()
	tr.DialContext = (&net.Dialer{
		Timeout: cfg.ConnectTimeout,
	}).DialContext

	client := &http.Client{
		Transport: tr,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return func(ctx context.Context, req Request) (*Response, error) {
		return roundTrip(ctx, client, req)
	}, nil
}

func roundTrip(ctx context.Context, client *http.Client, req Request) (*Response, error) {
	finalURL, err := appendParams(req.URL, req.Params)
	if err != nil {
		return nil, NewOtherError(err)
	}

	var body io.Reader
	if !bodylessMethod(req.Method) && req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), finalURL, body)
	if err != nil {
		return nil, NewOtherError(err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	decoded, err := decodeBody(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, NewOtherError(err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       decoded,
	}, nil
}

// appendParams appends params to the URL's existing query string with "&",
// preserving any pre-existing keys.
func appendParams(rawURL string, params []Param) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(u.RawQuery)
	for _, p := range params {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		if p.Value != "" {
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(p.Value))
		}
	}
	u.RawQuery = sb.String()
	return u.String(), nil
}

func bodylessMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return true
	}
	return false
}

// decodeBody converts the body to UTF-8 based on the Content-Type charset.
// Unknown charsets pass through untouched.
func decodeBody(body []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return body, nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}

	charset := strings.ToLower(params["charset"])
	switch {
	case charset == "utf-8" || charset == "utf8":
		return body, nil
	case charset == "iso-8859-1" || charset == "latin1":
		return charmap.ISO8859_1.NewDecoder().Bytes(body)
	case charset == "" && mediaType == "application/json":
		return body, nil
	default:
		return body, nil
	}
}

// classify converts a net/http error into a typed transport error.
func classify(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return NewConnectionError(err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewConnectionError(err)
	}

	return NewOtherError(err)
}

// flattenHeaders converts multi-value headers to single-value.
func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}
