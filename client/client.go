package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Endpoint is the absolute base URL of the remote service. Required.
	Endpoint string

	// Authenticator signs requests and verifies responses. Required.
	Authenticator *Authenticator

	// Transport is the connection pool. When nil, a clone of
	// http.DefaultTransport is used.
	Transport *http.Transport

	// Timeout bounds each call, including reading the body. Zero means no
	// timeout.
	Timeout time.Duration
}

// Client calls endpoints of one remote service.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client for cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Authenticator == nil {
		return nil, ErrNoAuthenticator
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, cfg.Endpoint)
	}

	return &Client{
		base: strings.TrimSuffix(cfg.Endpoint, "/"),
		http: &http.Client{
			Transport: NewTransport(cfg.Transport, cfg.Authenticator),
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// HTTPClient returns the underlying signing *http.Client for requests that
// do not fit the Endpoint model.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Endpoint returns the endpoint at the given path segments below the base
// URL.
func (c *Client) Endpoint(segments ...string) Endpoint {
	return Endpoint{client: c, url: c.base}.Join(segments...)
}

// Endpoint is an immutable reference to a remote endpoint.
type Endpoint struct {
	client *Client
	url    string
}

// Join returns the endpoint one or more path segments deeper. Segments are
// path-escaped.
func (e Endpoint) Join(segments ...string) Endpoint {
	var b strings.Builder
	b.WriteString(e.url)

	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}

	return Endpoint{client: e.client, url: b.String()}
}

// URL returns the endpoint URL with positional args appended as path
// segments.
func (e Endpoint) URL(args ...any) string {
	segments := make([]string, len(args))
	for i, arg := range args {
		segments[i] = fmt.Sprint(arg)
	}

	return e.Join(segments...).url
}

// Call POSTs form as an application/x-www-form-urlencoded body to the
// endpoint with args appended as path segments.
//
// A transport failure or an invalid response signature is returned as an
// error. Any other status is not an error: the returned Response reports
// OK() == false.
func (e Endpoint) Call(ctx context.Context, form url.Values, args ...any) (*Response, error) {
	var body io.Reader = http.NoBody

	encoded := form.Encode()
	if encoded != "" {
		body = strings.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL(args...), body)
	if err != nil {
		return nil, err
	}

	if encoded != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := e.client.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
