package boreal

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Headers of the BorealDB HTTP protocol.
const (
	headerUser        = "X-Boreal-User"
	headerPassword    = "X-Boreal-Password"
	headerCompression = "X-Boreal-Compression"

	// compressionBlock marks a body wrapped in compression block framing.
	compressionBlock = "block"
)

// HTTPClient is the interface for the HTTP transport. Request and
// response bodies are streamed, never buffered whole.
type HTTPClient interface {
	// Post sends a POST request to the BorealDB server. body may be nil.
	Post(ctx context.Context, u *url.URL, headers http.Header, body io.Reader) (*http.Response, error)
}

type httpClient struct {
	client *http.Client
}

// NewHTTPClient creates the default HTTP transport.
func NewHTTPClient() HTTPClient {
	return &httpClient{
		client: http.DefaultClient,
	}
}

// Ensure httpClient implements HTTPClient.
var _ HTTPClient = (*httpClient)(nil)

func (c *httpClient) Post(ctx context.Context, u *url.URL, headers http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		req.Header[k] = vs
	}
	return c.client.Do(req)
}

// Client talks to one BorealDB server. It is cheap and safe to share; the
// single-use stream objects it hands out (Cursor, Insert, Inserter) are
// not.
type Client struct {
	config *Config
	http   HTTPClient
}

// NewClient creates a new client for the configured endpoint.
func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		http:   NewHTTPClient(),
	}
}

// WithHTTPClient replaces the HTTP transport, e.g. for a client with
// custom TLS or timeout settings.
func (c *Client) WithHTTPClient(http HTTPClient) *Client {
	c.http = http
	return c
}

// requestURL builds the request URL for one exchange: the endpoint, then
// client-wide settings, then per-request parameters on top.
func (c *Client) requestURL(params map[string]string) (*url.URL, error) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if c.config.Database != "" {
		q.Set("database", c.config.Database)
	}
	for k, v := range c.config.Settings {
		q.Set(k, v)
	}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

// requestHeaders decorates one outgoing request with credentials and the
// client-wide extra headers.
func (c *Client) requestHeaders() http.Header {
	h := make(http.Header)
	if c.config.User != "" {
		h.Set(headerUser, c.config.User)
	}
	if c.config.Password != "" {
		h.Set(headerPassword, c.config.Password)
	}
	for k, v := range c.config.Headers {
		h.Set(k, v)
	}
	return h
}
