// Package rest is a small HTTP client for a JSON API rooted at a base URL.
// It joins relative routes, injects a bearer token, encodes query strings and
// bodies, and turns non-2xx statuses into errors.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	qs "github.com/google/go-querystring/query"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every request unless WithTimeout says otherwise.
const DefaultTimeout = 10 * time.Second

// BearerTokenType is the only token type the client knows how to send.
const BearerTokenType = "Bearer"

// Token is an access token as handed out by the server.
type Token struct {
	AccessToken string
	TokenType   string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client talks to one server. It is not safe for concurrent use: the token is
// plain state owned by whoever owns the client.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	token   *Token
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request deadline. Zero or less disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for baseURL. The URL path must end in "/" so that
// routes join unambiguously; anything else is a programming error and panics.
func New(baseURL string, opts ...Option) *Client {
	u, err := url.Parse(baseURL)
	if err != nil {
		panic(fmt.Sprintf("rest: invalid base url %q: %v", baseURL, err))
	}
	if u.Scheme == "" || u.Host == "" {
		panic(fmt.Sprintf("rest: base url %q must be absolute", baseURL))
	}
	if u.Path == "" {
		u.Path = "/"
	}
	if !strings.HasSuffix(u.Path, "/") {
		panic(fmt.Sprintf("rest: base url path %q must end with '/'", u.Path))
	}
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns a copy of the base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

func (c *Client) SetToken(t Token) { c.token = &t }

func (c *Client) ClearToken() { c.token = nil }

// Token returns the current token, if any.
func (c *Client) Token() (Token, bool) {
	if c.token == nil {
		return Token{}, false
	}
	return *c.token, true
}

// Join resolves route against the base URL. route must be relative.
func (c *Client) Join(route string) *url.URL {
	if strings.HasPrefix(route, "/") {
		panic(fmt.Sprintf("rest: route %q must be relative", route))
	}
	return c.base.ResolveReference(&url.URL{Path: route})
}

// Do sends a request and reads the whole response. query is nil or a struct
// with `url` tags. A non-2xx status is returned as *StatusError.
func (c *Client) Do(ctx context.Context, method, route string, query any, body Body) (*Response, error) {
	return c.do(ctx, method, route, query, body, "")
}

// DoJSON is Do with an Accept: application/json header; the body is decoded
// into out unless out is nil.
func (c *Client) DoJSON(ctx context.Context, method, route string, query any, body Body, out any) error {
	res, err := c.do(ctx, method, route, query, body, "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return &DecodeError{URL: c.Join(route).String(), Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, route string, query any, body Body, accept string) (*Response, error) {
	u := c.Join(route)
	if query != nil {
		vals, err := qs.Values(query)
		if err != nil {
			return nil, &EncodeError{Err: err}
		}
		u.RawQuery = vals.Encode()
	}

	payload, contentType, err := body.encode()
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.token != nil {
		req.Header.Set("Authorization", BearerTokenType+" "+c.token.AccessToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("url", u.String()),
			zap.Stringer("body", body),
			zap.Error(err))
		return nil, &TransportError{Method: method, URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: u.String(), Err: err}
	}

	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("url", u.String()),
		zap.Stringer("body", body),
		zap.Bool("auth", c.token != nil),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// IsStatus reports whether err is a *StatusError with one of the given codes.
func IsStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range codes {
		if se.StatusCode == code {
			return true
		}
	}
	return false
}
