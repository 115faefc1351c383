// Package opf is the client for the storefront OPF backend: cart mutations,
// payment configuration and payment submission endpoints.
//
// Every path is resolved below the storefront's encoded context path
// (for example "/electronics/en/USD"). The backend is session based: a
// shopper's cart is identified by cookies, so callers derive a per-shopper
// client with ForShopper before issuing cart calls.
package opf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"opf-quickbuy/internal/model"
	"opf-quickbuy/internal/transport"
)

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 30 * time.Second

// Config holds storefront connection settings.
type Config struct {
	BaseURL            string // scheme and host, e.g. https://shop.example.com
	EncodedContextPath string // e.g. /electronics/en/USD
	Timeout            time.Duration
	Fingerprint        transport.Fingerprint

	// Transport overrides the fingerprinted transport. Tests point it at
	// httptest servers.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client talks to one storefront. The zero value is not usable; use New.
type Client struct {
	rc          *resty.Client
	roundTrip   http.RoundTripper
	baseURL     *url.URL
	contextPath string
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates a storefront client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("storefront base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid storefront base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rt := cfg.Transport
	if rt == nil {
		rt = transport.New(cfg.Fingerprint, timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		roundTrip:   rt,
		baseURL:     base,
		contextPath: "/" + strings.Trim(cfg.EncodedContextPath, "/"),
		timeout:     timeout,
		logger:      logger,
	}
	c.rc = c.newResty(nil)
	return c, nil
}

// ForShopper returns a client bound to the shopper's storefront session.
// Cookies set by the backend during the flow are kept for later calls made
// through the returned client.
func (c *Client) ForShopper(cookies []*http.Cookie) *Client {
	jar, _ := cookiejar.New(nil)
	if len(cookies) > 0 {
		scoped := make([]*http.Cookie, 0, len(cookies))
		for _, ck := range cookies {
			scoped = append(scoped, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
		}
		jar.SetCookies(c.baseURL, scoped)
	}

	shopper := *c
	shopper.rc = c.newResty(jar)
	return &shopper
}

func (c *Client) newResty(jar http.CookieJar) *resty.Client {
	hc := &http.Client{
		Transport: c.roundTrip,
		Timeout:   c.timeout,
		Jar:       jar,
	}
	return resty.NewWithClient(hc).
		SetBaseURL(c.baseURL.String()).
		SetHeader("Accept", "application/json")
}

// Path resolves p below the context path. Empty segments are collapsed so
// that "/a//b" and "/a/b" address the same endpoint.
func (c *Client) Path(p string) string {
	return collapseSlashes(c.contextPath + "/" + p)
}

// Origin is the storefront origin, used to build browser redirect URLs.
func (c *Client) Origin() string {
	return c.baseURL.Scheme + "://" + c.baseURL.Host
}

// ContextPath is the encoded context path without a trailing slash.
func (c *Client) ContextPath() string {
	return strings.TrimRight(c.contextPath, "/")
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string // relative to the context path
	Query  url.Values
	Header http.Header
	Body   any
	JSON   bool // send Content-Type: application/json even without a body
}

// Do executes req and decodes a successful body into result (when non-nil).
// Non-2xx responses yield *RequestError.
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	r := c.rc.R().SetContext(ctx)
	for k, vs := range req.Header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	if req.Body != nil || req.JSON {
		r.SetHeader("Content-Type", "application/json")
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}

	path := c.Path(req.Path)
	resp, err := r.Execute(req.Method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &RequestError{
			StatusText: transportStatusText(err),
			Message:    err.Error(),
			Err:        err,
		}
	}

	c.logger.DebugContext(ctx, "storefront call",
		slog.String("method", req.Method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode()),
	)

	if resp.IsError() {
		return newRequestError(resp.StatusCode(), resp.Body())
	}
	if result == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return &RequestError{
			HTTPStatus: resp.StatusCode(),
			StatusText: "parsererror",
			Message:    fmt.Sprintf("decoding %s response: %v", req.Path, err),
			Err:        err,
		}
	}
	return nil
}

// RequestError is a failed backend call.
// HTTPStatus is 0 when no response was received. For HTTP errors Message is
// the backend's own message and may be empty.
type RequestError struct {
	HTTPStatus int
	StatusText string
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.HTTPStatus == 0 {
		return fmt.Sprintf("storefront request failed: %s: %s", e.StatusText, e.Message)
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.HTTPStatus)
	}
	return fmt.Sprintf("storefront request failed: %d %s: %s", e.HTTPStatus, e.StatusText, msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func newRequestError(status int, body []byte) *RequestError {
	return &RequestError{
		HTTPStatus: status,
		StatusText: "error",
		Message:    ExtractErrorMessage(body),
		Err:        model.ErrUpstreamError,
	}
}

// ExtractErrorMessage returns the first error message of a backend error body.
func ExtractErrorMessage(body []byte) string {
	var list model.ErrorListResponse
	if len(body) == 0 || json.Unmarshal(body, &list) != nil {
		return ""
	}
	return list.FirstMessage()
}

// transportStatusText mirrors the status texts browsers report for requests
// that never produced a response.
func transportStatusText(err error) string {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "error"
}

func collapseSlashes(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
