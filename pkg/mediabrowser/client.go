package mediabrowser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout applies when no HTTP client is supplied.
const DefaultTimeout = 20 * time.Second

const (
	headerAuthorization     = "Authorization"
	headerEmbyAuthorization = "X-Emby-Authorization"
	headerEmbyToken         = "X-Emby-Token"
	headerContentType       = "Content-Type"
	headerAccept            = "Accept"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"

	paramAPIKey = "api_key"

	maxErrorBodyReadSize = 1024
)

// HeaderStyle selects how client identity and token are sent.
type HeaderStyle int

const (
	// HeaderStyleDefault defers to the client's configured style.
	HeaderStyleDefault HeaderStyle = iota
	// HeaderStyleMediaBrowser sends "Authorization: MediaBrowser ..., Token=...".
	HeaderStyleMediaBrowser
	// HeaderStyleEmby sends X-Emby-Authorization and X-Emby-Token.
	HeaderStyleEmby
)

// Identity describes this application to the media server.
type Identity struct {
	Client   string
	Device   string
	DeviceID string
	Version  string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client is a MediaBrowser API client. It is safe for concurrent use.
type Client struct {
	// BaseURL is the server root without a trailing slash.
	BaseURL string

	// PathPrefix is prepended to every resource path, "/emby" for Emby.
	PathPrefix string

	// HTTPClient performs requests. Callers typically pass the resilient
	// client's StandardClient.
	HTTPClient *http.Client

	Identity Identity
	Style    HeaderStyle

	mu    sync.RWMutex
	token string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Style:      HeaderStyleMediaBrowser,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// WithPathPrefix sets the resource path prefix.
func WithPathPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.PathPrefix = "/" + strings.Trim(prefix, "/")
		if c.PathPrefix == "/" {
			c.PathPrefix = ""
		}
	}
}

// WithIdentity sets the client identity sent with every request.
func WithIdentity(id Identity) ClientOption {
	return func(c *Client) {
		c.Identity = id
	}
}

// WithHeaderStyle sets the default authorization header style.
func WithHeaderStyle(style HeaderStyle) ClientOption {
	return func(c *Client) {
		c.Style = style
	}
}

// WithToken sets an initial access token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// SetToken replaces the access token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Request describes one API call.
type Request struct {
	Method string
	// Path is the resource path, e.g. "/Users/AuthenticateByName".
	Path  string
	Query url.Values

	// Body is JSON-encoded when set.
	Body any
	// Form is sent form-encoded when set and Body is nil.
	Form url.Values

	// NoPrefix skips PathPrefix for this request.
	NoPrefix bool
	// Style overrides the client's header style for this request.
	Style HeaderStyle
	// Anonymous omits the access token.
	Anonymous bool
}

// Do executes req and decodes a JSON response into out when out is non-nil.
// It returns the HTTP status (0 when no response was received). Non-2xx
// responses yield a *StatusError.
func (c *Client) Do(ctx context.Context, req Request, out any) (int, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Body != nil:
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return 0, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = contentTypeJSON
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = contentTypeForm
	}

	u := c.resourceURL(req.Path, req.NoPrefix)
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set(headerAccept, contentTypeJSON)
	if contentType != "" {
		httpReq.Header.Set(headerContentType, contentType)
	}
	token := ""
	if !req.Anonymous {
		token = c.Token()
	}
	c.applyAuthHeaders(httpReq.Header, req.Style, token)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyReadSize))
		return resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       req.Path,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, nil
}

// URL builds an absolute URL for path carrying the token as api_key. The
// result embeds a credential and is for server-side fetches only.
func (c *Client) URL(path string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if token := c.Token(); token != "" {
		q.Set(paramAPIKey, token)
	}
	u := c.resourceURL(path, false)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) resourceURL(path string, noPrefix bool) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if noPrefix {
		return c.BaseURL + path
	}
	return c.BaseURL + c.PathPrefix + path
}

// AuthorizationValue renders the MediaBrowser authorization parameters.
func (c *Client) AuthorizationValue(token string) string {
	parts := []string{
		fmt.Sprintf("Client=%q", c.Identity.Client),
		fmt.Sprintf("Device=%q", c.Identity.Device),
		fmt.Sprintf("DeviceId=%q", c.Identity.DeviceID),
		fmt.Sprintf("Version=%q", c.Identity.Version),
	}
	if token != "" {
		parts = append(parts, fmt.Sprintf("Token=%q", token))
	}
	return "MediaBrowser " + strings.Join(parts, ", ")
}

func (c *Client) applyAuthHeaders(h http.Header, style HeaderStyle, token string) {
	if style == HeaderStyleDefault {
		style = c.Style
	}
	switch style {
	case HeaderStyleEmby:
		h.Set(headerEmbyAuthorization, c.AuthorizationValue(""))
		if token != "" {
			h.Set(headerEmbyToken, token)
		}
	default:
		h.Set(headerAuthorization, c.AuthorizationValue(token))
	}
}
