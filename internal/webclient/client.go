// Package webclient talks to the HTTP side of the chat application: user
// search and the navigation requests that begin and end a chat.
package webclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/roomchat/internal/domain"
	"github.com/ashureev/roomchat/internal/metrics"
)

const (
	defaultCookieName = "session"
	defaultTimeout    = 15 * time.Second
	maxBodySize       = 1 << 20

	searchPath = "/chats/ajax-search"
	beginPath  = "/chats/begin/"
	endPath    = "/chats/end"
	roomPath   = "/chats/going"
)

var (
	// ErrUserNotFound is returned by BeginChat for an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotAuthenticated is returned when the server redirects away from
	// the requested page, which it does for requests without a valid session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// SessionCookie is the value of the web session cookie, if any.
	SessionCookie     string
	SessionCookieName string
	// Timeout bounds each request.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is an HTTP client for the chat application. Its cookie jar holds
// the web session and is shared with the realtime connection.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a client for the application at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", base.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if opts.SessionCookie != "" {
		name := opts.SessionCookieName
		if name == "" {
			name = defaultCookieName
		}
		jar.SetCookies(base, []*http.Cookie{{Name: name, Value: opts.SessionCookie, Path: "/"}})
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base: base,
		// No client timeout: the same client performs the websocket
		// handshake, whose connection outlives any request deadline.
		// Requests are bounded by context instead.
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
		logger:  logger.With("component", "webclient"),
	}, nil
}

// HTTPClient returns the underlying client, for the websocket handshake.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the application base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Search looks up users whose name or username matches text. An empty text
// sends no request and returns no users.
func (c *Client) Search(ctx context.Context, text string) ([]domain.SearchUser, error) {
	if text == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("search-string", text)

	resp, err := c.get(ctx, searchPath+"?"+q.Encode(), http.Header{
		"X-Requested-With": []string{"XMLHttpRequest"},
		"Accept":           []string{"application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer resp.Body.Close()
	metrics.SearchQueries.Inc()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil, fmt.Errorf("search users: %w", ErrNotAuthenticated)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search users: %w", statusError(resp))
	}

	var body struct {
		Data []domain.SearchUser `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	c.logger.Debug("Search completed", "results", len(body.Data))
	return body.Data, nil
}

// BeginChat asks the server to open a room with username. The server keeps
// the room in the web session and redirects to the room page.
func (c *Client) BeginChat(ctx context.Context, username string) error {
	if username == "" {
		return fmt.Errorf("begin chat: %w", ErrUserNotFound)
	}
	resp, err := c.get(ctx, domain.SearchUser{Username: username}.ChatPath(), nil)
	if err != nil {
		return fmt.Errorf("begin chat: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("begin chat with %s: %w", username, ErrUserNotFound)
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		if !redirectsTo(resp, roomPath) {
			return fmt.Errorf("begin chat: %w", ErrNotAuthenticated)
		}
	case resp.StatusCode >= 400:
		return fmt.Errorf("begin chat: %w", statusError(resp))
	}
	c.logger.Info("Chat begun", "companion", username)
	return nil
}

// EndChat navigates to the end page, which clears the room from the web
// session.
func (c *Client) EndChat(ctx context.Context) error {
	resp, err := c.get(ctx, endPath, nil)
	if err != nil {
		return fmt.Errorf("end chat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("end chat: %w", statusError(resp))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, header http.Header) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func redirectsTo(resp *http.Response, path string) bool {
	loc, err := resp.Location()
	if err != nil {
		return false
	}
	return strings.TrimRight(loc.Path, "/") == path
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(body, &errResp) == nil {
		msg = errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
