// Package transport implements the realtime connection of the chat client: a
// minimal Socket.IO v5 client (Engine.IO v4, websocket transport only) bound
// to a single namespace.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ashureev/roomchat/internal/metrics"
	"github.com/coder/websocket"
)

const (
	defaultPath         = "/socket.io/"
	defaultNamespace    = "/"
	defaultAckTimeout   = 5 * time.Second
	defaultReconnectMin = 1 * time.Second
	defaultReconnectMax = 30 * time.Second
	defaultPingWindow   = 45 * time.Second
	dialTimeout         = 10 * time.Second
	closeTimeout        = 2 * time.Second
	readLimit           = 1 << 20
	notificationBuffer  = 64
)

// Options configures a Client.
type Options struct {
	// URL is the base URL of the chat server (http, https, ws or wss).
	URL string
	// Path is the Socket.IO endpoint path. Defaults to /socket.io/.
	Path string
	// Namespace is the Socket.IO namespace, e.g. /chats/going.
	Namespace string
	// HTTPClient is used for the websocket handshake. Its cookie jar carries
	// the web session. It must not set a Timeout.
	HTTPClient *http.Client
	// Header is added to the handshake request.
	Header http.Header

	AckTimeout   time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	Logger *slog.Logger
}

// NotificationKind tells what a Notification carries.
type NotificationKind int

const (
	// KindEvent carries an inbound event.
	KindEvent NotificationKind = iota
	// KindConnected is sent after every successful (re)connection.
	KindConnected
	// KindDisconnected is sent when a connection attempt fails or an
	// established connection is lost. Err is a *Error.
	KindDisconnected
)

// Event is an inbound Socket.IO event.
type Event struct {
	Name string
	Args []json.RawMessage
}

// Notification is delivered by the client on its notification channel.
type Notification struct {
	Kind    NotificationKind
	Event   Event
	Err     error
	Attempt int
}

type ackResult struct {
	args []json.RawMessage
	err  error
}

// Client is a reconnecting Socket.IO client. Emit methods are safe for
// concurrent use; notifications are delivered in arrival order on a single
// channel.
type Client struct {
	opts   Options
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int
	acks   map[int]chan ackResult

	notes     chan Notification
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a client. It does not connect until Run is called.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("transport URL cannot be empty")
	}
	endpoint, err := endpointURL(opts.URL, opts.Path)
	if err != nil {
		return nil, err
	}
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = defaultReconnectMin
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = max(defaultReconnectMax, opts.ReconnectMin)
	}
	if opts.HTTPClient != nil && opts.HTTPClient.Timeout > 0 {
		return nil, fmt.Errorf("transport HTTP client must not set a timeout")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		opts:   opts,
		url:    endpoint,
		logger: logger.With("component", "transport", "namespace", opts.Namespace),
		acks:   make(map[int]chan ackResult),
		notes:  make(chan Notification, notificationBuffer),
		closed: make(chan struct{}),
	}, nil
}

func endpointURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse transport URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported transport URL scheme %q", u.Scheme)
	}
	if path == "" {
		path = defaultPath
	}
	u.Path = path
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Notifications returns the channel of inbound events and connection state
// changes. It is closed when Run returns.
func (c *Client) Notifications() <-chan Notification {
	return c.notes
}

// Connected reports whether the namespace is currently connected.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects and keeps the connection alive, reconnecting with
// exponential backoff, until ctx is cancelled or Close is called.
// It returns nil after Close.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.notes)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	attempt := 0
	for {
		conn, window, pending, err := c.connect(ctx)
		if err != nil {
			if done, exitErr := c.exit(ctx); done {
				return exitErr
			}
			metrics.TransportConnects.WithLabelValues("error").Inc()
			attempt++
			c.logger.Warn("Transport connect failed", "error", err, "attempt", attempt)
			c.notify(ctx, Notification{Kind: KindDisconnected, Err: opError("connect", err), Attempt: attempt})
			if err := c.wait(ctx, c.backoff(attempt)); err != nil {
				_, exitErr := c.exit(ctx)
				return exitErr
			}
			continue
		}

		metrics.TransportConnects.WithLabelValues("ok").Inc()
		attempt = 0
		c.setConn(conn)
		c.logger.Info("Transport connected")
		c.notify(ctx, Notification{Kind: KindConnected})
		for _, ev := range pending {
			c.notify(ctx, Notification{Kind: KindEvent, Event: ev})
		}

		err = c.readLoop(ctx, conn, window)
		c.dropConn(conn, err)
		if done, exitErr := c.exit(ctx); done {
			return exitErr
		}

		attempt++
		c.logger.Warn("Transport connection lost", "error", err)
		c.notify(ctx, Notification{Kind: KindDisconnected, Err: opError("read", err), Attempt: attempt})
		if err := c.wait(ctx, c.backoff(attempt)); err != nil {
			_, exitErr := c.exit(ctx)
			return exitErr
		}
	}
}

// exit reports whether Run must stop, and with which error.
func (c *Client) exit(ctx context.Context) (bool, error) {
	select {
	case <-c.closed:
		return true, nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return true, err
	}
	return false, nil
}

func (c *Client) notify(ctx context.Context, n Notification) {
	select {
	case c.notes <- n:
	case <-ctx.Done():
	}
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoff doubles from ReconnectMin up to ReconnectMax.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.ReconnectMin
	for i := 1; i < attempt && d < c.opts.ReconnectMax; i++ {
		d *= 2
	}
	return min(d, c.opts.ReconnectMax)
}

// connect dials the endpoint and joins the namespace. Events received for the
// namespace before the connect acknowledgement are returned as pending.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, time.Duration, []Event, error) {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dctx, c.url, &websocket.DialOptions{
		HTTPClient: c.opts.HTTPClient,
		HTTPHeader: c.opts.Header,
	})
	if err != nil {
		return nil, 0, nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	window, pending, err := c.handshake(dctx, conn)
	if err != nil {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "handshake failed"); closeErr != nil {
			c.logger.Debug("Failed to close websocket after handshake", "error", closeErr)
		}
		return nil, 0, nil, err
	}
	return conn, window, pending, nil
}

func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) (time.Duration, []Event, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("read open packet: %w", err)
	}
	if len(data) == 0 || data[0] != eioOpen {
		return 0, nil, fmt.Errorf("unexpected first frame %q", truncate(data))
	}
	var open openPayload
	if err := json.Unmarshal(data[1:], &open); err != nil {
		return 0, nil, fmt.Errorf("decode open packet: %w", err)
	}
	window := defaultPingWindow
	if open.PingInterval > 0 {
		window = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	}

	join := Packet{Type: PacketConnect, Namespace: c.opts.Namespace}
	if err := conn.Write(ctx, websocket.MessageText, join.Encode()); err != nil {
		return 0, nil, fmt.Errorf("write connect packet: %w", err)
	}

	var pending []Event
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return 0, nil, fmt.Errorf("read connect ack: %w", err)
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case eioPing:
			if err := conn.Write(ctx, websocket.MessageText, []byte{eioPong}); err != nil {
				return 0, nil, fmt.Errorf("write pong: %w", err)
			}
		case eioClose:
			return 0, nil, ErrServerDisconnect
		case eioMessage:
			p, err := decodePacket(string(data[1:]))
			if err != nil || p.Namespace != c.opts.Namespace {
				continue
			}
			switch p.Type {
			case PacketConnect:
				return window, pending, nil
			case PacketConnectError:
				return 0, nil, fmt.Errorf("%w: %s", ErrConnectRefused, p.Data)
			case PacketEvent:
				if name, args, err := splitEvent(p.Data); err == nil {
					pending = append(pending, Event{Name: name, Args: args})
				}
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, window time.Duration) error {
	for {
		rctx, cancel := context.WithTimeout(ctx, window)
		_, data, err := conn.Read(rctx)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				return fmt.Errorf("closed by server: %w", err)
			}
			return err
		}
		if err := c.handleFrame(ctx, conn, data); err != nil {
			return err
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case eioPing:
		return conn.Write(ctx, websocket.MessageText, []byte{eioPong})
	case eioPong, eioNoop:
		return nil
	case eioClose:
		return ErrServerDisconnect
	case eioMessage:
	default:
		c.logger.Debug("Ignoring engine packet", "frame", truncate(data))
		return nil
	}

	p, err := decodePacket(string(data[1:]))
	if err != nil {
		c.logger.Warn("Dropping undecodable packet", "error", err, "frame", truncate(data))
		return nil
	}
	if p.Namespace != c.opts.Namespace {
		c.logger.Debug("Ignoring packet for other namespace", "packet_namespace", p.Namespace)
		return nil
	}

	switch p.Type {
	case PacketEvent:
		name, args, err := splitEvent(p.Data)
		if err != nil {
			c.logger.Warn("Dropping malformed event", "error", err)
			return nil
		}
		c.notify(ctx, Notification{Kind: KindEvent, Event: Event{Name: name, Args: args}})
	case PacketAck:
		args, err := splitAck(p.Data)
		c.resolveAck(p.ID, ackResult{args: args, err: err})
	case PacketDisconnect:
		return ErrServerDisconnect
	case PacketConnectError:
		return fmt.Errorf("%w: %s", ErrConnectRefused, p.Data)
	}
	return nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// dropConn forgets conn and fails every pending acknowledgement.
func (c *Client) dropConn(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	acks := c.acks
	c.acks = make(map[int]chan ackResult)
	c.mu.Unlock()

	if cause == nil {
		cause = ErrNotConnected
	}
	for _, ch := range acks {
		ch <- ackResult{err: cause}
	}
	if err := conn.Close(websocket.StatusGoingAway, "connection lost"); err != nil {
		c.logger.Debug("Failed to close websocket", "error", err)
	}
}

func (c *Client) resolveAck(id int, res ackResult) {
	c.mu.Lock()
	ch, ok := c.acks[id]
	delete(c.acks, id)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("Ignoring unknown acknowledgement", "ack_id", id)
		return
	}
	ch <- res
}

func (c *Client) forgetAck(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.acks, id)
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Emit sends an event without waiting for an acknowledgement.
func (c *Client) Emit(ctx context.Context, event string, args ...any) error {
	p, err := eventPacket(c.opts.Namespace, event, args)
	if err != nil {
		return opError("emit", err)
	}
	if c.isClosed() {
		return &Error{Op: "emit " + event, Err: ErrClosed}
	}
	conn := c.current()
	if conn == nil {
		return &Error{Op: "emit " + event, Err: ErrNotConnected}
	}
	if err := conn.Write(ctx, websocket.MessageText, p.Encode()); err != nil {
		return &Error{Op: "emit " + event, Err: err}
	}
	return nil
}

// EmitWithAck sends an event and waits for the server's acknowledgement, up
// to the configured ack timeout.
func (c *Client) EmitWithAck(ctx context.Context, event string, args ...any) ([]json.RawMessage, error) {
	p, err := eventPacket(c.opts.Namespace, event, args)
	if err != nil {
		return nil, opError("emit", err)
	}

	if c.isClosed() {
		return nil, &Error{Op: "emit " + event, Err: ErrClosed}
	}
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, &Error{Op: "emit " + event, Err: ErrNotConnected}
	}
	id := c.nextID
	c.nextID++
	ch := make(chan ackResult, 1)
	c.acks[id] = ch
	c.mu.Unlock()

	p.ID, p.HasID = id, true
	start := time.Now()
	if err := conn.Write(ctx, websocket.MessageText, p.Encode()); err != nil {
		c.forgetAck(id)
		return nil, &Error{Op: "emit " + event, Err: err}
	}

	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, opError("ack "+event, res.err)
		}
		metrics.AckLatency.Observe(time.Since(start).Seconds())
		return res.args, nil
	case <-timer.C:
		c.forgetAck(id)
		return nil, &Error{Op: "ack " + event, Err: ErrAckTimeout}
	case <-ctx.Done():
		c.forgetAck(id)
		return nil, ctx.Err()
	}
}

// Close leaves the namespace, closes the websocket and stops Run.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		conn := c.current()
		if conn == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		leave := Packet{Type: PacketDisconnect, Namespace: c.opts.Namespace}
		if err := conn.Write(ctx, websocket.MessageText, leave.Encode()); err != nil {
			c.logger.Debug("Failed to send namespace disconnect", "error", err)
		}
		if err := conn.Close(websocket.StatusNormalClosure, "client left"); err != nil &&
			!errors.Is(err, context.Canceled) {
			c.logger.Debug("Failed to close websocket", "error", err)
		}
	})
	return nil
}

func truncate(b []byte) string {
	const limit = 64
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
