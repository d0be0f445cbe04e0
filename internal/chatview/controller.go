// Package chatview implements the chat room view: live messages appended at
// the bottom, history pages prepended at the top while keeping the scroll
// position, and the pagination cursor that ties the two together.
//
// A Controller is not safe for concurrent use. All calls must come from the
// goroutine that owns the message list.
package chatview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/roomchat/internal/domain"
	"github.com/ashureev/roomchat/internal/identity"
	"github.com/ashureev/roomchat/internal/metrics"
	"github.com/ashureev/roomchat/internal/protocol"
)

var (
	// ErrStaleResponse is returned for events that arrive after the room
	// was left. They are dropped.
	ErrStaleResponse = errors.New("response for a room that was left")
	// ErrEmptyMessage is returned by Submit for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrUnknownEvent is returned for inbound events the view does not handle.
	ErrUnknownEvent = errors.New("unknown event")
)

// Emitter sends events over the realtime connection.
type Emitter interface {
	Emit(ctx context.Context, event string, args ...any) error
	EmitWithAck(ctx context.Context, event string, args ...any) ([]json.RawMessage, error)
	Close() error
}

// Navigator performs the page navigation that follows leaving a room.
type Navigator interface {
	EndChat(ctx context.Context) error
}

// Options configures a Controller.
type Options struct {
	Emitter   Emitter
	Navigator Navigator
	Token     identity.Token
	Renderer  Renderer
	// Now returns the send time of outgoing messages. Defaults to time.Now.
	Now func() time.Time
	// OnStatus receives server status notices.
	OnStatus func(string)
	Logger   *slog.Logger
}

// Controller drives one room session.
type Controller struct {
	emitter   Emitter
	navigator Navigator
	token     identity.Token
	renderer  Renderer
	now       func() time.Time
	onStatus  func(string)
	logger    *slog.Logger

	session *RoomSession
}

// NewController creates a controller and starts a room session rendering
// into list.
func NewController(list MessageList, opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		emitter:   opts.Emitter,
		navigator: opts.Navigator,
		token:     opts.Token,
		renderer:  opts.Renderer,
		now:       now,
		onStatus:  opts.OnStatus,
		logger:    logger.With("component", "chatview"),
		session:   newRoomSession(list),
	}
}

// Session returns the current room session.
func (c *Controller) Session() *RoomSession {
	return c.session
}

// OnConnected announces the client in the room after every (re)connection
// and requests the first history page once per session.
func (c *Controller) OnConnected(ctx context.Context) error {
	s := c.session
	if !s.active {
		return ErrStaleResponse
	}
	if err := c.emitter.Emit(ctx, protocol.EventEnterRoom); err != nil {
		return fmt.Errorf("enter room: %w", err)
	}
	if s.historyStarted {
		return nil
	}
	return c.OnRoomEntered(ctx)
}

// OnDisconnected forgets an outstanding history request; its response
// cannot arrive on a new connection.
func (c *Controller) OnDisconnected() {
	c.session.historyPending = false
}

// OnRoomEntered requests the first page of history.
func (c *Controller) OnRoomEntered(ctx context.Context) error {
	s := c.session
	if !s.active {
		return ErrStaleResponse
	}
	s.historyStarted = true
	return c.requestHistory(ctx)
}

// OnScrolledToTop requests the next page of history when the list is
// scrolled to the very top and no request is outstanding.
func (c *Controller) OnScrolledToTop(ctx context.Context) error {
	s := c.session
	if !s.active {
		return ErrStaleResponse
	}
	if !s.historyStarted || s.historyPending || s.list.ScrollTop() != 0 {
		return nil
	}
	return c.requestHistory(ctx)
}

func (c *Controller) requestHistory(ctx context.Context) error {
	s := c.session
	if s.historyPending {
		return nil
	}
	req := protocol.GetMoreMessages{MessagesOffset: s.cursor.Offset()}
	if err := c.emitter.Emit(ctx, protocol.EventGetMoreMessages, req); err != nil {
		return fmt.Errorf("request history: %w", err)
	}
	s.historyPending = true
	metrics.HistoryRequests.Inc()
	c.logger.Debug("Requested history", "offset", req.MessagesOffset)
	return nil
}

// OnLiveMessageReceived appends a live message and advances the cursor by one.
// The first message shown in an empty list scrolls the list to the bottom.
func (c *Controller) OnLiveMessageReceived(msg protocol.PrintMessage) error {
	s := c.session
	if !s.active {
		c.drop("stale", protocol.EventPrintMessage)
		return ErrStaleResponse
	}
	origin := domain.OriginCounterpart
	if c.token.Matches(msg.UUID) {
		origin = domain.OriginLocal
	}
	first := s.list.Len() == 0
	s.list.Append(c.renderer.Render(domain.Message{
		Text:        msg.Message,
		TimestampMS: int64(msg.TimestampMS),
		Origin:      origin,
	}))
	if first {
		s.list.ScrollToBottom()
	}
	s.cursor.Advance(1)
	metrics.MessagesRendered.WithLabelValues("live").Inc()
	return nil
}

// OnHistoryBatchReceived prepends a history page, newest entry first, so the
// page reads in chronological order above the existing lines. The scroll
// position is kept on the line that was at the top, except for the first
// page, which scrolls to the bottom. The cursor advances by the page size
// once every entry has been inserted.
func (c *Controller) OnHistoryBatchReceived(batch protocol.LoadMoreMessages) error {
	s := c.session
	if !s.active {
		c.drop("stale", protocol.EventLoadMoreMessages)
		return ErrStaleResponse
	}
	s.historyPending = false
	if batch.Len() == 0 {
		c.logger.Debug("History exhausted", "offset", s.cursor.Offset())
		return nil
	}

	lines := make([]Line, 0, batch.Len())
	for _, m := range batch.Messages {
		origin := domain.OriginCounterpart
		if m.IsCurrentUser {
			origin = domain.OriginLocal
		}
		lines = append(lines, c.renderer.Render(domain.Message{
			Text:        m.MessageText,
			TimestampMS: int64(m.TimestampMS),
			Origin:      origin,
		}))
	}

	initial := s.cursor.Offset() == 0
	h0 := s.list.ScrollHeight()
	for _, l := range lines {
		s.list.Prepend(l)
	}
	h1 := s.list.ScrollHeight()
	if initial {
		s.list.ScrollToBottom()
	} else {
		s.list.SetScrollTop(h1 - h0)
	}

	s.cursor.Advance(len(lines))
	metrics.MessagesRendered.WithLabelValues("history").Add(float64(len(lines)))
	return nil
}

// OnStatus forwards a server notice.
func (c *Controller) OnStatus(st protocol.Status) error {
	if !c.session.active {
		c.drop("stale", protocol.EventStatus)
		return ErrStaleResponse
	}
	c.logger.Info("Room status", "message", st.Message)
	if c.onStatus != nil {
		c.onStatus(st.Message)
	}
	return nil
}

// HandleEvent decodes an inbound event and dispatches it. Malformed payloads
// are dropped with protocol.ErrMalformed; the view is left untouched.
func (c *Controller) HandleEvent(name string, args []json.RawMessage) error {
	if !c.session.active {
		c.drop("stale", name)
		return ErrStaleResponse
	}
	var err error
	switch name {
	case protocol.EventPrintMessage:
		var msg protocol.PrintMessage
		if msg, err = protocol.DecodePrintMessage(args); err == nil {
			return c.OnLiveMessageReceived(msg)
		}
	case protocol.EventLoadMoreMessages:
		var batch protocol.LoadMoreMessages
		if batch, err = protocol.DecodeLoadMoreMessages(args); err == nil {
			return c.OnHistoryBatchReceived(batch)
		}
		// The request was answered, even if unusably.
		c.session.historyPending = false
	case protocol.EventStatus:
		var st protocol.Status
		if st, err = protocol.DecodeStatus(args); err == nil {
			return c.OnStatus(st)
		}
	default:
		c.drop("unknown", name)
		return fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	c.logger.Warn("Dropping malformed event", "event", name, "error", err)
	metrics.DroppedEvents.WithLabelValues("malformed").Inc()
	return err
}

// Submit sends a chat message. Blank input is never sent. The message is
// shown once the server echoes it back.
func (c *Controller) Submit(ctx context.Context, text string) error {
	if !c.session.active {
		return ErrStaleResponse
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	msg := protocol.PutData{
		Message:     text,
		TimestampMS: c.now().UnixMilli(),
		UUID:        c.token.String(),
	}
	if err := c.emitter.Emit(ctx, protocol.EventPutData, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	metrics.MessagesSent.Inc()
	return nil
}

// Leave ends the room session: the session is invalidated first, then the
// server is told and acknowledges, the connection is closed and the client
// navigates to the end page. The connection is closed and the navigation
// happens even when the acknowledgement fails.
func (c *Controller) Leave(ctx context.Context) error {
	return c.BeginLeave()(ctx)
}

// BeginLeave invalidates the session and returns the rest of the leave
// sequence. The returned function uses only the emitter and navigator, so
// it may run on another goroutine while stale events are still dispatched.
func (c *Controller) BeginLeave() func(context.Context) error {
	s := c.session
	if !s.active {
		return func(context.Context) error { return nil }
	}
	s.invalidate()
	offset := s.cursor.Offset()

	emitter, navigator, logger := c.emitter, c.navigator, c.logger
	return func(ctx context.Context) error {
		var errs []error
		if _, err := emitter.EmitWithAck(ctx, protocol.EventLeaveRoom); err != nil {
			logger.Warn("Leave was not acknowledged", "error", err)
			errs = append(errs, fmt.Errorf("leave room: %w", err))
		}
		if err := emitter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
		if navigator != nil {
			if err := navigator.EndChat(ctx); err != nil {
				errs = append(errs, fmt.Errorf("end chat: %w", err))
			}
		}
		logger.Info("Left room", "offset", offset)
		return errors.Join(errs...)
	}
}

func (c *Controller) drop(reason, event string) {
	c.logger.Debug("Dropping event", "event", event, "reason", reason)
	metrics.DroppedEvents.WithLabelValues(reason).Inc()
}
