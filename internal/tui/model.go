// Package tui is the terminal user interface of a chat room. It owns the
// message list and drives the chat view controller from the bubbletea update
// loop, which also receives the realtime transport notifications.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/roomchat/internal/chatview"
	"github.com/ashureev/roomchat/internal/protocol"
	"github.com/ashureev/roomchat/internal/transport"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	headerHeight = 1
	footerHeight = 2 // status line + input
	statusLines  = 100
)

// Options configures the room UI.
type Options struct {
	Companion     string
	Notifications <-chan transport.Notification
	// View configures the controller. OnStatus is set by the UI.
	View   chatview.Options
	Logger *slog.Logger
}

// notificationMsg carries a transport notification into the update loop.
type notificationMsg transport.Notification

// transportDoneMsg is sent when the notification channel is closed.
type transportDoneMsg struct{}

// leftMsg is sent once the room has been left.
type leftMsg struct{ err error }

// Model is the bubbletea model of a chat room.
type Model struct {
	ctx       context.Context
	companion string
	notes     <-chan transport.Notification
	logger    *slog.Logger

	ctrl   *chatview.Controller
	list   *roomList
	input  textinput.Model
	status *StatusLog
	styles styles

	connected  bool
	leaving    bool
	showStatus bool
	err       error
	width     int
}

// New creates the room UI and its controller.
func New(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := defaultStyles()
	status := NewStatusLog(statusLines)
	list := newRoomList(80, 20, st)

	view := opts.View
	view.OnStatus = status.Add
	if view.Logger == nil {
		view.Logger = logger
	}

	ti := textinput.New()
	ti.Placeholder = "Type a message... (Enter to send, F2 for status, Esc to leave)"
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	return Model{
		ctx:       ctx,
		companion: opts.Companion,
		notes:     opts.Notifications,
		logger:    logger.With("component", "tui"),
		ctrl:      chatview.NewController(list, view),
		list:      list,
		input:     ti,
		status:    status,
		styles:    st,
	}
}

// Controller returns the chat view controller driven by the model.
func (m Model) Controller() *chatview.Controller {
	return m.ctrl
}

// Statuses returns the status log.
func (m Model) Statuses() *StatusLog {
	return m.status
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}

func waitForNotification(ch <-chan transport.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return transportDoneMsg{}
		}
		return notificationMsg(n)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForNotification(m.notes))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		m.list.setSize(msg.Width, max(msg.Height-headerHeight-footerHeight, 1))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.leaving {
			return m, nil
		}
		var cmd tea.Cmd
		m.list.vp, cmd = m.list.vp.Update(msg)
		if msg.Button == tea.MouseButtonWheelUp {
			m.scrolledUp()
		}
		return m, cmd

	case notificationMsg:
		m.handleNotification(transport.Notification(msg))
		return m, waitForNotification(m.notes)

	case transportDoneMsg:
		if !m.leaving {
			m.logger.Info("Transport stopped")
			return m, tea.Quit
		}
		return m, nil

	case leftMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.leaving {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m.leave()
	case tea.KeyEnter:
		m.submit()
		return m, nil
	case tea.KeyF2:
		m.showStatus = !m.showStatus
		return m, nil
	}

	if key.Matches(msg, m.list.scrollKeys()...) {
		var cmd tea.Cmd
		m.list.vp, cmd = m.list.vp.Update(msg)
		if key.Matches(msg, m.list.upKeys()...) {
			m.scrolledUp()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// scrolledUp asks for older messages once the list has reached the top.
func (m Model) scrolledUp() {
	if m.list.ScrollTop() != 0 {
		return
	}
	if err := m.ctrl.OnScrolledToTop(m.ctx); err != nil {
		m.logger.Warn("History request failed", "error", err)
		m.status.Add("Could not load older messages")
	}
}

func (m *Model) submit() {
	err := m.ctrl.Submit(m.ctx, m.input.Value())
	switch {
	case err == nil:
		m.input.Reset()
	case errors.Is(err, chatview.ErrEmptyMessage):
		m.input.Reset()
	default:
		m.logger.Warn("Send failed", "error", err)
		m.status.Add("Message not sent: " + errorText(err))
	}
}

// leave invalidates the session at once and waits for the server's
// acknowledgement in a command, so notifications keep being drained and the
// transport can deliver the ack.
func (m Model) leave() (tea.Model, tea.Cmd) {
	m.leaving = true
	m.input.Blur()
	if !m.ctrl.Session().Active() {
		return m, tea.Quit
	}
	m.status.Add("Leaving the room...")
	finish := m.ctrl.BeginLeave()
	ctx := m.ctx
	return m, func() tea.Msg { return leftMsg{err: finish(ctx)} }
}

func (m *Model) handleNotification(n transport.Notification) {
	switch n.Kind {
	case transport.KindConnected:
		m.connected = true
		if err := m.ctrl.OnConnected(m.ctx); err != nil && !errors.Is(err, chatview.ErrStaleResponse) {
			m.logger.Warn("Entering room failed", "error", err)
			m.status.Add("Could not enter the room: " + errorText(err))
		}
	case transport.KindDisconnected:
		wasConnected := m.connected
		m.connected = false
		m.ctrl.OnDisconnected()
		if wasConnected || n.Attempt == 1 {
			m.status.Add("Connection lost, reconnecting...")
		}
	case transport.KindEvent:
		err := m.ctrl.HandleEvent(n.Event.Name, n.Event.Args)
		if err != nil && !errors.Is(err, chatview.ErrStaleResponse) &&
			!errors.Is(err, protocol.ErrMalformed) && !errors.Is(err, chatview.ErrUnknownEvent) {
			m.logger.Warn("Event handling failed", "event", n.Event.Name, "error", err)
		}
	}
}

func (m Model) View() string {
	var b strings.Builder

	indicator := m.styles.offline.Render("● offline")
	if m.connected {
		indicator = m.styles.online.Render("● online")
	}
	title := "Chat"
	if m.companion != "" {
		title = "Chat with " + m.companion
	}
	b.WriteString(m.styles.header.Render(title) + " " + indicator)
	b.WriteString("\n")
	if m.showStatus {
		b.WriteString(m.statusPanel())
	} else {
		b.WriteString(m.list.view())
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(m.styles.errorMessage.Render(errorText(m.err)))
	} else {
		b.WriteString(m.styles.status.Render(m.status.Last()))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

// statusPanel shows the newest status lines in place of the message list.
func (m Model) statusPanel() string {
	height := max(m.list.vp.Height, 1)
	lines := m.status.Lines()
	if keep := height - 1; len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	rows := make([]string, 0, height)
	rows = append(rows, m.styles.header.Render(fmt.Sprintf("Status (%d)", m.status.Len())))
	for _, l := range lines {
		rows = append(rows, m.styles.status.Render(l))
	}
	for len(rows) < height {
		rows = append(rows, "")
	}
	return strings.Join(rows, "\n")
}

func errorText(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return fmt.Sprintf("%.120s", s)
}
