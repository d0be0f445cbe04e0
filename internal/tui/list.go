package tui

import (
	"strings"

	"github.com/ashureev/roomchat/internal/chatview"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
)

// roomList is the terminal message list in a scrollable viewport. Messages
// are wrapped to the viewport width, so heights and offsets count display
// rows, not messages.
type roomList struct {
	vp     viewport.Model
	lines  []chatview.Line
	styles styles
}

func newRoomList(width, height int, st styles) *roomList {
	vp := viewport.New(width, height)
	vp.KeyMap = viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		Up:           key.NewBinding(key.WithKeys("up")),
		Down:         key.NewBinding(key.WithKeys("down")),
	}
	return &roomList{vp: vp, styles: st}
}

func (l *roomList) Append(line chatview.Line) {
	l.lines = append(l.lines, line)
	l.refresh()
}

func (l *roomList) Prepend(line chatview.Line) {
	l.lines = append(l.lines, chatview.Line{})
	copy(l.lines[1:], l.lines)
	l.lines[0] = line
	l.refresh()
}

func (l *roomList) Len() int {
	return len(l.lines)
}

func (l *roomList) ScrollHeight() int {
	if len(l.lines) == 0 {
		return 0
	}
	return l.vp.TotalLineCount()
}

func (l *roomList) ScrollTop() int {
	return l.vp.YOffset
}

func (l *roomList) SetScrollTop(n int) {
	l.vp.SetYOffset(n)
}

func (l *roomList) ScrollToBottom() {
	l.vp.GotoBottom()
}

func (l *roomList) scrollKeys() []key.Binding {
	km := l.vp.KeyMap
	return []key.Binding{km.Up, km.Down, km.PageUp, km.PageDown, km.HalfPageUp, km.HalfPageDown}
}

func (l *roomList) upKeys() []key.Binding {
	km := l.vp.KeyMap
	return []key.Binding{km.Up, km.PageUp, km.HalfPageUp}
}

func (l *roomList) setSize(width, height int) {
	l.vp.Width = width
	l.vp.Height = height
	l.refresh()
}

// refresh re-renders the content. The viewport keeps its offset.
func (l *roomList) refresh() {
	rows := make([]string, len(l.lines))
	for i, line := range l.lines {
		rows[i] = l.styles.line(line, l.vp.Width)
	}
	l.vp.SetContent(strings.Join(rows, "\n"))
}

func (l *roomList) view() string {
	return l.vp.View()
}

// singleRow collapses line breaks and runs of spaces so a body wraps as one
// paragraph.
func singleRow(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\r", "")), " ")
}
