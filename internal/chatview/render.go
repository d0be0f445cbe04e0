package chatview

import (
	"strings"
	"time"

	"github.com/ashureev/roomchat/internal/domain"
)

// DefaultTimeLayout is the time-of-day layout used when none is configured.
const DefaultTimeLayout = "15:04:05"

// Line is a rendered message: a time of day and a body, ordered by origin.
type Line struct {
	Message domain.Message
	Time    string
	Text    string
}

// Parts returns the two parts of the line in display order. Local messages
// show the time first, counterpart messages show the text first.
func (l Line) Parts() [2]string {
	if l.Message.IsLocal() {
		return [2]string{l.Time, l.Text}
	}
	return [2]string{l.Text, l.Time}
}

func (l Line) String() string {
	p := l.Parts()
	return p[0] + "  " + p[1]
}

// Renderer formats messages for display.
type Renderer struct {
	Layout   string
	Location *time.Location
}

// Render formats m.
func (r Renderer) Render(m domain.Message) Line {
	layout := r.Layout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return Line{
		Message: m,
		Time:    m.Time().In(loc).Format(layout),
		Text:    strings.TrimRight(m.Text, "\r\n"),
	}
}
