package tui

import (
	"strings"

	"github.com/ashureev/roomchat/internal/chatview"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

type styles struct {
	header       lipgloss.Style
	online       lipgloss.Style
	offline      lipgloss.Style
	status       lipgloss.Style
	localTime    lipgloss.Style
	localText    lipgloss.Style
	companyTime  lipgloss.Style
	companyText  lipgloss.Style
	errorMessage lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		header:       lipgloss.NewStyle().Bold(true).Padding(0, 1),
		online:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		offline:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		status:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true).Padding(0, 1),
		localTime:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		localText:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		companyTime:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		companyText:  lipgloss.NewStyle(),
		errorMessage: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1),
	}
}

// line renders a message in the part order of chatview.Line, wrapped to
// width. Counterpart messages end with the time on the last row; local
// messages start with it and are right-aligned.
func (s styles) line(l chatview.Line, width int) string {
	body := singleRow(l.Text)
	if l.Message.IsLocal() {
		return s.localLine(l.Time, body, width)
	}

	rows := wrapRows(body, width)
	last := len(rows) - 1
	for i := range rows {
		rows[i] = s.companyText.Render(rows[i])
	}
	stamp := s.companyTime.Render(l.Time)
	if width <= 0 || ansi.StringWidth(rows[last])+len(timeGap)+ansi.StringWidth(l.Time) <= width {
		rows[last] += timeGap + stamp
	} else {
		rows = append(rows, stamp)
	}
	return strings.Join(rows, "\n")
}

func (s styles) localLine(stamp, body string, width int) string {
	var rows []string
	textWidth := width - ansi.StringWidth(stamp) - len(timeGap)
	if width > 0 && textWidth < 1 {
		rows = append(rows, s.localTime.Render(stamp))
		for _, r := range wrapRows(body, width) {
			rows = append(rows, s.localText.Render(r))
		}
	} else {
		for i, r := range wrapRows(body, textWidth) {
			r = s.localText.Render(r)
			if i == 0 {
				r = s.localTime.Render(stamp) + timeGap + r
			}
			rows = append(rows, r)
		}
	}
	out := strings.Join(rows, "\n")
	if width > 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, out)
	}
	return out
}

const timeGap = "  "

// wrapRows word-wraps s to width cells, breaking long words. A width of zero
// or less leaves s on one row.
func wrapRows(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	rows := strings.Split(ansi.Wrap(s, width, ""), "\n")
	for i, r := range rows {
		rows[i] = strings.TrimRight(r, " ")
	}
	return rows
}
