package chatview

// MessageList is the rendered message list of a room. Heights and offsets are
// in display rows; a scroll top of 0 means the first row is visible.
type MessageList interface {
	Append(Line)
	Prepend(Line)
	Len() int
	ScrollHeight() int
	ScrollTop() int
	SetScrollTop(int)
	ScrollToBottom()
}

// Transcript is an in-memory MessageList with one row per line. Scroll
// offsets are not clamped to a viewport, so ScrollToBottom sets the scroll
// top to the full height.
type Transcript struct {
	lines     []Line
	scrollTop int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds l at the bottom.
func (t *Transcript) Append(l Line) {
	t.lines = append(t.lines, l)
}

// Prepend inserts l at the top.
func (t *Transcript) Prepend(l Line) {
	t.lines = append(t.lines, Line{})
	copy(t.lines[1:], t.lines)
	t.lines[0] = l
}

// Len returns the number of lines.
func (t *Transcript) Len() int {
	return len(t.lines)
}

// ScrollHeight returns the content height, one row per line.
func (t *Transcript) ScrollHeight() int {
	return len(t.lines)
}

// ScrollTop returns the scroll offset.
func (t *Transcript) ScrollTop() int {
	return t.scrollTop
}

// SetScrollTop sets the scroll offset. Negative values become 0.
func (t *Transcript) SetScrollTop(n int) {
	t.scrollTop = max(n, 0)
}

// ScrollToBottom sets the scroll offset to the content height.
func (t *Transcript) ScrollToBottom() {
	t.scrollTop = t.ScrollHeight()
}

// Lines returns a copy of the lines, top first.
func (t *Transcript) Lines() []Line {
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// Texts returns the message bodies, top first.
func (t *Transcript) Texts() []string {
	out := make([]string, len(t.lines))
	for i, l := range t.lines {
		out[i] = l.Text
	}
	return out
}
