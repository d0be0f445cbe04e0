package chatview

// Cursor counts the messages already shown in a room. It is the offset of the
// next history request and never decreases.
type Cursor struct {
	offset int
}

// Offset returns the current offset.
func (c Cursor) Offset() int {
	return c.offset
}

// Advance moves the cursor forward by n. Non-positive values are ignored.
func (c *Cursor) Advance(n int) {
	if n > 0 {
		c.offset += n
	}
}

// RoomSession is the state of one visit to a room, from entry to leave.
type RoomSession struct {
	cursor Cursor
	list   MessageList
	active bool

	// historyStarted is set once the first page has been requested.
	historyStarted bool
	historyPending bool
}

func newRoomSession(list MessageList) *RoomSession {
	return &RoomSession{list: list, active: true}
}

// Cursor returns the pagination cursor.
func (s *RoomSession) Cursor() Cursor {
	return s.cursor
}

// Active reports whether the session has not been left.
func (s *RoomSession) Active() bool {
	return s.active
}

// HistoryPending reports whether a history request is outstanding.
func (s *RoomSession) HistoryPending() bool {
	return s.historyPending
}

func (s *RoomSession) invalidate() {
	s.active = false
	s.historyPending = false
}
