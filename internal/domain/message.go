package domain

import (
	"time"
)

// Origin tells who wrote a message from the point of view of this client.
type Origin int

const (
	// OriginCounterpart is the other participant of the room.
	OriginCounterpart Origin = iota
	// OriginLocal is the user running this client.
	OriginLocal
)

// String returns a short label for the origin.
func (o Origin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "counterpart"
}

// Message is a single chat line as shown in a room.
// Messages carry no identity; ordering is the order they were received or
// requested in, never a comparison of timestamps.
type Message struct {
	Text        string
	TimestampMS int64
	Origin      Origin
}

// Time returns the message timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.TimestampMS)
}

// IsLocal returns true if the local user wrote the message.
func (m Message) IsLocal() bool {
	return m.Origin == OriginLocal
}
