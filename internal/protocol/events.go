// Package protocol defines the chat room events exchanged over the realtime
// transport and validates inbound payloads before they reach the view.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Outbound event names.
const (
	EventEnterRoom       = "enter_room"
	EventLeaveRoom       = "leave_room"
	EventPutData         = "put_data"
	EventGetMoreMessages = "get_more_messages"
)

// Inbound event names.
const (
	EventStatus           = "status"
	EventPrintMessage     = "print_message"
	EventLoadMoreMessages = "load_more_messages"
)

// ErrMalformed is returned when an inbound payload does not have the expected
// shape. Callers drop the event.
var ErrMalformed = errors.New("malformed payload")

// Millis is a Unix timestamp in milliseconds.
// The server serialises history timestamps as floats (seconds * 1000), so
// decoding accepts any JSON number and rounds to the nearest millisecond.
type Millis int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("%w: null timestamp", ErrMalformed)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp %s", ErrMalformed, b)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt64/2 {
		return fmt.Errorf("%w: timestamp out of range", ErrMalformed)
	}
	*m = Millis(math.Round(f))
	return nil
}

// PutData is the payload of an outgoing chat message.
type PutData struct {
	Message     string `json:"message"`
	TimestampMS int64  `json:"timestamp_milliseconds"`
	UUID        string `json:"uuid"`
}

// GetMoreMessages asks for the next page of history.
type GetMoreMessages struct {
	MessagesOffset int `json:"messages_offset"`
}

// Status is an informational server notice.
type Status struct {
	Message string `json:"message"`
}

// PrintMessage is a live message pushed to everyone in the room, including
// the sender.
type PrintMessage struct {
	UUID        string `json:"uuid"`
	Message     string `json:"message"`
	TimestampMS Millis `json:"timestamp_milliseconds"`
}

// HistoryMessage is one entry of a history page.
type HistoryMessage struct {
	MessageText   string `json:"message_text"`
	TimestampMS   Millis `json:"timestamp_milliseconds"`
	IsCurrentUser bool   `json:"is_current_user"`
}

// LoadMoreMessages is a page of history, newest first.
type LoadMoreMessages struct {
	MessagesNumber int              `json:"messages_number"`
	Messages       []HistoryMessage `json:"messages"`
}

// Len returns the number of messages in the page.
func (l LoadMoreMessages) Len() int {
	return len(l.Messages)
}

// DecodeStatus decodes the first argument of a status event.
func DecodeStatus(args []json.RawMessage) (Status, error) {
	var raw struct {
		Message *string `json:"message"`
	}
	if err := decodeFirst(args, &raw); err != nil {
		return Status{}, err
	}
	if raw.Message == nil {
		return Status{}, fmt.Errorf("%w: status without message", ErrMalformed)
	}
	return Status{Message: *raw.Message}, nil
}

// DecodePrintMessage decodes and validates a live message.
func DecodePrintMessage(args []json.RawMessage) (PrintMessage, error) {
	var raw struct {
		UUID        *string `json:"uuid"`
		Message     *string `json:"message"`
		TimestampMS *Millis `json:"timestamp_milliseconds"`
	}
	if err := decodeFirst(args, &raw); err != nil {
		return PrintMessage{}, err
	}
	switch {
	case raw.UUID == nil:
		return PrintMessage{}, fmt.Errorf("%w: print_message without uuid", ErrMalformed)
	case raw.Message == nil:
		return PrintMessage{}, fmt.Errorf("%w: print_message without message", ErrMalformed)
	case raw.TimestampMS == nil:
		return PrintMessage{}, fmt.Errorf("%w: print_message without timestamp", ErrMalformed)
	}
	return PrintMessage{
		UUID:        *raw.UUID,
		Message:     *raw.Message,
		TimestampMS: *raw.TimestampMS,
	}, nil
}

// DecodeLoadMoreMessages decodes and validates a history page. The page is
// rejected as a whole when any entry is invalid or when messages_number does
// not match the number of entries.
func DecodeLoadMoreMessages(args []json.RawMessage) (LoadMoreMessages, error) {
	var raw struct {
		MessagesNumber *int `json:"messages_number"`
		Messages       []struct {
			MessageText   *string `json:"message_text"`
			TimestampMS   *Millis `json:"timestamp_milliseconds"`
			IsCurrentUser *bool   `json:"is_current_user"`
		} `json:"messages"`
	}
	if err := decodeFirst(args, &raw); err != nil {
		return LoadMoreMessages{}, err
	}
	if raw.MessagesNumber == nil {
		return LoadMoreMessages{}, fmt.Errorf("%w: load_more_messages without messages_number", ErrMalformed)
	}
	if *raw.MessagesNumber != len(raw.Messages) {
		return LoadMoreMessages{}, fmt.Errorf("%w: messages_number %d but %d messages",
			ErrMalformed, *raw.MessagesNumber, len(raw.Messages))
	}

	out := LoadMoreMessages{
		MessagesNumber: *raw.MessagesNumber,
		Messages:       make([]HistoryMessage, 0, len(raw.Messages)),
	}
	for i, m := range raw.Messages {
		if m.MessageText == nil || m.TimestampMS == nil {
			return LoadMoreMessages{}, fmt.Errorf("%w: history message %d incomplete", ErrMalformed, i)
		}
		hm := HistoryMessage{
			MessageText: *m.MessageText,
			TimestampMS: *m.TimestampMS,
		}
		if m.IsCurrentUser != nil {
			hm.IsCurrentUser = *m.IsCurrentUser
		}
		out.Messages = append(out.Messages, hm)
	}
	return out, nil
}

func decodeFirst(args []json.RawMessage, v any) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if err := json.Unmarshal(args[0], v); err != nil {
		if errors.Is(err, ErrMalformed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
