package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func args(payload string) []json.RawMessage {
	return []json.RawMessage{json.RawMessage(payload)}
}

func TestDecodePrintMessage(t *testing.T) {
	tests := []struct {
		name    string
		args    []json.RawMessage
		want    PrintMessage
		wantErr bool
	}{
		{
			name: "valid",
			args: args(`{"uuid":"abc","message":"hi","timestamp_milliseconds":1700000000123}`),
			want: PrintMessage{UUID: "abc", Message: "hi", TimestampMS: 1700000000123},
		},
		{
			name: "float timestamp is rounded",
			args: args(`{"uuid":"abc","message":"hi","timestamp_milliseconds":1700000000123.6}`),
			want: PrintMessage{UUID: "abc", Message: "hi", TimestampMS: 1700000000124},
		},
		{
			name: "unknown fields are ignored",
			args: args(`{"uuid":"abc","message":"hi","timestamp_milliseconds":1,"extra":true}`),
			want: PrintMessage{UUID: "abc", Message: "hi", TimestampMS: 1},
		},
		{name: "missing uuid", args: args(`{"message":"hi","timestamp_milliseconds":1}`), wantErr: true},
		{name: "missing message", args: args(`{"uuid":"abc","timestamp_milliseconds":1}`), wantErr: true},
		{name: "null timestamp", args: args(`{"uuid":"abc","message":"hi","timestamp_milliseconds":null}`), wantErr: true},
		{name: "string timestamp", args: args(`{"uuid":"abc","message":"hi","timestamp_milliseconds":"soon"}`), wantErr: true},
		{name: "negative timestamp", args: args(`{"uuid":"abc","message":"hi","timestamp_milliseconds":-5}`), wantErr: true},
		{name: "not an object", args: args(`[1,2]`), wantErr: true},
		{name: "no args", args: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePrintMessage(tt.args)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("DecodePrintMessage() error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePrintMessage() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodePrintMessage() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeLoadMoreMessages(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    LoadMoreMessages
		wantErr bool
	}{
		{
			name:    "empty page",
			payload: `{"messages_number":0,"messages":[]}`,
			want:    LoadMoreMessages{MessagesNumber: 0, Messages: []HistoryMessage{}},
		},
		{
			name: "two messages keep their order",
			payload: `{"messages_number":2,"messages":[
				{"message_text":"newer","timestamp_milliseconds":2000.0,"is_current_user":true},
				{"message_text":"older","timestamp_milliseconds":1000.0,"is_current_user":false}
			]}`,
			want: LoadMoreMessages{
				MessagesNumber: 2,
				Messages: []HistoryMessage{
					{MessageText: "newer", TimestampMS: 2000, IsCurrentUser: true},
					{MessageText: "older", TimestampMS: 1000},
				},
			},
		},
		{
			name:    "count mismatch",
			payload: `{"messages_number":3,"messages":[{"message_text":"a","timestamp_milliseconds":1}]}`,
			wantErr: true,
		},
		{
			name:    "missing count",
			payload: `{"messages":[]}`,
			wantErr: true,
		},
		{
			name:    "incomplete entry rejects whole page",
			payload: `{"messages_number":2,"messages":[{"message_text":"a","timestamp_milliseconds":1},{"message_text":"b"}]}`,
			wantErr: true,
		},
		{
			name:    "null payload",
			payload: `null`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeLoadMoreMessages(args(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("DecodeLoadMoreMessages() error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeLoadMoreMessages() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeLoadMoreMessages() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeStatus(t *testing.T) {
	got, err := DecodeStatus(args(`{"message":"connected"}`))
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}
	if got.Message != "connected" {
		t.Errorf("Message = %q, want %q", got.Message, "connected")
	}

	if _, err := DecodeStatus(args(`{}`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeStatus({}) error = %v, want ErrMalformed", err)
	}
}

func TestPutData_JSON(t *testing.T) {
	b, err := json.Marshal(PutData{Message: "hello", TimestampMS: 42, UUID: "u"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"message":"hello","timestamp_milliseconds":42,"uuid":"u"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}
