package transport

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPacket_Encode(t *testing.T) {
	tests := []struct {
		name string
		p    Packet
		want string
	}{
		{
			name: "namespace connect",
			p:    Packet{Type: PacketConnect, Namespace: "/chats/going"},
			want: "40/chats/going,",
		},
		{
			name: "root namespace event",
			p:    Packet{Type: PacketEvent, Namespace: "/", Data: json.RawMessage(`["enter_room"]`)},
			want: `42["enter_room"]`,
		},
		{
			name: "event with ack id",
			p:    Packet{Type: PacketEvent, Namespace: "/chats/going", ID: 3, HasID: true, Data: json.RawMessage(`["leave_room"]`)},
			want: `42/chats/going,3["leave_room"]`,
		},
		{
			name: "namespace disconnect",
			p:    Packet{Type: PacketDisconnect, Namespace: "/chats/going"},
			want: "41/chats/going,",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(tt.p.Encode()); got != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Packet
		wantErr bool
	}{
		{
			name: "connect ack",
			in:   `0/chats/going,{"sid":"abc"}`,
			want: Packet{Type: PacketConnect, Namespace: "/chats/going", Data: json.RawMessage(`{"sid":"abc"}`)},
		},
		{
			name: "event",
			in:   `2/chats/going,["print_message",{"message":"hi"}]`,
			want: Packet{Type: PacketEvent, Namespace: "/chats/going", Data: json.RawMessage(`["print_message",{"message":"hi"}]`)},
		},
		{
			name: "ack with id",
			in:   `3/chats/going,12[]`,
			want: Packet{Type: PacketAck, Namespace: "/chats/going", ID: 12, HasID: true, Data: json.RawMessage(`[]`)},
		},
		{
			name: "root namespace",
			in:   `2["status",{}]`,
			want: Packet{Type: PacketEvent, Namespace: "/", Data: json.RawMessage(`["status",{}]`)},
		},
		{
			name: "disconnect without payload",
			in:   `1/chats/going`,
			want: Packet{Type: PacketDisconnect, Namespace: "/chats/going"},
		},
		{name: "empty", in: "", wantErr: true},
		{name: "unknown type", in: "9", wantErr: true},
		{name: "binary event", in: `5/chats/going,1-["x",{}]`, wantErr: true},
		{name: "invalid json", in: `2/chats/going,["x"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodePacket(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodePacket() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decodePacket() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEventPacketRoundTrip(t *testing.T) {
	p, err := eventPacket("/chats/going", "put_data", []any{map[string]any{"message": "hello"}})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decodePacket(string(p.Encode()[1:]))
	if err != nil {
		t.Fatal(err)
	}
	name, args, err := splitEvent(decoded.Data)
	if err != nil {
		t.Fatal(err)
	}
	if name != "put_data" {
		t.Errorf("name = %q, want put_data", name)
	}
	if len(args) != 1 || string(args[0]) != `{"message":"hello"}` {
		t.Errorf("args = %s", args)
	}
}

func TestSplitEvent_Errors(t *testing.T) {
	for _, in := range []string{`{}`, `[]`, `[1,2]`} {
		if _, _, err := splitEvent(json.RawMessage(in)); err == nil {
			t.Errorf("splitEvent(%s) error = nil, want error", in)
		}
	}
}

func TestSplitAck(t *testing.T) {
	args, err := splitAck(nil)
	if err != nil || args != nil {
		t.Errorf("splitAck(nil) = %v, %v", args, err)
	}
	args, err = splitAck(json.RawMessage(`["ok",1]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 2 {
		t.Errorf("len(args) = %d, want 2", len(args))
	}
}
