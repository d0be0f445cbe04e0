package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types, one per websocket frame.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// PacketType is a Socket.IO v5 packet type.
type PacketType int

// Socket.IO packet types. Binary packets are not supported.
const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketBinaryEvent
	PacketBinaryAck
)

// Packet is a Socket.IO packet carried in an Engine.IO message frame.
type Packet struct {
	Type      PacketType
	Namespace string
	ID        int
	HasID     bool
	Data      json.RawMessage
}

// openPayload is the body of the Engine.IO open packet.
type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// Encode returns the Engine.IO message frame for the packet.
func (p Packet) Encode() []byte {
	var b strings.Builder
	b.WriteByte(eioMessage)
	b.WriteString(strconv.Itoa(int(p.Type)))
	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.HasID {
		b.WriteString(strconv.Itoa(p.ID))
	}
	b.Write(p.Data)
	return []byte(b.String())
}

// decodePacket parses a Socket.IO packet. s is the frame without the leading
// Engine.IO message type.
func decodePacket(s string) (Packet, error) {
	if s == "" {
		return Packet{}, fmt.Errorf("empty packet")
	}
	t := int(s[0] - '0')
	if t < int(PacketConnect) || t > int(PacketBinaryAck) {
		return Packet{}, fmt.Errorf("unknown packet type %q", s[0])
	}
	p := Packet{Type: PacketType(t), Namespace: "/"}
	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		return Packet{}, fmt.Errorf("binary packets are not supported")
	}
	rest := s[1:]

	if strings.HasPrefix(rest, "/") {
		i := strings.IndexByte(rest, ',')
		if i < 0 {
			// Namespace with no payload, e.g. "1/chats/going".
			p.Namespace = rest
			return p, nil
		}
		p.Namespace = rest[:i]
		rest = rest[i+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return Packet{}, fmt.Errorf("parse ack id: %w", err)
		}
		p.ID = id
		p.HasID = true
		rest = rest[digits:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return Packet{}, fmt.Errorf("invalid packet data")
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// eventPacket builds an EVENT packet for name with the given arguments.
func eventPacket(namespace, name string, args []any) (Packet, error) {
	body := make([]any, 0, len(args)+1)
	body = append(body, name)
	body = append(body, args...)
	data, err := json.Marshal(body)
	if err != nil {
		return Packet{}, fmt.Errorf("encode %s arguments: %w", name, err)
	}
	return Packet{Type: PacketEvent, Namespace: namespace, Data: data}, nil
}

// splitEvent returns the event name and arguments of an EVENT packet.
func splitEvent(data json.RawMessage) (string, []json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("event without name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	return name, parts[1:], nil
}

// splitAck returns the arguments of an ACK packet.
func splitAck(data json.RawMessage) ([]json.RawMessage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("decode ack: %w", err)
	}
	return parts, nil
}
