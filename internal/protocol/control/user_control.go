package control

import (
	"fmt"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
	"github.com/danmuck/streamwire/internal/protocol/chunk"
)

// EventType is the 2-byte event id at the head of a user control message.
type EventType uint16

const (
	EventStreamBegin      EventType = 0
	EventStreamEOF        EventType = 1
	EventStreamDry        EventType = 2
	EventSetBufferLength  EventType = 3
	EventStreamIsRecorded EventType = 4
	EventPingRequest      EventType = 6
	EventPingResponse     EventType = 7
)

func (e EventType) String() string {
	switch e {
	case EventStreamBegin:
		return "stream-begin"
	case EventStreamEOF:
		return "stream-eof"
	case EventStreamDry:
		return "stream-dry"
	case EventSetBufferLength:
		return "set-buffer-length"
	case EventStreamIsRecorded:
		return "stream-is-recorded"
	case EventPingRequest:
		return "ping-request"
	case EventPingResponse:
		return "ping-response"
	default:
		return fmt.Sprintf("event(%d)", uint16(e))
	}
}

// UserControl carries one event. StreamID is set for the stream events and
// SetBufferLength, BufferLength only for SetBufferLength, Timestamp only for
// the ping events. Unknown events keep their body in Raw.
type UserControl struct {
	Event        EventType
	StreamID     uint32
	BufferLength uint32
	Timestamp    uint32
	Raw          []byte
}

func (UserControl) Type() chunk.MessageType { return chunk.TypeUserControl }

func StreamBegin(streamID uint32) UserControl {
	return UserControl{Event: EventStreamBegin, StreamID: streamID}
}

func PingRequest(ts uint32) UserControl {
	return UserControl{Event: EventPingRequest, Timestamp: ts}
}

func PingResponse(ts uint32) UserControl {
	return UserControl{Event: EventPingResponse, Timestamp: ts}
}

func (m UserControl) Encode(b *buffer.Buffer) error {
	b.PutU16BE(uint16(m.Event))
	switch m.Event {
	case EventStreamBegin, EventStreamEOF, EventStreamDry, EventStreamIsRecorded:
		b.PutU32BE(m.StreamID)
	case EventSetBufferLength:
		b.PutU32BE(m.StreamID)
		b.PutU32BE(m.BufferLength)
	case EventPingRequest, EventPingResponse:
		b.PutU32BE(m.Timestamp)
	default:
		b.PutBytes(m.Raw)
	}
	return nil
}

func decodeUserControl(b *buffer.Buffer) (Payload, error) {
	ev, err := b.GetU16BE()
	if err != nil {
		return nil, err
	}
	m := UserControl{Event: EventType(ev)}
	switch m.Event {
	case EventStreamBegin, EventStreamEOF, EventStreamDry, EventStreamIsRecorded:
		m.StreamID, err = b.GetU32BE()
	case EventSetBufferLength:
		if m.StreamID, err = b.GetU32BE(); err == nil {
			m.BufferLength, err = b.GetU32BE()
		}
	case EventPingRequest, EventPingResponse:
		m.Timestamp, err = b.GetU32BE()
	default:
		m.Raw, err = b.GetBytes(b.Remained())
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
