package chunk

import (
	"fmt"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
)

type MessageType uint8

const (
	TypeSetChunkSize     MessageType = 1
	TypeAbort            MessageType = 2
	TypeAcknowledgement  MessageType = 3
	TypeUserControl      MessageType = 4
	TypeWindowAckSize    MessageType = 5
	TypeSetPeerBandwidth MessageType = 6
	TypeAudio            MessageType = 8
	TypeVideo            MessageType = 9
	TypeDataAMF3         MessageType = 15
	TypeCommandAMF3      MessageType = 17
	TypeDataAMF0         MessageType = 18
	TypeCommandAMF0      MessageType = 20
	TypeAggregate        MessageType = 22
)

func (t MessageType) String() string {
	switch t {
	case TypeSetChunkSize:
		return "set-chunk-size"
	case TypeAbort:
		return "abort"
	case TypeAcknowledgement:
		return "acknowledgement"
	case TypeUserControl:
		return "user-control"
	case TypeWindowAckSize:
		return "window-ack-size"
	case TypeSetPeerBandwidth:
		return "set-peer-bandwidth"
	case TypeAudio:
		return "audio"
	case TypeVideo:
		return "video"
	case TypeDataAMF3:
		return "data-amf3"
	case TypeCommandAMF3:
		return "command-amf3"
	case TypeDataAMF0:
		return "data-amf0"
	case TypeCommandAMF0:
		return "command-amf0"
	case TypeAggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// IsControl reports whether t is a protocol control message, which must
// travel on chunk stream 2 with message stream 0.
func (t MessageType) IsControl() bool {
	return t >= TypeSetChunkSize && t <= TypeSetPeerBandwidth && t != TypeUserControl
}

const (
	// ExtendedTimestampSentinel in the 3-byte timestamp field means a 4-byte
	// timestamp follows the message header.
	ExtendedTimestampSentinel uint32 = 0xFFFFFF
	// MaxMessageLength is the largest value the 3-byte length field holds.
	MaxMessageLength uint32 = 0xFFFFFF
)

// MessageHeader is the format-dependent part of a chunk header. Which fields
// are present depends on Format; the accessors report presence.
type MessageHeader struct {
	format          MessageFormat
	timestamp       uint32
	messageLength   uint32
	messageType     MessageType
	messageStreamID uint32
	extended        bool
}

// NewHeader carries every field. timestamp is absolute.
func NewHeader(timestamp, length uint32, typ MessageType, streamID uint32) MessageHeader {
	return MessageHeader{format: FormatNew, timestamp: timestamp, messageLength: length, messageType: typ, messageStreamID: streamID}
}

// SameSourceHeader omits the stream id. delta is relative to the previous
// message on the chunk stream.
func SameSourceHeader(delta, length uint32, typ MessageType) MessageHeader {
	return MessageHeader{format: FormatSameSource, timestamp: delta, messageLength: length, messageType: typ}
}

func TimerChangeHeader(delta uint32) MessageHeader {
	return MessageHeader{format: FormatTimerChange, timestamp: delta}
}

func ContinueHeader() MessageHeader {
	return MessageHeader{format: FormatContinue}
}

func (h MessageHeader) Format() MessageFormat { return h.format }

// Timestamp is absolute for FormatNew and a delta for SameSource/TimerChange.
func (h MessageHeader) Timestamp() (uint32, bool) {
	return h.timestamp, h.format != FormatContinue
}

func (h MessageHeader) MessageLength() (uint32, bool) {
	return h.messageLength, h.format <= FormatSameSource
}

func (h MessageHeader) MessageType() (MessageType, bool) {
	return h.messageType, h.format <= FormatSameSource
}

func (h MessageHeader) MessageStreamID() (uint32, bool) {
	return h.messageStreamID, h.format == FormatNew
}

// Extended reports whether the timestamp needs (or used) the 4-byte field.
func (h MessageHeader) Extended() bool {
	return h.extended || (h.format != FormatContinue && h.timestamp >= ExtendedTimestampSentinel)
}

// HeaderSize returns the message header length for f, excluding any
// extended timestamp.
func HeaderSize(f MessageFormat) int {
	switch f {
	case FormatNew:
		return 11
	case FormatSameSource:
		return 7
	case FormatTimerChange:
		return 3
	default:
		return 0
	}
}

// EncodeMessageHeader writes the header and, when the timestamp does not fit
// in 3 bytes, the trailing extended timestamp.
func EncodeMessageHeader(b *buffer.Buffer, h MessageHeader) error {
	if h.format == FormatContinue {
		return nil
	}
	if h.format <= FormatSameSource && h.messageLength > MaxMessageLength {
		return fmt.Errorf("%w: %d", ErrMessageTooLarge, h.messageLength)
	}
	ts := h.timestamp
	if ts >= ExtendedTimestampSentinel {
		ts = ExtendedTimestampSentinel
	}
	b.PutU24BE(ts)
	if h.format <= FormatSameSource {
		b.PutU24BE(h.messageLength)
		b.PutU8(uint8(h.messageType))
	}
	if h.format == FormatNew {
		b.PutU32LE(h.messageStreamID)
	}
	if ts == ExtendedTimestampSentinel {
		b.PutU32BE(h.timestamp)
	}
	return nil
}

// DecodeMessageHeader reads the header for format f, including the extended
// timestamp when the sentinel is present. Continue headers read nothing; the
// caller handles their repeated extended timestamp. The cursor is restored
// on failure.
func DecodeMessageHeader(b *buffer.Buffer, f MessageFormat) (MessageHeader, error) {
	h := MessageHeader{format: f}
	if f == FormatContinue {
		return h, nil
	}
	mark := b.Offset()
	fail := func(err error) (MessageHeader, error) {
		b.Seek(mark)
		return MessageHeader{}, err
	}
	ts, err := b.GetU24BE()
	if err != nil {
		return fail(err)
	}
	if f <= FormatSameSource {
		if h.messageLength, err = b.GetU24BE(); err != nil {
			return fail(err)
		}
		typ, err := b.GetU8()
		if err != nil {
			return fail(err)
		}
		h.messageType = MessageType(typ)
	}
	if f == FormatNew {
		if h.messageStreamID, err = b.GetU32LE(); err != nil {
			return fail(err)
		}
	}
	if ts == ExtendedTimestampSentinel {
		if ts, err = b.GetU32BE(); err != nil {
			return fail(err)
		}
		h.extended = true
	}
	h.timestamp = ts
	return h, nil
}
