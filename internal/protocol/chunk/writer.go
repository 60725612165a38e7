package chunk

import (
	"fmt"
	"io"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
)

// Message is one reassembled (or to-be-split) application message.
type Message struct {
	ChunkStreamID   uint32
	Timestamp       uint32
	MessageType     MessageType
	MessageStreamID uint32
	Payload         []byte
}

// Writer splits messages into chunks against the send half of a Context.
type Writer struct {
	ctx *Context
}

func NewWriter(ctx *Context) *Writer {
	return &Writer{ctx: ctx}
}

// selectHeader picks the smallest header the send cache allows.
func selectHeader(prev *LastChunk, msg Message) MessageHeader {
	length := uint32(len(msg.Payload))
	switch {
	case prev == nil,
		prev.MessageStreamID != msg.MessageStreamID,
		msg.Timestamp < prev.Timestamp:
		return NewHeader(msg.Timestamp, length, msg.MessageType, msg.MessageStreamID)
	case prev.MessageLength != length, prev.MessageType != msg.MessageType:
		return SameSourceHeader(msg.Timestamp-prev.Timestamp, length, msg.MessageType)
	default:
		return TimerChangeHeader(msg.Timestamp - prev.Timestamp)
	}
}

// Disassemble encodes msg as a chunk sequence and updates the send cache.
// The cache is untouched when it fails.
func (w *Writer) Disassemble(msg Message) ([]byte, error) {
	if len(msg.Payload) > int(MaxMessageLength) {
		return nil, fmt.Errorf("%w: %d", ErrMessageTooLarge, len(msg.Payload))
	}
	prev := w.ctx.sent[msg.ChunkStreamID]
	h := selectHeader(prev, msg)

	b := buffer.New()
	if err := EncodeBasicHeader(b, BasicHeader{Format: h.format, ChunkStreamID: msg.ChunkStreamID}); err != nil {
		return nil, err
	}
	if err := EncodeMessageHeader(b, h); err != nil {
		return nil, err
	}
	next := resolve(prev, h, true)

	size := int(w.ctx.sendChunkSize)
	payload := msg.Payload
	first := true
	for first || len(payload) > 0 {
		if !first {
			// Continue headers cannot fail once the first header encoded.
			_ = EncodeBasicHeader(b, BasicHeader{Format: FormatContinue, ChunkStreamID: msg.ChunkStreamID})
			if next.Extended {
				b.PutU32BE(next.Delta)
			}
		}
		n := min(size, len(payload))
		b.PutBytes(payload[:n])
		payload = payload[n:]
		first = false
	}

	w.ctx.sent[msg.ChunkStreamID] = &next
	return b.Bytes(), nil
}

// WriteMessage disassembles msg and writes every chunk in one call.
func (w *Writer) WriteMessage(dst io.Writer, msg Message) error {
	raw, err := w.Disassemble(msg)
	if err != nil {
		return err
	}
	if _, err := dst.Write(raw); err != nil {
		return fmt.Errorf("chunk: write csid %d: %w", msg.ChunkStreamID, err)
	}
	return nil
}
