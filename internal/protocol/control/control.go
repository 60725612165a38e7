// Package control encodes the protocol control and user control messages
// and applies them to a chunk.Context.
package control

import (
	"errors"
	"fmt"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
	"github.com/danmuck/streamwire/internal/protocol/chunk"
)

const (
	// ChunkStreamID is the chunk stream every control message travels on.
	ChunkStreamID uint32 = 2
	// MessageStreamID is the message stream every control message uses.
	MessageStreamID uint32 = 0

	negativeFlag uint32 = 0x80000000
)

var (
	ErrNegativeChunkSize = errors.New("control: negative chunk size")
	ErrNotControl        = errors.New("control: not a control message")
	ErrTrailingBytes     = errors.New("control: trailing bytes in payload")
)

// Payload is a decoded control message body.
type Payload interface {
	Type() chunk.MessageType
	Encode(b *buffer.Buffer) error
}

type SetChunkSize struct {
	Size uint32
}

func (SetChunkSize) Type() chunk.MessageType { return chunk.TypeSetChunkSize }

func (m SetChunkSize) Encode(b *buffer.Buffer) error {
	if m.Size&negativeFlag != 0 {
		return fmt.Errorf("%w: %#x", ErrNegativeChunkSize, m.Size)
	}
	if m.Size == 0 {
		return fmt.Errorf("%w: 0", chunk.ErrInvalidChunkSize)
	}
	b.PutU32BE(m.Size)
	return nil
}

type Abort struct {
	ChunkStreamID uint32
}

func (Abort) Type() chunk.MessageType { return chunk.TypeAbort }

func (m Abort) Encode(b *buffer.Buffer) error {
	b.PutU32BE(m.ChunkStreamID)
	return nil
}

type Acknowledgement struct {
	SequenceNumber uint32
}

func (Acknowledgement) Type() chunk.MessageType { return chunk.TypeAcknowledgement }

func (m Acknowledgement) Encode(b *buffer.Buffer) error {
	b.PutU32BE(m.SequenceNumber)
	return nil
}

type WindowAckSize struct {
	Size uint32
}

func (WindowAckSize) Type() chunk.MessageType { return chunk.TypeWindowAckSize }

func (m WindowAckSize) Encode(b *buffer.Buffer) error {
	b.PutU32BE(m.Size)
	return nil
}

type SetPeerBandwidth struct {
	Size  uint32
	Limit chunk.BandwidthLimit
}

func (SetPeerBandwidth) Type() chunk.MessageType { return chunk.TypeSetPeerBandwidth }

func (m SetPeerBandwidth) Encode(b *buffer.Buffer) error {
	b.PutU32BE(m.Size)
	b.PutU8(uint8(m.Limit))
	return nil
}

// Message wraps p for the chunk layer.
func Message(p Payload) (chunk.Message, error) {
	b := buffer.New()
	if err := p.Encode(b); err != nil {
		return chunk.Message{}, err
	}
	return chunk.Message{
		ChunkStreamID:   ChunkStreamID,
		MessageType:     p.Type(),
		MessageStreamID: MessageStreamID,
		Payload:         b.Bytes(),
	}, nil
}

// Decode parses a protocol control or user control message.
func Decode(msg chunk.Message) (Payload, error) {
	b := buffer.From(msg.Payload)
	var (
		p   Payload
		err error
	)
	switch msg.MessageType {
	case chunk.TypeSetChunkSize:
		p, err = decodeSetChunkSize(b)
	case chunk.TypeAbort:
		var id uint32
		id, err = b.GetU32BE()
		p = Abort{ChunkStreamID: id}
	case chunk.TypeAcknowledgement:
		var seq uint32
		seq, err = b.GetU32BE()
		p = Acknowledgement{SequenceNumber: seq}
	case chunk.TypeWindowAckSize:
		var size uint32
		size, err = b.GetU32BE()
		p = WindowAckSize{Size: size}
	case chunk.TypeSetPeerBandwidth:
		p, err = decodePeerBandwidth(b)
	case chunk.TypeUserControl:
		p, err = decodeUserControl(b)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotControl, msg.MessageType)
	}
	if err != nil {
		return nil, fmt.Errorf("control: decode %s: %w", msg.MessageType, err)
	}
	if b.Remained() != 0 {
		return nil, fmt.Errorf("%w: %s has %d extra", ErrTrailingBytes, msg.MessageType, b.Remained())
	}
	return p, nil
}

func decodeSetChunkSize(b *buffer.Buffer) (Payload, error) {
	size, err := b.GetU32BE()
	if err != nil {
		return nil, err
	}
	if size&negativeFlag != 0 {
		return nil, fmt.Errorf("%w: %#x", ErrNegativeChunkSize, size)
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: 0", chunk.ErrInvalidChunkSize)
	}
	return SetChunkSize{Size: size}, nil
}

func decodePeerBandwidth(b *buffer.Buffer) (Payload, error) {
	size, err := b.GetU32BE()
	if err != nil {
		return nil, err
	}
	limit, err := b.GetU8()
	if err != nil {
		return nil, err
	}
	return SetPeerBandwidth{Size: size, Limit: chunk.BandwidthLimit(limit)}, nil
}

// Apply decodes msg and updates ctx for the messages that change chunk
// state. The decoded payload is returned so the caller can answer it.
func Apply(ctx *chunk.Context, msg chunk.Message) (Payload, error) {
	p, err := Decode(msg)
	if err != nil {
		return nil, err
	}
	switch p := p.(type) {
	case SetChunkSize:
		if err := ctx.SetReceiveChunkSize(p.Size); err != nil {
			return nil, err
		}
	case Abort:
		ctx.Abort(p.ChunkStreamID)
	case WindowAckSize:
		ctx.SetWindowAckSize(p.Size)
	case SetPeerBandwidth:
		ctx.SetPeerBandwidth(p.Size, p.Limit)
	}
	return p, nil
}
