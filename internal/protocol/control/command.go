package control

import (
	"errors"
	"fmt"

	"github.com/danmuck/streamwire/internal/protocol/amf"
	"github.com/danmuck/streamwire/internal/protocol/buffer"
	"github.com/danmuck/streamwire/internal/protocol/chunk"
)

// CommandChunkStreamID is the conventional chunk stream for commands.
const CommandChunkStreamID uint32 = 3

var ErrMalformedCommand = errors.New("control: malformed command")

// Command is the framing shared by every command message: a name, a
// transaction id and any number of trailing values. No command set is
// interpreted here.
type Command struct {
	Name          string
	TransactionID float64
	Values        []amf.Value
}

func (c Command) Encode() ([]byte, error) {
	b := buffer.New()
	values := append([]amf.Value{amf.String(c.Name), amf.Number(c.TransactionID)}, c.Values...)
	if err := amf.EncodeAll(b, values...); err != nil {
		return nil, fmt.Errorf("control: encode command %q: %w", c.Name, err)
	}
	return b.Bytes(), nil
}

// Message frames c as an AMF0 command on the command chunk stream.
func (c Command) Message(messageStreamID, timestamp uint32) (chunk.Message, error) {
	payload, err := c.Encode()
	if err != nil {
		return chunk.Message{}, err
	}
	return chunk.Message{
		ChunkStreamID:   CommandChunkStreamID,
		Timestamp:       timestamp,
		MessageType:     chunk.TypeCommandAMF0,
		MessageStreamID: messageStreamID,
		Payload:         payload,
	}, nil
}

func DecodeCommand(payload []byte) (Command, error) {
	b := buffer.From(payload)
	name, err := amf.DecodeString(b)
	if err != nil {
		return Command{}, fmt.Errorf("%w: name: %w", ErrMalformedCommand, err)
	}
	txID, err := amf.DecodeNumber(b)
	if err != nil {
		return Command{}, fmt.Errorf("%w: transaction id: %w", ErrMalformedCommand, err)
	}
	values, err := amf.DecodeAll(b)
	if err != nil {
		return Command{}, fmt.Errorf("%w: values: %w", ErrMalformedCommand, err)
	}
	return Command{Name: string(name), TransactionID: float64(txID), Values: values}, nil
}
