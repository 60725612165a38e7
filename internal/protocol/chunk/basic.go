// Package chunk splits messages into chunks and reassembles them.
//
// Every chunk starts with a basic header (format + chunk stream id) and a
// message header whose size depends on the format. Fields a header omits are
// taken from the last header seen on the same chunk stream, so both
// directions keep a per-stream LastChunk cache inside Context.
package chunk

import (
	"errors"
	"fmt"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
)

// MessageFormat is the 2-bit fmt field of the basic header.
type MessageFormat uint8

const (
	FormatNew MessageFormat = iota
	FormatSameSource
	FormatTimerChange
	FormatContinue
)

func (f MessageFormat) String() string {
	switch f {
	case FormatNew:
		return "new"
	case FormatSameSource:
		return "same-source"
	case FormatTimerChange:
		return "timer-change"
	case FormatContinue:
		return "continue"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

const (
	MinChunkStreamID uint32 = 2
	MaxChunkStreamID uint32 = 65599

	maxOneByteID uint32 = 63
	maxTwoByteID uint32 = 319
)

var ErrInvalidChunkStreamID = errors.New("chunk: invalid chunk stream id")

type BasicHeader struct {
	Format        MessageFormat
	ChunkStreamID uint32
}

// Size returns the encoded length in bytes.
func (h BasicHeader) Size() int {
	switch {
	case h.ChunkStreamID <= maxOneByteID:
		return 1
	case h.ChunkStreamID <= maxTwoByteID:
		return 2
	default:
		return 3
	}
}

func EncodeBasicHeader(b *buffer.Buffer, h BasicHeader) error {
	if h.ChunkStreamID < MinChunkStreamID || h.ChunkStreamID > MaxChunkStreamID {
		return fmt.Errorf("%w: %d", ErrInvalidChunkStreamID, h.ChunkStreamID)
	}
	top := uint8(h.Format&0x03) << 6
	switch {
	case h.ChunkStreamID <= maxOneByteID:
		b.PutU8(top | uint8(h.ChunkStreamID))
	case h.ChunkStreamID <= maxTwoByteID:
		b.PutU8(top)
		b.PutU8(uint8(h.ChunkStreamID - 64))
	default:
		id := h.ChunkStreamID - 64
		b.PutU8(top | 1)
		b.PutU8(uint8(id))
		b.PutU8(uint8(id >> 8))
	}
	return nil
}

// DecodeBasicHeader leaves the cursor untouched when the header is incomplete.
func DecodeBasicHeader(b *buffer.Buffer) (BasicHeader, error) {
	mark := b.Offset()
	first, err := b.GetU8()
	if err != nil {
		return BasicHeader{}, err
	}
	h := BasicHeader{Format: MessageFormat(first >> 6)}
	switch low := uint32(first & 0x3F); low {
	case 0:
		second, err := b.GetU8()
		if err != nil {
			b.Seek(mark)
			return BasicHeader{}, err
		}
		h.ChunkStreamID = uint32(second) + 64
	case 1:
		lo, err := b.GetU8()
		if err != nil {
			b.Seek(mark)
			return BasicHeader{}, err
		}
		hi, err := b.GetU8()
		if err != nil {
			b.Seek(mark)
			return BasicHeader{}, err
		}
		h.ChunkStreamID = (uint32(hi)<<8 | uint32(lo)) + 64
	default:
		h.ChunkStreamID = low
	}
	return h, nil
}
