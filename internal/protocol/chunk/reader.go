package chunk

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/streamwire/internal/protocol/buffer"
	"github.com/rs/zerolog"
)

// maxPrealloc caps the up-front allocation a declared length can trigger.
const maxPrealloc = 64 << 10

// Reader reassembles chunks into messages against the receive half of a
// Context.
type Reader struct {
	ctx *Context
	in  *buffer.Buffer
	log zerolog.Logger
}

func NewReader(ctx *Context) *Reader {
	return &Reader{ctx: ctx, in: buffer.New(), log: zerolog.Nop()}
}

func (r *Reader) SetLogger(l zerolog.Logger) {
	r.log = l
}

// Feed decodes every whole chunk in b and returns the messages they
// completed. A trailing partial chunk stays unread in b.
func (r *Reader) Feed(b *buffer.Buffer) ([]Message, error) {
	var out []Message
	for b.Remained() > 0 {
		msg, err := r.decodeChunk(b)
		if buffer.IsInsufficient(err) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if msg != nil {
			out = append(out, *msg)
		}
	}
	return out, nil
}

// ReadChunk reads exactly one chunk from src. It returns the message the
// chunk completed, or nil when the message is still partial.
func (r *Reader) ReadChunk(src io.Reader) (*Message, error) {
	r.in.Reset()
	for {
		msg, err := r.decodeChunk(r.in)
		var short *buffer.InsufficientLengthError
		if !errors.As(err, &short) {
			return msg, err
		}
		need := short.Expected - short.Actual
		more := make([]byte, need)
		if _, err := io.ReadFull(src, more); err != nil {
			return nil, err
		}
		r.in.PutBytes(more)
	}
}

// ReadMessage reads chunks until one message completes.
func (r *Reader) ReadMessage(src io.Reader) (Message, error) {
	for {
		msg, err := r.ReadChunk(src)
		if err != nil {
			return Message{}, err
		}
		if msg != nil {
			return *msg, nil
		}
	}
}

// decodeChunk consumes one whole chunk or nothing. Context state only changes
// once every byte of the chunk is present.
func (r *Reader) decodeChunk(b *buffer.Buffer) (*Message, error) {
	mark := b.Offset()
	fail := func(err error) (*Message, error) {
		b.Seek(mark)
		return nil, err
	}

	bh, err := DecodeBasicHeader(b)
	if err != nil {
		return fail(err)
	}
	csid := bh.ChunkStreamID
	prev := r.ctx.received[csid]
	if bh.Format != FormatNew && prev == nil {
		return fail(&ProtocolError{ChunkStreamID: csid, Format: bh.Format, Err: ErrNoPriorChunk})
	}
	h, err := DecodeMessageHeader(b, bh.Format)
	if err != nil {
		return fail(err)
	}
	if bh.Format == FormatContinue && prev.Extended {
		if _, err := b.GetU32BE(); err != nil {
			return fail(err)
		}
	}

	pending := r.ctx.pending[csid]
	if pending != nil && bh.Format != FormatContinue {
		r.log.Warn().Uint32("csid", csid).Str("format", bh.Format.String()).
			Int("dropped", len(pending.payload)).Msg("chunk header interrupted partial message")
		pending = nil
	}
	var next LastChunk
	if pending != nil {
		next = pending.header
	} else {
		next = resolve(prev, h, true)
	}
	if next.MessageLength > r.ctx.limits.MaxMessageLength {
		return fail(&ProtocolError{ChunkStreamID: csid, Format: bh.Format,
			Err: fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, next.MessageLength, r.ctx.limits.MaxMessageLength)})
	}

	have := 0
	if pending != nil {
		have = len(pending.payload)
	}
	n := min(int(r.ctx.receiveChunkSize), int(next.MessageLength)-have)
	if have+n > r.ctx.limits.MaxPendingPerStream {
		return fail(&ProtocolError{ChunkStreamID: csid, Format: bh.Format,
			Err: fmt.Errorf("%w: %d bytes on stream", ErrPendingOverflow, have+n)})
	}
	if pending == nil && n < int(next.MessageLength) && r.pendingStreams(csid) >= r.ctx.limits.MaxPendingStreams {
		return fail(&ProtocolError{ChunkStreamID: csid, Format: bh.Format,
			Err: fmt.Errorf("%w: %d partial streams", ErrPendingOverflow, r.pendingStreams(csid))})
	}
	data, err := b.GetBytes(n)
	if err != nil {
		return fail(err)
	}

	// commit
	r.ctx.RecordReceived(b.Offset() - mark)
	if pending == nil {
		stored := next
		r.ctx.received[csid] = &stored
		pending = &pendingMessage{header: next, payload: make([]byte, 0, min(int(next.MessageLength), maxPrealloc))}
	}
	pending.payload = append(pending.payload, data...)
	if len(pending.payload) < int(next.MessageLength) {
		r.ctx.pending[csid] = pending
		return nil, nil
	}
	delete(r.ctx.pending, csid)
	r.log.Debug().Uint32("csid", csid).Str("type", next.MessageType.String()).
		Uint32("len", next.MessageLength).Uint32("ts", next.Timestamp).Msg("chunk message complete")
	return &Message{
		ChunkStreamID:   csid,
		Timestamp:       next.Timestamp,
		MessageType:     next.MessageType,
		MessageStreamID: next.MessageStreamID,
		Payload:         pending.payload,
	}, nil
}

// pendingStreams counts partial messages on streams other than csid.
func (r *Reader) pendingStreams(csid uint32) int {
	n := len(r.ctx.pending)
	if _, ok := r.ctx.pending[csid]; ok {
		n--
	}
	return n
}
