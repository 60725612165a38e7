package chunk

import (
	"errors"
	"fmt"
)

const (
	DefaultChunkSize uint32 = 128
	MaxChunkSize     uint32 = 0x7FFFFFFF

	DefaultWindowAckSize uint32 = 2500000
	DefaultPeerBandwidth uint32 = 2500000
)

var (
	ErrNoPriorChunk     = errors.New("chunk: no prior chunk on stream")
	ErrPendingOverflow  = errors.New("chunk: pending payload over limit")
	ErrMessageTooLarge  = errors.New("chunk: message too large")
	ErrInvalidChunkSize = errors.New("chunk: invalid chunk size")
)

// ProtocolError is a peer violation tied to one chunk stream. The connection
// should be closed.
type ProtocolError struct {
	ChunkStreamID uint32
	Format        MessageFormat
	Err           error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("chunk: protocol violation on csid %d (%s): %v", e.ChunkStreamID, e.Format, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func IsProtocolViolation(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// BandwidthLimit is the limit type of a SetPeerBandwidth message.
type BandwidthLimit uint8

const (
	LimitHard BandwidthLimit = iota
	LimitSoft
	LimitDynamic
)

func (l BandwidthLimit) String() string {
	switch l {
	case LimitHard:
		return "hard"
	case LimitSoft:
		return "soft"
	case LimitDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("limit(%d)", uint8(l))
	}
}

// Limits bounds what a peer can make us buffer.
type Limits struct {
	MaxMessageLength    uint32
	MaxPendingPerStream int
	MaxPendingStreams   int
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageLength:    MaxMessageLength,
		MaxPendingPerStream: int(MaxMessageLength),
		MaxPendingStreams:   64,
	}
}

type pendingMessage struct {
	header  LastChunk
	payload []byte
}

// Context is the per-connection chunk state. The receive half (received
// cache, pending, receive chunk size, ack accounting) belongs to the reading
// goroutine and the send half to the writing goroutine; neither half locks.
type Context struct {
	limits Limits

	received map[uint32]*LastChunk
	sent     map[uint32]*LastChunk
	pending  map[uint32]*pendingMessage

	receiveChunkSize uint32
	sendChunkSize    uint32

	windowAckSize uint32
	bytesReceived uint64
	lastAcked     uint64

	peerBandwidth uint32
	peerLimit     BandwidthLimit
}

func NewContext(limits Limits) *Context {
	def := DefaultLimits()
	if limits.MaxMessageLength == 0 || limits.MaxMessageLength > MaxMessageLength {
		limits.MaxMessageLength = def.MaxMessageLength
	}
	if limits.MaxPendingPerStream <= 0 {
		limits.MaxPendingPerStream = def.MaxPendingPerStream
	}
	if limits.MaxPendingStreams <= 0 {
		limits.MaxPendingStreams = def.MaxPendingStreams
	}
	return &Context{
		limits:           limits,
		received:         make(map[uint32]*LastChunk),
		sent:             make(map[uint32]*LastChunk),
		pending:          make(map[uint32]*pendingMessage),
		receiveChunkSize: DefaultChunkSize,
		sendChunkSize:    DefaultChunkSize,
		windowAckSize:    DefaultWindowAckSize,
		peerBandwidth:    DefaultPeerBandwidth,
		peerLimit:        LimitHard,
	}
}

func (c *Context) Limits() Limits { return c.limits }

func validChunkSize(n uint32) error {
	if n == 0 || n > MaxChunkSize {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, n)
	}
	return nil
}

func (c *Context) ReceiveChunkSize() uint32 { return c.receiveChunkSize }

// SetReceiveChunkSize applies a SetChunkSize from the peer.
func (c *Context) SetReceiveChunkSize(n uint32) error {
	if err := validChunkSize(n); err != nil {
		return err
	}
	c.receiveChunkSize = n
	return nil
}

func (c *Context) SendChunkSize() uint32 { return c.sendChunkSize }

// SetSendChunkSize must only be called after the peer has been sent the
// matching SetChunkSize message.
func (c *Context) SetSendChunkSize(n uint32) error {
	if err := validChunkSize(n); err != nil {
		return err
	}
	c.sendChunkSize = n
	return nil
}

func (c *Context) WindowAckSize() uint32 { return c.windowAckSize }

// SetWindowAckSize records the window the peer asked us to acknowledge.
// Zero disables acknowledgements.
func (c *Context) SetWindowAckSize(n uint32) {
	c.windowAckSize = n
}

// RecordReceived adds n wire bytes to the receive counter.
func (c *Context) RecordReceived(n int) {
	if n > 0 {
		c.bytesReceived += uint64(n)
	}
}

func (c *Context) BytesReceived() uint64 { return c.bytesReceived }

// AckDue reports whether a full window has arrived since the last
// acknowledgement, and the sequence number to send. The sequence number is
// the byte count modulo 2^32.
func (c *Context) AckDue() (uint32, bool) {
	if c.windowAckSize == 0 {
		return 0, false
	}
	if c.bytesReceived-c.lastAcked < uint64(c.windowAckSize) {
		return 0, false
	}
	return uint32(c.bytesReceived), true
}

// MarkAcked records that an acknowledgement for everything received so far
// went out.
func (c *Context) MarkAcked() {
	c.lastAcked = c.bytesReceived
}

func (c *Context) PeerBandwidth() (uint32, BandwidthLimit) {
	return c.peerBandwidth, c.peerLimit
}

// SetPeerBandwidth applies a SetPeerBandwidth message and reports whether
// the effective output limit changed. Soft never raises the limit; Dynamic
// acts as Hard only when the previous limit was Hard and is otherwise
// ignored.
func (c *Context) SetPeerBandwidth(size uint32, limit BandwidthLimit) bool {
	switch limit {
	case LimitHard:
	case LimitSoft:
		if size > c.peerBandwidth {
			size = c.peerBandwidth
		}
	case LimitDynamic:
		if c.peerLimit != LimitHard {
			return false
		}
		limit = LimitHard
	default:
		return false
	}
	changed := size != c.peerBandwidth
	c.peerBandwidth = size
	c.peerLimit = limit
	return changed
}

// LastReceived returns a copy of the receive cache entry for csid.
func (c *Context) LastReceived(csid uint32) (LastChunk, bool) {
	l, ok := c.received[csid]
	if !ok {
		return LastChunk{}, false
	}
	return *l, true
}

// LastSent returns a copy of the send cache entry for csid.
func (c *Context) LastSent(csid uint32) (LastChunk, bool) {
	l, ok := c.sent[csid]
	if !ok {
		return LastChunk{}, false
	}
	return *l, true
}

// Abort drops the partially received message on csid, if any.
func (c *Context) Abort(csid uint32) bool {
	if _, ok := c.pending[csid]; !ok {
		return false
	}
	delete(c.pending, csid)
	return true
}

// Pending returns how many payload bytes are buffered for csid.
func (c *Context) Pending(csid uint32) int {
	if p, ok := c.pending[csid]; ok {
		return len(p.payload)
	}
	return 0
}

// ResetReceive drops the receive caches and partial messages.
func (c *Context) ResetReceive() {
	clear(c.received)
	clear(c.pending)
}

// ResetSend drops the send caches, so the next message on every chunk
// stream goes out with a full header.
func (c *Context) ResetSend() {
	clear(c.sent)
}

// Reset drops all caches and partial messages. Negotiated sizes survive.
func (c *Context) Reset() {
	c.ResetReceive()
	c.ResetSend()
}
