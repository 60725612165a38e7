package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/danmuck/streamwire/internal/observability"
	"github.com/danmuck/streamwire/internal/protocol/amf"
	"github.com/danmuck/streamwire/internal/protocol/chunk"
	"github.com/danmuck/streamwire/internal/protocol/control"
	"github.com/danmuck/streamwire/internal/protocol/handshake"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

var ErrHandshakeRequired = errors.New("session: handshake not completed")

// Conn drives one connection: handshake, then chunked messages with control
// traffic handled inline. ReadMessage must be called from a single
// goroutine; writes may come from any goroutine.
type Conn struct {
	id   string
	role Role
	nc   net.Conn
	cfg  Config
	log  zerolog.Logger

	chunks *chunk.Context
	reader *chunk.Reader
	writer *chunk.Writer
	wmu    sync.Mutex

	state      handshake.State
	handshaken bool
	windowSent uint32
}

func NewConn(nc net.Conn, role Role, cfg Config, logger zerolog.Logger) *Conn {
	cfg = cfg.WithDefaults()
	id := uuid.NewString()
	l := logger.With().Str("conn", id).Str("role", role.String()).Str("remote", nc.RemoteAddr().String()).Logger()
	ctx := chunk.NewContext(cfg.Limits)
	r := chunk.NewReader(ctx)
	r.SetLogger(l)
	return &Conn{
		id:     id,
		role:   role,
		nc:     nc,
		cfg:    cfg,
		log:    l,
		chunks: ctx,
		reader: r,
		writer: chunk.NewWriter(ctx),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Role() Role { return c.role }

// State returns the handshake outcome.
func (c *Conn) State() handshake.State { return c.state }

// Chunks exposes negotiated chunk state for inspection.
func (c *Conn) Chunks() *chunk.Context { return c.chunks }

// Close may be called from any goroutine. Receive state is discarded by the
// reading goroutine once its read fails.
func (c *Conn) Close() error {
	err := c.nc.Close()
	c.wmu.Lock()
	c.chunks.ResetSend()
	c.wmu.Unlock()
	return err
}

// bound applies the earlier of ctx's deadline and timeout via set, and
// interrupts the blocked call when ctx is cancelled.
func bound(ctx context.Context, timeout time.Duration, set func(time.Time) error) func() {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = set(deadline)
	stop := context.AfterFunc(ctx, func() { _ = set(time.Unix(1, 0)) })
	return func() {
		stop()
		_ = set(time.Time{})
	}
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// Handshake runs the exchange for this connection's role, bounded by
// Config.HandshakeTimeout.
func (c *Conn) Handshake(ctx context.Context) (handshake.State, error) {
	done := bound(ctx, c.cfg.HandshakeTimeout, c.nc.SetDeadline)
	defer done()

	start := time.Now()
	var (
		st  handshake.State
		err error
	)
	if c.role == RoleServer {
		st, err = handshake.Respond(c.nc, handshake.Options{})
	} else {
		st, err = handshake.Initiate(c.nc, handshake.Options{Signed: c.cfg.Signed})
	}
	observability.RecordHandshake(c.role.String(), st.Signed, err, time.Since(start))
	if err != nil {
		if errors.Is(err, handshake.ErrMismatch) {
			observability.RecordProtocolError("handshake-mismatch")
		}
		c.log.Warn().Err(err).Msg("handshake failed")
		return handshake.State{}, ctxErr(ctx, err)
	}
	c.state = st
	c.handshaken = true
	c.log.Info().Bool("signed", st.Signed).Str("algorithm", st.Algorithm.String()).
		Str("peer_version", st.Peer.Version().String()).Msg("handshake complete")
	return st, nil
}

// Announce sends the responder's opening control sequence: window ack size,
// peer bandwidth and, when it differs from the default, chunk size.
func (c *Conn) Announce(ctx context.Context) error {
	if err := c.WriteControl(ctx, control.WindowAckSize{Size: c.cfg.WindowAckSize}); err != nil {
		return err
	}
	c.windowSent = c.cfg.WindowAckSize
	if err := c.WriteControl(ctx, control.SetPeerBandwidth{Size: c.cfg.PeerBandwidth, Limit: chunk.LimitDynamic}); err != nil {
		return err
	}
	if c.cfg.ChunkSize != chunk.DefaultChunkSize {
		return c.SetChunkSize(ctx, c.cfg.ChunkSize)
	}
	return nil
}

// ReadMessage returns the next application message. Protocol control
// messages are applied to the chunk state and not returned; user control
// messages are returned after any ping has been answered.
func (c *Conn) ReadMessage(ctx context.Context) (chunk.Message, error) {
	if !c.handshaken {
		return chunk.Message{}, ErrHandshakeRequired
	}
	done := bound(ctx, c.cfg.ReadTimeout, c.nc.SetReadDeadline)
	defer done()

	for {
		m, err := c.reader.ReadChunk(c.nc)
		if err != nil {
			c.chunks.ResetReceive()
			if chunk.IsProtocolViolation(err) {
				observability.RecordProtocolError("chunk")
				c.log.Warn().Err(err).Msg("protocol violation")
			}
			return chunk.Message{}, ctxErr(ctx, err)
		}
		// the window is checked per chunk so large messages still get acked
		if err := c.maybeAck(ctx); err != nil {
			return chunk.Message{}, err
		}
		if m == nil {
			continue
		}
		msg := *m
		observability.RecordMessage("in", msg.MessageType.String(), len(msg.Payload))

		if !msg.MessageType.IsControl() && msg.MessageType != chunk.TypeUserControl {
			return msg, nil
		}
		before, _ := c.chunks.PeerBandwidth()
		p, err := control.Apply(c.chunks, msg)
		if err != nil {
			observability.RecordProtocolError("control")
			return chunk.Message{}, fmt.Errorf("session: apply %s: %w", msg.MessageType, err)
		}
		c.log.Debug().Str("type", msg.MessageType.String()).Interface("payload", p).Msg("control message")
		switch p := p.(type) {
		case control.SetPeerBandwidth:
			if after, _ := c.chunks.PeerBandwidth(); after != before && after != c.windowSent {
				if err := c.WriteControl(ctx, control.WindowAckSize{Size: after}); err != nil {
					return chunk.Message{}, err
				}
				c.windowSent = after
			}
		case control.UserControl:
			if p.Event == control.EventPingRequest {
				if err := c.WriteControl(ctx, control.PingResponse(p.Timestamp)); err != nil {
					return chunk.Message{}, err
				}
			}
			return msg, nil
		}
	}
}

func (c *Conn) maybeAck(ctx context.Context) error {
	seq, due := c.chunks.AckDue()
	if !due {
		return nil
	}
	if err := c.WriteControl(ctx, control.Acknowledgement{SequenceNumber: seq}); err != nil {
		return err
	}
	c.chunks.MarkAcked()
	observability.RecordAcknowledgement()
	return nil
}

// WriteMessage chunks msg onto the connection.
func (c *Conn) WriteMessage(ctx context.Context, msg chunk.Message) error {
	if !c.handshaken {
		return ErrHandshakeRequired
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.writeLocked(ctx, msg)
}

func (c *Conn) writeLocked(ctx context.Context, msg chunk.Message) error {
	done := bound(ctx, c.cfg.WriteTimeout, c.nc.SetWriteDeadline)
	defer done()
	if err := c.writer.WriteMessage(c.nc, msg); err != nil {
		return ctxErr(ctx, err)
	}
	observability.RecordMessage("out", msg.MessageType.String(), len(msg.Payload))
	return nil
}

func (c *Conn) WriteControl(ctx context.Context, p control.Payload) error {
	msg, err := control.Message(p)
	if err != nil {
		return err
	}
	return c.WriteMessage(ctx, msg)
}

// WriteCommand sends an AMF0 command on the command chunk stream.
func (c *Conn) WriteCommand(ctx context.Context, messageStreamID uint32, name string, txID float64, values ...amf.Value) error {
	msg, err := control.Command{Name: name, TransactionID: txID, Values: values}.Message(messageStreamID, 0)
	if err != nil {
		return err
	}
	return c.WriteMessage(ctx, msg)
}

// SetChunkSize tells the peer about the new size and then starts using it.
// Both happen under the write lock so no chunk is cut at the wrong size.
func (c *Conn) SetChunkSize(ctx context.Context, n uint32) error {
	if !c.handshaken {
		return ErrHandshakeRequired
	}
	msg, err := control.Message(control.SetChunkSize{Size: n})
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.writeLocked(ctx, msg); err != nil {
		return err
	}
	return c.chunks.SetSendChunkSize(n)
}
