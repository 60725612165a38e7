// Package server is the responder side used by streamwired: it accepts
// connections, runs the handshake and control announcement, and answers the
// connect command so initiators can verify a full round trip.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/danmuck/streamwire/internal/protocol/amf"
	"github.com/danmuck/streamwire/internal/protocol/chunk"
	"github.com/danmuck/streamwire/internal/protocol/control"
	"github.com/danmuck/streamwire/internal/protocol/session"
	"github.com/rs/zerolog"
)

// Version is reported as fmsVer in connect results.
const Version = "streamwire/0.1"

type Service struct {
	cfg session.Config
	log zerolog.Logger

	connsMu sync.Mutex
	conns   map[*session.Conn]struct{}
	active  atomic.Int64
	wg      sync.WaitGroup
}

func NewService(cfg session.Config, logger zerolog.Logger) *Service {
	return &Service{
		cfg:   cfg.WithDefaults(),
		log:   logger.With().Str("component", "server").Logger(),
		conns: make(map[*session.Conn]struct{}),
	}
}

// Active reports the number of connections currently being served.
func (s *Service) Active() int64 { return s.active.Load() }

// Serve accepts on ln until ctx is done, then closes open connections and
// waits for their handlers.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.cfg.ValidateServerTransport(); err != nil {
		return err
	}
	defer s.wg.Wait()
	defer ln.Close()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeAll()
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		c := session.NewConn(nc, session.RoleServer, s.cfg, s.log)
		s.track(c)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, c)
		}()
	}
}

func (s *Service) track(c *session.Conn) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Service) untrack(c *session.Conn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

func (s *Service) closeAll() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Service) handleConn(ctx context.Context, c *session.Conn) {
	defer s.untrack(c)
	defer c.Close()
	l := s.log.With().Str("conn", c.ID()).Logger()
	active := s.active.Add(1)
	l.Info().Int64("active", active).Msg("client connected")
	defer func() {
		l.Info().Int64("active", s.active.Add(-1)).Msg("client disconnected")
	}()

	if _, err := c.Handshake(ctx); err != nil {
		return
	}
	if err := c.Announce(ctx); err != nil {
		l.Warn().Err(err).Msg("announce failed")
		return
	}
	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			l.Warn().Err(err).Msg("read failed")
			return
		}
		if err := s.dispatch(ctx, c, msg, l); err != nil {
			l.Warn().Err(err).Msg("dispatch failed")
			return
		}
	}
}

func (s *Service) dispatch(ctx context.Context, c *session.Conn, msg chunk.Message, l zerolog.Logger) error {
	switch msg.MessageType {
	case chunk.TypeCommandAMF0:
		cmd, err := control.DecodeCommand(msg.Payload)
		if err != nil {
			return err
		}
		l.Info().Str("command", cmd.Name).Float64("tx", cmd.TransactionID).
			Uint32("msid", msg.MessageStreamID).Int("values", len(cmd.Values)).Msg("command")
		switch {
		case cmd.Name == "connect":
			return c.WriteCommand(ctx, msg.MessageStreamID, "_result", cmd.TransactionID, connectProperties(), connectInfo())
		case cmd.TransactionID != 0:
			return c.WriteCommand(ctx, msg.MessageStreamID, "_error", cmd.TransactionID, amf.Null{}, callFailed(cmd.Name))
		}
	case chunk.TypeUserControl:
		uc, err := control.Decode(msg)
		if err != nil {
			return err
		}
		l.Debug().Interface("event", uc).Msg("user control")
	default:
		l.Debug().Str("type", msg.MessageType.String()).Uint32("csid", msg.ChunkStreamID).
			Int("len", len(msg.Payload)).Msg("message ignored")
	}
	return nil
}

func connectProperties() *amf.Object {
	o := amf.NewObject()
	o.Set("fmsVer", amf.String(Version))
	o.Set("capabilities", amf.Number(31))
	return o
}

func connectInfo() *amf.Object {
	o := amf.NewObject()
	o.Set("level", amf.String("status"))
	o.Set("code", amf.String("NetConnection.Connect.Success"))
	o.Set("description", amf.String("Connection succeeded."))
	o.Set("objectEncoding", amf.Number(0))
	return o
}

func callFailed(name string) *amf.Object {
	o := amf.NewObject()
	o.Set("level", amf.String("error"))
	o.Set("code", amf.String("NetConnection.Call.Failed"))
	o.Set("description", amf.String("unsupported command: "+name))
	return o
}
