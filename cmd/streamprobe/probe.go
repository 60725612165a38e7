package main

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/streamwire/internal/config"
	"github.com/danmuck/streamwire/internal/protocol/amf"
	"github.com/danmuck/streamwire/internal/protocol/chunk"
	"github.com/danmuck/streamwire/internal/protocol/control"
	"github.com/danmuck/streamwire/internal/protocol/session"
	"github.com/rs/zerolog"
)

type report struct {
	ConnID    string
	Signed    bool
	Reply     string
	Code      string
	ChunkSize uint32
	Pings     []time.Duration
}

// probe connects, sends connect and waits for its reply, then measures
// pings round trips.
func probe(ctx context.Context, cfg config.Config, pings int, logger zerolog.Logger) (report, error) {
	c, err := session.Dial(ctx, cfg.Client.Addr, cfg.Session, logger)
	if err != nil {
		return report{}, err
	}
	defer c.Close()

	st, err := c.Handshake(ctx)
	if err != nil {
		return report{}, err
	}
	out := report{ConnID: c.ID(), Signed: st.Signed}

	args := amf.NewObject()
	args.Set("app", amf.String(cfg.Client.App))
	args.Set("flashVer", amf.String("streamprobe"))
	args.Set("tcUrl", amf.String(fmt.Sprintf("rtmp://%s/%s", cfg.Client.Addr, cfg.Client.App)))
	args.Set("objectEncoding", amf.Number(0))
	if err := c.WriteCommand(ctx, 0, "connect", 1, args); err != nil {
		return report{}, err
	}
	for out.Reply == "" {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			return report{}, err
		}
		if msg.MessageType != chunk.TypeCommandAMF0 {
			continue
		}
		cmd, err := control.DecodeCommand(msg.Payload)
		if err != nil {
			return report{}, err
		}
		if cmd.TransactionID != 1 {
			logger.Debug().Str("command", cmd.Name).Msg("unsolicited command")
			continue
		}
		out.Reply = cmd.Name
		out.Code = statusCode(cmd.Values)
	}
	out.ChunkSize = c.Chunks().ReceiveChunkSize()

	start := time.Now()
	for i := 0; i < pings; i++ {
		sent := time.Now()
		ts := uint32(sent.Sub(start).Milliseconds())
		if err := c.WriteControl(ctx, control.PingRequest(ts)); err != nil {
			return out, err
		}
		if err := awaitPong(ctx, c, ts); err != nil {
			return out, err
		}
		out.Pings = append(out.Pings, time.Since(sent))
	}
	return out, nil
}

func awaitPong(ctx context.Context, c *session.Conn, ts uint32) error {
	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			return err
		}
		if msg.MessageType != chunk.TypeUserControl {
			continue
		}
		p, err := control.Decode(msg)
		if err != nil {
			return err
		}
		if uc, ok := p.(control.UserControl); ok && uc.Event == control.EventPingResponse && uc.Timestamp == ts {
			return nil
		}
	}
}

// statusCode returns the code field of the last object value, if any.
func statusCode(values []amf.Value) string {
	for i := len(values) - 1; i >= 0; i-- {
		obj, ok := values[i].(*amf.Object)
		if !ok {
			continue
		}
		if v, ok := obj.Get("code"); ok {
			if s, ok := v.(amf.String); ok {
				return string(s)
			}
		}
	}
	return ""
}
