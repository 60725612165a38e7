package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/danmuck/streamwire/internal/protocol/amf"
	"github.com/danmuck/streamwire/internal/protocol/chunk"
	"github.com/danmuck/streamwire/internal/protocol/control"
	"github.com/danmuck/streamwire/internal/protocol/session"
	"github.com/danmuck/streamwire/internal/testutil/testlog"
)

func readCommand(t *testing.T, ctx context.Context, c *session.Conn) control.Command {
	t.Helper()
	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.MessageType != chunk.TypeCommandAMF0 {
			continue
		}
		cmd, err := control.DecodeCommand(msg.Payload)
		if err != nil {
			t.Fatalf("decode command: %v", err)
		}
		return cmd
	}
}

func infoCode(t *testing.T, v amf.Value) string {
	t.Helper()
	obj, ok := v.(*amf.Object)
	if !ok {
		t.Fatalf("expected object, got %T", v)
	}
	code, ok := obj.Get("code")
	if !ok {
		t.Fatalf("info object has no code")
	}
	s, ok := code.(amf.String)
	if !ok {
		t.Fatalf("code is %T", code)
	}
	return string(s)
}

func TestServeConnectRoundTrip(t *testing.T) {
	logger := testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	svc := NewService(session.DefaultConfig(), logger)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- svc.Serve(ctx, ln) }()

	dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dcancel()
	c, err := session.Dial(dctx, ln.Addr().String(), session.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if _, err := c.Handshake(dctx); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	app := amf.NewObject()
	app.Set("app", amf.String("live"))
	if err := c.WriteCommand(dctx, 0, "connect", 1, app); err != nil {
		t.Fatalf("write connect: %v", err)
	}
	res := readCommand(t, dctx, c)
	if res.Name != "_result" || res.TransactionID != 1 || len(res.Values) != 2 {
		t.Fatalf("unexpected connect reply %+v", res)
	}
	if code := infoCode(t, res.Values[1]); code != "NetConnection.Connect.Success" {
		t.Fatalf("code=%q", code)
	}
	if got := c.Chunks().ReceiveChunkSize(); got != session.DefaultConfig().ChunkSize {
		t.Fatalf("announced chunk size not applied: %d", got)
	}
	if svc.Active() != 1 {
		t.Fatalf("active=%d", svc.Active())
	}

	if err := c.WriteCommand(dctx, 0, "play", 2, amf.Null{}, amf.String("stream")); err != nil {
		t.Fatalf("write play: %v", err)
	}
	res = readCommand(t, dctx, c)
	if res.Name != "_error" || res.TransactionID != 2 {
		t.Fatalf("unexpected play reply %+v", res)
	}
	if code := infoCode(t, res.Values[1]); code != "NetConnection.Call.Failed" {
		t.Fatalf("code=%q", code)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
	if svc.Active() != 0 {
		t.Fatalf("active after shutdown=%d", svc.Active())
	}
}

func TestServeRejectsInvalidTransport(t *testing.T) {
	logger := testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	cfg := session.DefaultConfig()
	cfg.SecurityMode = session.SecurityModeProduction
	if err := NewService(cfg, logger).Serve(context.Background(), ln); err == nil {
		t.Fatalf("expected transport validation error")
	}
}
