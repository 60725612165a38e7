package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/danmuck/streamwire/internal/config"
	"github.com/danmuck/streamwire/internal/server"
	"github.com/danmuck/streamwire/internal/testutil/testlog"
)

func TestProbeAgainstServer(t *testing.T) {
	logger := testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := config.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- server.NewService(cfg.Session, logger).Serve(ctx, ln) }()

	for _, signed := range []bool{true, false} {
		pcfg := config.Default()
		pcfg.Client.Addr = ln.Addr().String()
		pcfg.Session.Signed = signed
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		rep, err := probe(pctx, pcfg, 2, logger)
		pcancel()
		if err != nil {
			t.Fatalf("signed=%v probe: %v", signed, err)
		}
		if rep.Signed != signed || rep.Reply != "_result" || rep.Code != "NetConnection.Connect.Success" {
			t.Fatalf("signed=%v report %+v", signed, rep)
		}
		if rep.ChunkSize != cfg.Session.ChunkSize || len(rep.Pings) != 2 {
			t.Fatalf("signed=%v report %+v", signed, rep)
		}
	}

	cancel()
	if err := <-served; err != nil {
		t.Fatalf("serve: %v", err)
	}
}
