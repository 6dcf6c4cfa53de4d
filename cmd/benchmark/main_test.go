package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robertfarnum/go_slip/internal/config"
	"github.com/robertfarnum/go_slip/internal/echo"
	"github.com/robertfarnum/go_slip/pkg/slip_rpc"
)

func TestRunUnaryLoopback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := slip_rpc.NewClient(loopback(ctx, config.Default(), zerolog.Nop()))
	defer client.Close()

	res, err := RunUnary(ctx, echo.NewEchoClient(client), 3, 20, 64, 2*time.Second)
	if err != nil {
		t.Fatalf("RunUnary() error = %v", err)
	}
	if res.calls != 60 || res.bytes != 60*2*64 {
		t.Fatalf("RunUnary() = %+v", res)
	}
}

func TestPayloadNeedsEscaping(t *testing.T) {
	p := payload(0, 8)
	if len(p) != 8 || p[0] != 0xC0 || p[1] != 0xDB {
		t.Fatalf("payload() = %x", p)
	}
}

func TestRunUnaryEmptyPayload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := slip_rpc.NewClient(loopback(ctx, config.Default(), zerolog.Nop()))
	defer client.Close()

	res, err := RunUnary(ctx, echo.NewEchoClient(client), 1, 3, 0, 2*time.Second)
	if err != nil {
		t.Fatalf("RunUnary() error = %v", err)
	}
	if res.calls != 3 {
		t.Fatalf("RunUnary() = %+v", res)
	}
}
