package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/robertfarnum/go_slip/pkg/slip_link"
)

func TestPrintFrame(t *testing.T) {
	var out bytes.Buffer
	if err := printFrame(&out)(context.Background(), []byte{'h', 'i', 0xC0}); err != nil {
		t.Fatalf("printFrame() error = %v", err)
	}

	if got, want := out.String(), "6869c0 \"hi\\xc0\"\n"; got != want {
		t.Fatalf("printFrame() wrote %q, want %q", got, want)
	}
}

func TestSendLines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := net.Pipe()

	received := make(chan []byte, 4)
	sender := slip_link.New(a, nil)
	receiver := slip_link.New(b, slip_link.HandlerFunc(func(ctx context.Context, frame []byte) error {
		received <- frame
		return nil
	}))
	go sender.Run(ctx)
	go receiver.Run(ctx)

	if err := sendLines(ctx, sender, strings.NewReader("one\n\ntwo\n")); err != nil {
		t.Fatalf("sendLines() error = %v", err)
	}

	for _, want := range []string{"one", "two"} {
		select {
		case got := <-received:
			if string(got) != want {
				t.Fatalf("received %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}
