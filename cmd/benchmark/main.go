// Command benchmark measures unary echo calls over SLIP. With no config it
// serves itself over an in-memory pipe; with -config it dials a running
// echo_server.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/robertfarnum/go_slip/internal/config"
	"github.com/robertfarnum/go_slip/internal/echo"
	"github.com/robertfarnum/go_slip/internal/logging"
	"github.com/robertfarnum/go_slip/pkg/slip"
	"github.com/robertfarnum/go_slip/pkg/slip_rpc"
)

type result struct {
	calls   uint64
	bytes   uint64
	elapsed time.Duration
}

func (r result) String() string {
	secs := r.elapsed.Seconds()
	return fmt.Sprintf("%d calls in %s (%.0f calls/s, %.0f B/s)", r.calls, r.elapsed.Round(time.Millisecond), float64(r.calls)/secs, float64(r.bytes)/secs)
}

// payload fills size bytes with a pattern that is mostly tokens, so every
// call exercises escaping in both directions.
func payload(worker, size int) []byte {
	b := make([]byte, size)
	for i := range b {
		switch i % 4 {
		case 0:
			b[i] = slip.End
		case 1:
			b[i] = slip.Esc
		default:
			b[i] = byte(worker + i)
		}
	}
	return b
}

func RunUnary(ctx context.Context, ec echo.EchoClient, workers, count, size int, timeout time.Duration) (result, error) {
	var calls, total atomic.Uint64

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		in := wrapperspb.Bytes(payload(w, size))
		g.Go(func() error {
			for i := 0; i < count; i++ {
				callCtx, cancel := context.WithTimeout(ctx, timeout)
				out, err := ec.Echo(callCtx, in)
				cancel()
				if err != nil {
					return err
				}
				if !bytes.Equal(out.GetValue(), in.GetValue()) {
					return fmt.Errorf("worker %d call %d: echo mismatch", w, i)
				}
				calls.Add(1)
				total.Add(uint64(2 * size))
			}
			return nil
		})
	}

	err := g.Wait()

	return result{
		calls:   calls.Load(),
		bytes:   total.Load(),
		elapsed: time.Since(start),
	}, err
}

// loopback serves echo on one end of a pipe and returns the other end.
func loopback(ctx context.Context, cfg config.Link, logger zerolog.Logger) io.ReadWriteCloser {
	a, b := net.Pipe()

	s := slip_rpc.NewServer(
		slip_rpc.WithServerLogger(logger),
		slip_rpc.WithLinkOptions(cfg.LinkOptions(logger)...),
	)
	echo.RegisterEchoServer(s, echo.Service{})

	go func() {
		if err := s.Serve(ctx, b); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("loopback server stopped")
		}
	}()

	return a
}

func main() {
	configPath := flag.String("config", "", "path to a link config file; empty runs an in-process server")
	workers := flag.Int("workers", 4, "concurrent callers")
	count := flag.Int("count", 1000, "calls per caller")
	size := flag.Int("size", 256, "payload size in bytes")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("benchmark")

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logging.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rwc io.ReadWriteCloser
	if *configPath == "" {
		rwc = loopback(ctx, cfg, logger)
	} else if rwc, err = cfg.Open(ctx); err != nil {
		logger.Fatal().Err(err).Msg("open link")
	}

	client := slip_rpc.NewClient(rwc, cfg.LinkOptions(logger)...)
	defer client.Close()

	res, err := RunUnary(ctx, echo.NewEchoClient(client), *workers, *count, *size, cfg.CallTimeout)
	if err != nil {
		logger.Error().Err(err).Stringer("partial", res).Msg("benchmark failed")
		client.Close()
		os.Exit(1)
	}

	stats := client.Conn().Stats()
	logger.Info().
		Stringer("result", res).
		Uint64("bytes_out", stats.BytesOut).
		Uint64("bytes_in", stats.BytesIn).
		Msg("benchmark done")
}
