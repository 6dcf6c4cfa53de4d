package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/robertfarnum/go_slip/internal/config"
	"github.com/robertfarnum/go_slip/internal/echo"
	"github.com/robertfarnum/go_slip/internal/logging"
	"github.com/robertfarnum/go_slip/pkg/slip_rpc"
)

func runUnary(ctx context.Context, logger zerolog.Logger, ec echo.EchoClient, count int, interval, timeout time.Duration) error {
	for i := 0; i < count; i++ {
		msg := fmt.Sprintf("Hello #%d", i)

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		out, err := ec.Echo(callCtx, wrapperspb.Bytes([]byte(msg)))
		cancel()
		if err != nil {
			return fmt.Errorf("echo %d: %w", i, err)
		}

		logger.Info().
			Str("payload", string(out.GetValue())).
			Dur("rtt", time.Since(start)).
			Msg("received echo")

		if i+1 < count {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	return nil
}

func main() {
	configPath := flag.String("config", "", "path to a link config file")
	count := flag.Int("count", 10, "number of echo calls")
	interval := flag.Duration("interval", time.Second, "delay between calls")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("echo_client")

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logging.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rwc, err := cfg.Open(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("open link")
	}

	client := slip_rpc.NewClient(rwc, cfg.LinkOptions(logger)...)
	defer client.Close()

	if err := runUnary(ctx, logger, echo.NewEchoClient(client), *count, *interval, cfg.CallTimeout); err != nil {
		logger.Error().Err(err).Msg("echo failed")
		client.Close()
		os.Exit(1)
	}

	stats := client.Conn().Stats()
	logger.Info().
		Uint64("frames_out", stats.FramesOut).
		Uint64("frames_in", stats.FramesIn).
		Uint64("framing_errors", stats.FramingErrors).
		Msg("done")
}
