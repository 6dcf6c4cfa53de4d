// Command slipcat sends each line of stdin as a SLIP frame and prints the
// frames it receives.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/robertfarnum/go_slip/internal/config"
	"github.com/robertfarnum/go_slip/internal/logging"
	"github.com/robertfarnum/go_slip/pkg/slip_link"
)

func open(ctx context.Context, cfg config.Link, logger zerolog.Logger) (io.ReadWriteCloser, error) {
	if !cfg.Listen {
		return cfg.Open(ctx)
	}

	lis, err := cfg.Listener(ctx)
	if err != nil {
		return nil, err
	}
	defer lis.Close()

	logger.Info().Str("address", lis.Addr().String()).Msg("waiting for peer")

	conn, err := lis.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("peer connected")

	return conn, nil
}

func printFrame(w io.Writer) slip_link.HandlerFunc {
	return func(ctx context.Context, frame []byte) error {
		_, err := fmt.Fprintf(w, "%s %s\n", hex.EncodeToString(frame), strconv.Quote(string(frame)))
		return err
	}
}

func sendLines(ctx context.Context, link *slip_link.Link, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := link.Send(ctx, line); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func main() {
	configPath := flag.String("config", "", "path to a link config file")
	listen := flag.Bool("listen", false, "accept one TCP peer instead of dialing")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("slipcat")

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if *listen {
		cfg.Listen = true
	}
	logging.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rwc, err := open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open link")
	}

	link := slip_link.New(rwc, printFrame(os.Stdout), cfg.LinkOptions(logger)...)

	go func() {
		if err := sendLines(ctx, link, os.Stdin); err != nil && !errors.Is(err, slip_link.ErrClosed) {
			logger.Warn().Err(err).Msg("send stdin")
		}
	}()

	if err := link.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("link failed")
	}
}
