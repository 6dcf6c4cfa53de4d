package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/robertfarnum/go_slip/internal/config"
	"github.com/robertfarnum/go_slip/internal/echo"
	"github.com/robertfarnum/go_slip/internal/logging"
	"github.com/robertfarnum/go_slip/pkg/slip_rpc"
)

type echoServer struct {
	echo.Service
	logger zerolog.Logger
}

func (s echoServer) Echo(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	s.logger.Info().Str("payload", string(in.GetValue())).Msg("received echo")

	return s.Service.Echo(ctx, in)
}

func main() {
	configPath := flag.String("config", "", "path to a link config file")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.New("echo_server")

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logging.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := slip_rpc.NewServer(
		slip_rpc.WithServerLogger(logger),
		slip_rpc.WithLinkOptions(cfg.LinkOptions(logger)...),
	)
	echo.RegisterEchoServer(s, echoServer{logger: logger})

	if cfg.Network == config.NetworkDevice {
		rwc, err := cfg.Open(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("open link")
		}

		logger.Info().Str("device", cfg.Address).Msg("serving device")
		if err := s.Serve(ctx, rwc); err != nil && ctx.Err() == nil {
			logger.Fatal().Err(err).Msg("serve")
		}
		return
	}

	lis, err := cfg.Listener(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("listen")
	}

	if err := s.ServeListener(ctx, lis); err != nil {
		logger.Fatal().Err(err).Msg("serve")
	}
}
